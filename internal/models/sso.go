// -----------------------------------------------------------------------
// SSO configuration and session models
// -----------------------------------------------------------------------

package models

import (
	"encoding/json"
	"strings"
)

// Selectors holds the CSS selectors used by the auto-fill script to locate
// the credential fields on the login page. All three fields are guaranteed
// non-empty after Normalize.
type Selectors struct {
	User   string `json:"user"`
	Pass   string `json:"pass"`
	Submit string `json:"submit"`
}

// Account is a saved credential set. Accounts carry no identifier; list
// position inside SSOConfig.Accounts is the only identity.
type Account struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// IsAutoLogin reports whether the account carries enough data for an
// unattended login attempt.
func (a *Account) IsAutoLogin() bool {
	return a != nil && a.Username != "" && a.Password != ""
}

// SSOConfig is the persisted SSO document. It is stored as a JSON side file
// and merged over compiled-in defaults on load.
type SSOConfig struct {
	LoginURL          string    `json:"loginUrl"`
	ServiceURL        string    `json:"serviceUrl"`
	CallbackURL       string    `json:"callbackUrl"`
	AppCode           string    `json:"appCode"`
	AutoRedirectOn403 bool      `json:"autoRedirectOn403"`
	Selectors         Selectors `json:"selectors"`
	Accounts          []Account `json:"accounts"`
}

// Default selectors applied when the persisted document omits them.
const (
	DefaultUserSelector   = "#username"
	DefaultPassSelector   = "#password"
	DefaultSubmitSelector = "button[type=\"submit\"]"
)

// Normalize fills missing selector fields with the defaults and ensures the
// accounts slice is non-nil. Called after every load and save.
func (c *SSOConfig) Normalize() {
	if c.Selectors.User == "" {
		c.Selectors.User = DefaultUserSelector
	}
	if c.Selectors.Pass == "" {
		c.Selectors.Pass = DefaultPassSelector
	}
	if c.Selectors.Submit == "" {
		c.Selectors.Submit = DefaultSubmitSelector
	}
	if c.Accounts == nil {
		c.Accounts = []Account{}
	}
}

// BrowserCookie is a cookie read back from the isolated login partition.
type BrowserCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SessionRecord is the assembled result of a successful login. It is replaced
// wholesale on each login and cleared wholesale on logout.
type SessionRecord struct {
	// Cookies is every cookie from the isolated login partition,
	// semicolon-joined as name=value pairs.
	Cookies string `json:"cookies"`

	// Token is the bearer token extracted from the exchange response body,
	// empty when the upstream returned none.
	Token string `json:"token"`

	// JSessionID is the value of the first cookie whose name contains
	// "JSESSIONID", empty when no such cookie exists.
	JSessionID string `json:"jsessionId"`

	// CallbackCookies is the raw Set-Cookie lines from the ticket exchange
	// response, semicolon-joined.
	CallbackCookies string `json:"callbackCookies"`

	// UserData is the user object from the exchange response. May be nil;
	// some deployments are cookie-only.
	UserData map[string]interface{} `json:"userData"`
}

// IsEmpty reports whether the record holds no session at all.
func (r *SessionRecord) IsEmpty() bool {
	return r == nil || (r.Cookies == "" && r.Token == "" && r.CallbackCookies == "")
}

// JoinCookies renders browser cookies as a single Cookie header value.
func JoinCookies(cookies []BrowserCookie) string {
	pairs := make([]string, 0, len(cookies))
	for _, c := range cookies {
		pairs = append(pairs, c.Name+"="+c.Value)
	}
	return strings.Join(pairs, "; ")
}

// FindJSessionID returns the value of the first cookie whose name contains
// "JSESSIONID". Substring match, upstream deployments prefix the name.
func FindJSessionID(cookies []BrowserCookie) string {
	for _, c := range cookies {
		if strings.Contains(c.Name, "JSESSIONID") {
			return c.Value
		}
	}
	return ""
}

// ExtractToken pulls a bearer token out of the decoded exchange response.
// Extraction strategies are tried in order; first match wins.
func ExtractToken(body map[string]interface{}) string {
	if tok, ok := body["token"].(string); ok && tok != "" {
		return tok
	}
	if tok, ok := body["access_token"].(string); ok && tok != "" {
		return tok
	}
	if data, ok := body["data"].(map[string]interface{}); ok {
		if tok, ok := data["token"].(string); ok && tok != "" {
			return tok
		}
	}
	return ""
}

// ExtractUserData pulls the user object out of the decoded exchange response,
// trying "user" then "data.user". Returns nil when neither is present.
func ExtractUserData(body map[string]interface{}) map[string]interface{} {
	if user, ok := body["user"].(map[string]interface{}); ok {
		return user
	}
	if data, ok := body["data"].(map[string]interface{}); ok {
		if user, ok := data["user"].(map[string]interface{}); ok {
			return user
		}
	}
	return nil
}

// BuildSessionRecord assembles a SessionRecord from the partition cookies and
// the raw exchange response. A non-JSON body is not an error: token and user
// default to empty and the session still counts when cookies were obtained.
func BuildSessionRecord(cookies []BrowserCookie, callbackCookies []string, body string) *SessionRecord {
	record := &SessionRecord{
		Cookies:         JoinCookies(cookies),
		JSessionID:      FindJSessionID(cookies),
		CallbackCookies: strings.Join(callbackCookies, "; "),
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(body), &decoded); err == nil {
		record.Token = ExtractToken(decoded)
		record.UserData = ExtractUserData(decoded)
	}

	return record
}
