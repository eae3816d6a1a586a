package sso

import (
	"net/url"
	"strings"

	"github.com/ternarybob/aditus/internal/models"
)

// BuildLoginURL appends the URL-encoded service and the app code to the
// configured login page URL.
func BuildLoginURL(cfg *models.SSOConfig) string {
	return cfg.LoginURL + "?service=" + url.QueryEscape(cfg.ServiceURL) + "&appCode=" + cfg.AppCode
}

// ExtractTicket returns the ticket query parameter of rawURL, or "" when the
// URL is unparseable or carries no ticket. An absent ticket is not an error;
// it means the user is still mid-flow.
func ExtractTicket(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Query().Get("ticket")
}

// MatchesService reports whether rawURL is prefixed by the configured service
// URL, i.e. the login page has redirected back into the service.
func MatchesService(cfg *models.SSOConfig, rawURL string) bool {
	return cfg.ServiceURL != "" && strings.HasPrefix(rawURL, cfg.ServiceURL)
}
