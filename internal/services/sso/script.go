// -----------------------------------------------------------------------
// Auto-fill script template
//
// The injected script is a boundary artifact: a serialized command sent to
// a sandboxed page. It has no channel back to the orchestrator other than
// the navigation it eventually causes. Every interpolated literal must be
// escaped against the script's own quoting rules.
// -----------------------------------------------------------------------

package sso

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/aditus/internal/models"
)

// In-page polling parameters. The form is rendered by a reactive frontend,
// so the fields may appear well after the load event.
const (
	fillStartDelayMs = 1500
	fillIntervalMs   = 400
	fillMaxRetries   = 40
	submitDelayMs    = 400
)

// loginButtonLabel is the localized label the fallback submit search matches.
const loginButtonLabel = "Đăng nhập"

// EscapeJSString escapes a value for embedding inside a single-quoted
// JavaScript string literal. Quotes, backslashes and newlines in credentials
// must not break out of the literal.
func EscapeJSString(value string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`'`, `\'`,
		"\n", `\n`,
		"\r", `\r`,
	)
	return replacer.Replace(value)
}

// BuildAutoFillScript renders the in-page polling script that locates the
// credential fields, fills them, and clicks submit. Selectors are embedded as
// JSON string literals; credentials as escaped single-quoted literals.
func BuildAutoFillScript(account *models.Account, selectors models.Selectors) string {
	selUser, _ := json.Marshal(selectors.User)
	selPass, _ := json.Marshal(selectors.Pass)
	selSubmit, _ := json.Marshal(selectors.Submit)
	label, _ := json.Marshal(loginButtonLabel)

	return fmt.Sprintf(`(function() {
    const userVal = '%s';
    const passVal = '%s';
    const userSelectors = [%s, 'input[name="username"]', 'input[name="user"]', 'input[type="text"]'];
    const passSelectors = [%s, 'input[name="password"]', 'input[type="password"]'];
    const selSubmit = %s;
    const label = %s;
    let retries = 0;
    setTimeout(function() {
        const interval = setInterval(function() {
            let userField = null, passField = null;
            for (const s of userSelectors) {
                try { userField = document.querySelector(s); if (userField && userField.offsetParent !== null) break; } catch (e) {}
            }
            for (const s of passSelectors) {
                try { passField = document.querySelector(s); if (passField && passField.offsetParent !== null) break; } catch (e) {}
            }
            if (userField && passField) {
                clearInterval(interval);
                userField.focus();
                userField.value = userVal;
                userField.dispatchEvent(new Event('input', { bubbles: true }));
                userField.dispatchEvent(new Event('change', { bubbles: true }));
                passField.value = passVal;
                passField.dispatchEvent(new Event('input', { bubbles: true }));
                passField.dispatchEvent(new Event('change', { bubbles: true }));
                let submitBtn = document.querySelector(selSubmit);
                if (!submitBtn) {
                    const buttons = document.querySelectorAll('button, input[type="submit"], input[type="button"]');
                    for (let i = 0; i < buttons.length; i++) {
                        if (buttons[i].textContent.indexOf(label) >= 0 || (buttons[i].value && buttons[i].value.indexOf(label) >= 0)) {
                            submitBtn = buttons[i];
                            break;
                        }
                    }
                }
                if (submitBtn) setTimeout(function() { submitBtn.click(); }, %d);
            }
            retries++;
            if (retries >= %d) clearInterval(interval);
        }, %d);
    }, %d);
})();`,
		EscapeJSString(account.Username),
		EscapeJSString(account.Password),
		selUser, selPass, selSubmit, label,
		submitDelayMs, fillMaxRetries, fillIntervalMs, fillStartDelayMs)
}
