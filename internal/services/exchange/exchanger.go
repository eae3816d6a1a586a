// -----------------------------------------------------------------------
// Ticket exchanger: trades the SSO redirect ticket for a session
// -----------------------------------------------------------------------

package exchange

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ternarybob/aditus/internal/interfaces"
	"github.com/ternarybob/arbor"
)

// Service performs the server-side ticket exchange against the configured
// callback endpoint. The contract is transport-only: the body is returned
// unparsed and non-2xx statuses are data, not errors.
type Service struct {
	store  interfaces.CredentialStore
	client *http.Client
	logger arbor.ILogger
}

// NewService creates a ticket exchanger. The callback endpoint is an internal
// service with a self-signed certificate; TLS verification is disabled by
// design, matching the upstream trust decision.
func NewService(store interfaces.CredentialStore, timeout time.Duration, logger arbor.ILogger) *Service {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Service{
		store: store,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
			// Set-Cookie lines on the exchange response must reach the
			// caller; never follow redirects here.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
	}
}

// Exchange issues a single GET to callbackUrl?ticket=<ticket>.
func (s *Service) Exchange(ctx context.Context, ticket string) (*interfaces.ExchangeResult, error) {
	if ticket == "" {
		return nil, fmt.Errorf("ticket cannot be empty")
	}

	cfg := s.store.Load()

	callbackURL, err := url.Parse(cfg.CallbackURL)
	if err != nil {
		return nil, fmt.Errorf("invalid callback url: %w", err)
	}
	query := callbackURL.Query()
	query.Set("ticket", ticket)
	callbackURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, callbackURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build exchange request: %w", err)
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Origin", cfg.ServiceURL)
	req.Header.Set("Referer", cfg.ServiceURL+"/")

	s.logger.Debug().
		Str("callback_url", callbackURL.Redacted()).
		Msg("Exchanging SSO ticket")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ticket exchange failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read exchange response: %w", err)
	}

	result := &interfaces.ExchangeResult{
		Status:  resp.StatusCode,
		Headers: resp.Header,
		Cookies: resp.Header.Values("Set-Cookie"),
		Body:    string(body),
	}

	s.logger.Info().
		Int("status", result.Status).
		Int("cookie_count", len(result.Cookies)).
		Int("body_bytes", len(result.Body)).
		Msg("Ticket exchange completed")

	return result, nil
}
