// -----------------------------------------------------------------------
// Accounting-unit service
//
// Covers the two downstream calls made once a session exists: listing the
// units visible to the session's org and binding a selected unit to the
// server-side session. Both endpoints live on the callback URL's host.
// -----------------------------------------------------------------------

package units

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ternarybob/aditus/internal/common"
	"github.com/ternarybob/aditus/internal/interfaces"
	"github.com/ternarybob/aditus/internal/models"
	"github.com/ternarybob/arbor"
)

// Service implements interfaces.UnitService.
type Service struct {
	cfg    common.UnitsConfig
	store  interfaces.CredentialStore
	client *http.Client
	logger arbor.ILogger
}

func NewService(cfg common.UnitsConfig, store interfaces.CredentialStore, logger arbor.ILogger) *Service {
	return &Service{
		cfg:    cfg,
		store:  store,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

var _ interfaces.UnitService = (*Service)(nil)

// FetchUnits lists the accounting units visible to the given org.
func (s *Service) FetchUnits(ctx context.Context, orgID, token, cookie string) (*models.APIResponse, error) {
	if orgID == "" {
		return nil, fmt.Errorf("org ID is required")
	}

	endpoint, origin, err := s.endpoint(s.cfg.FindUnitPath + "/" + url.PathEscape(orgID))
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	s.applyHeaders(req, origin, token, cookie)

	s.logger.Debug().Str("org_id", orgID).Str("url", endpoint).Msg("Fetching accounting units")
	return s.send(req)
}

// SetUnitSession binds the selected unit to the server-side session.
func (s *Service) SetUnitSession(ctx context.Context, unitReq *models.UnitSessionRequest, token, cookie string) (*models.APIResponse, error) {
	if unitReq == nil {
		return nil, fmt.Errorf("unit session request is required")
	}

	endpoint, origin, err := s.endpoint(s.cfg.SaveSessionPath)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(unitReq)
	if err != nil {
		return nil, fmt.Errorf("failed to encode unit session request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	s.applyHeaders(req, origin, token, cookie)
	req.Header.Set("Content-Type", "application/json")

	s.logger.Debug().Str("unit_id", unitReq.UnitID).Msg("Binding accounting unit to session")
	return s.send(req)
}

// endpoint resolves a configured path against the callback URL's host and
// returns the full endpoint plus the service origin for the Origin header.
func (s *Service) endpoint(path string) (string, string, error) {
	cfg := s.store.Load()

	callback, err := url.Parse(cfg.CallbackURL)
	if err != nil || callback.Host == "" {
		return "", "", fmt.Errorf("invalid callback URL %q", cfg.CallbackURL)
	}

	base := callback.Scheme + "://" + callback.Host
	return base + path, strings.TrimSuffix(cfg.ServiceURL, "/"), nil
}

func (s *Service) applyHeaders(req *http.Request, origin, token, cookie string) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", NormalizeBearer(token))
	req.Header.Set("Cookie", cookie)
	if origin != "" {
		req.Header.Set("Origin", origin)
		req.Header.Set("Referer", origin+"/")
	}
}

func (s *Service) send(req *http.Request) (*models.APIResponse, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &models.APIResponse{
		Status:     resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
		Headers:    resp.Header,
		Body:       string(data),
	}, nil
}

// NormalizeBearer prefixes a raw token with "Bearer " unless it already
// carries the scheme.
func NormalizeBearer(token string) string {
	if token == "" || strings.HasPrefix(token, "Bearer ") {
		return token
	}
	return "Bearer " + token
}
