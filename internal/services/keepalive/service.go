// -----------------------------------------------------------------------
// Session keepalive probe
//
// Periodically validates the current session against the service URL and
// publishes a stale event when the upstream stops accepting it. The probe
// never mutates the session; clearing remains a user decision.
// -----------------------------------------------------------------------

package keepalive

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/aditus/internal/common"
	"github.com/ternarybob/aditus/internal/interfaces"
	"github.com/ternarybob/arbor"
)

// Service runs the scheduled staleness probe.
type Service struct {
	cfg      common.KeepaliveConfig
	store    interfaces.CredentialStore
	registry interfaces.SessionRegistry
	events   interfaces.EventService
	client   *http.Client
	logger   arbor.ILogger
	cron     *cron.Cron
}

func NewService(
	cfg common.KeepaliveConfig,
	store interfaces.CredentialStore,
	registry interfaces.SessionRegistry,
	events interfaces.EventService,
	logger arbor.ILogger,
) *Service {
	return &Service{
		cfg:      cfg,
		store:    store,
		registry: registry,
		events:   events,
		client: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
		logger: logger,
		cron:   cron.New(cron.WithSeconds()),
	}
}

// Start registers the probe and starts the scheduler. A disabled config is a
// no-op so callers can wire the service unconditionally.
func (s *Service) Start() error {
	if !s.cfg.Enabled {
		s.logger.Debug().Msg("Session keepalive disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(s.cfg.Schedule, s.probe); err != nil {
		return fmt.Errorf("invalid keepalive schedule %q: %w", s.cfg.Schedule, err)
	}

	s.cron.Start()
	s.logger.Info().Str("schedule", s.cfg.Schedule).Msg("Session keepalive started")
	return nil
}

// Stop halts the scheduler and waits for a running probe to finish.
func (s *Service) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// probe validates the current session with a single request to the service
// URL carrying the session's credentials.
func (s *Service) probe() {
	record := s.registry.Get()
	if record.IsEmpty() {
		return
	}

	cfg := s.store.Load()
	if cfg.ServiceURL == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.ServiceURL, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Keepalive probe request build failed")
		return
	}
	if record.Cookies != "" {
		req.Header.Set("Cookie", record.Cookies)
	}
	if record.Token != "" {
		req.Header.Set("Authorization", "Bearer "+record.Token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		// Network trouble says nothing about session validity.
		s.logger.Debug().Err(err).Msg("Keepalive probe unreachable")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		s.logger.Warn().Int("status", resp.StatusCode).Msg("Session rejected by upstream, flagging as stale")
		s.publishStale(ctx, resp.StatusCode)
		return
	}

	s.logger.Debug().Int("status", resp.StatusCode).Msg("Keepalive probe ok")
}

func (s *Service) publishStale(ctx context.Context, status int) {
	if s.events == nil {
		return
	}
	err := s.events.Publish(ctx, interfaces.Event{
		Type: interfaces.EventSessionStale,
		Payload: map[string]interface{}{
			"status": status,
		},
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to publish session stale event")
	}
}
