// -----------------------------------------------------------------------
// SSO login orchestrator
//
// Owns the login window lifecycle: opens it on the isolated partition,
// injects the auto-fill script, watches both navigation signals for the
// ticket-bearing redirect, exchanges the ticket, and resolves exactly once
// per attempt with one of success, error or cancelled.
// -----------------------------------------------------------------------

package sso

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/aditus/internal/common"
	"github.com/ternarybob/aditus/internal/interfaces"
	"github.com/ternarybob/aditus/internal/models"
	"github.com/ternarybob/arbor"
)

// Orchestrator implements interfaces.LoginOrchestrator.
type Orchestrator struct {
	appCfg    common.SSOAppConfig
	store     interfaces.CredentialStore
	exchanger interfaces.TicketExchanger
	registry  interfaces.SessionRegistry
	events    interfaces.EventService
	history   interfaces.HistoryStorage
	factory   interfaces.WindowFactory
	logger    arbor.ILogger

	// mu guards the single-window invariant: at most one attempt in flight.
	mu      sync.Mutex
	current *attempt
	window  interfaces.LoginWindow
	gen     uint64
}

// NewOrchestrator creates the login orchestrator. History may be nil.
func NewOrchestrator(
	appCfg common.SSOAppConfig,
	store interfaces.CredentialStore,
	exchanger interfaces.TicketExchanger,
	registry interfaces.SessionRegistry,
	events interfaces.EventService,
	history interfaces.HistoryStorage,
	factory interfaces.WindowFactory,
	logger arbor.ILogger,
) *Orchestrator {
	return &Orchestrator{
		appCfg:    appCfg,
		store:     store,
		exchanger: exchanger,
		registry:  registry,
		events:    events,
		history:   history,
		factory:   factory,
		logger:    logger,
	}
}

var _ interfaces.LoginOrchestrator = (*Orchestrator)(nil)

// Login runs one login attempt. A second trigger while an attempt is pending
// refocuses the existing window and returns ErrAttemptRunning without opening
// a second window.
func (o *Orchestrator) Login(ctx context.Context, account *models.Account) (*models.SessionRecord, error) {
	cfg := o.store.Load()

	o.mu.Lock()
	if o.current != nil {
		window := o.window
		o.mu.Unlock()
		if window != nil {
			if err := window.Focus(ctx); err != nil {
				o.logger.Debug().Err(err).Msg("Failed to refocus login window")
			}
		}
		return nil, ErrAttemptRunning
	}
	o.gen++
	att := newAttempt(o.gen, account)
	o.current = att
	o.mu.Unlock()

	o.logger.Info().
		Str("attempt_id", att.id).
		Str("account", att.accountName()).
		Bool("auto_login", att.auto).
		Msg("Starting SSO login attempt")

	record, err := o.run(ctx, cfg, att)

	o.finish(ctx, att, record, err)
	return record, err
}

// run opens the window, wires the event handlers and waits for the attempt
// to settle.
func (o *Orchestrator) run(ctx context.Context, cfg *models.SSOConfig, att *attempt) (*models.SessionRecord, error) {
	handlers := interfaces.WindowEventHandlers{
		OnNavigation: func(evt interfaces.NavigationEvent) {
			o.handleNavigation(ctx, cfg, att, evt)
		},
		OnPageLoad: func(url string) {
			o.handlePageLoad(ctx, cfg, att, url)
		},
		OnClosed: func() {
			if att.settle(outcome{err: ErrUserCancelled}) {
				o.logger.Info().Str("attempt_id", att.id).Msg("Login window closed before ticket was obtained")
			}
		},
	}

	// Auto-login attempts start hidden. A watchdog reveals the window when
	// auto-fill fails silently (wrong selectors, CAPTCHA, layout change).
	window, err := o.factory.Open(ctx, att.auto, handlers)
	if err != nil {
		return nil, fmt.Errorf("failed to open login window: %w", err)
	}

	o.mu.Lock()
	o.window = window
	o.mu.Unlock()

	var watchdog *time.Timer
	if att.auto {
		watchdog = time.AfterFunc(o.appCfg.WatchdogTimeout, func() {
			if att.settled() {
				return
			}
			o.logger.Warn().
				Str("attempt_id", att.id).
				Msg("Auto-login taking too long, revealing window for manual login")
			if err := window.Show(ctx); err != nil {
				o.logger.Debug().Err(err).Msg("Failed to reveal login window")
				return
			}
			o.publish(ctx, interfaces.EventSSOWindowShown, map[string]interface{}{
				"attempt_id": att.id,
			})
		})
	}
	if watchdog != nil {
		defer watchdog.Stop()
	}

	loginURL := BuildLoginURL(cfg)
	o.logger.Debug().Str("url", loginURL).Msg("Navigating to SSO login page")
	if err := window.Navigate(ctx, loginURL); err != nil {
		att.settle(outcome{err: fmt.Errorf("failed to open login page: %w", err)})
	}

	select {
	case result := <-att.done:
		return result.record, result.err
	case <-ctx.Done():
		att.settle(outcome{err: ctx.Err()})
		return nil, ctx.Err()
	}
}

// handlePageLoad injects the auto-fill script once the login page itself has
// finished loading. Other pages in the flow are left alone.
func (o *Orchestrator) handlePageLoad(ctx context.Context, cfg *models.SSOConfig, att *attempt, url string) {
	if !att.auto || att.settled() || !o.isCurrent(att) {
		return
	}
	if !matchesLoginPage(cfg, url) {
		return
	}

	script := BuildAutoFillScript(att.account, cfg.Selectors)
	o.logger.Info().
		Str("attempt_id", att.id).
		Str("account", att.accountName()).
		Msg("Injecting auto-fill script")

	// Evaluate drives the browser; never block the window's event loop.
	go func() {
		window := o.currentWindow()
		if window == nil {
			return
		}
		if err := window.Evaluate(ctx, script); err != nil {
			o.logger.Warn().Err(err).Str("attempt_id", att.id).Msg("Auto-fill injection failed")
		}
	}()
}

// handleNavigation inspects both navigation signals for the ticket-bearing
// redirect back into the service.
func (o *Orchestrator) handleNavigation(ctx context.Context, cfg *models.SSOConfig, att *attempt, evt interfaces.NavigationEvent) {
	if !o.isCurrent(att) {
		// Stale event from a window that belongs to an earlier generation.
		return
	}
	if !MatchesService(cfg, evt.URL) {
		return
	}

	ticket := ExtractTicket(evt.URL)
	if ticket == "" {
		// Not an error: the user is still mid-flow.
		return
	}

	// First detection wins; the other navigation signal firing for the same
	// ticket finds the exchange already claimed.
	if !att.beginExchange() {
		return
	}

	o.logger.Info().
		Str("attempt_id", att.id).
		Str("kind", string(evt.Kind)).
		Msg("SSO ticket detected")

	// The exchange and cookie read are blocking; they must not run on the
	// window's event loop.
	go o.completeExchange(ctx, att, ticket)
}

// completeExchange trades the ticket for a session, reads the partition
// cookies and settles the attempt.
func (o *Orchestrator) completeExchange(ctx context.Context, att *attempt, ticket string) {
	result, err := o.exchanger.Exchange(ctx, ticket)
	if err != nil {
		att.settle(outcome{err: fmt.Errorf("ticket exchange failed: %w", err)})
		return
	}

	var cookies []models.BrowserCookie
	if window := o.currentWindow(); window != nil {
		cookies, err = window.Cookies(ctx)
		if err != nil {
			// Cookie-only deployments would lose their session here, so a
			// read failure is a hard error rather than a degraded success.
			att.settle(outcome{err: fmt.Errorf("failed to read partition cookies: %w", err)})
			return
		}
	}

	record := models.BuildSessionRecord(cookies, result.Cookies, result.Body)
	att.settle(outcome{record: record})
}

// finish tears the attempt down: closes the window, updates the registry,
// persists history and notifies the UI. No result is delivered after this.
func (o *Orchestrator) finish(ctx context.Context, att *attempt, record *models.SessionRecord, err error) {
	o.mu.Lock()
	window := o.window
	o.window = nil
	o.current = nil
	o.mu.Unlock()

	if window != nil {
		window.Close()
	}

	status := models.LoginStatusSuccess
	message := ""
	switch {
	case err == nil:
		o.registry.Set(record)
		o.publish(ctx, interfaces.EventSSOSuccess, record)
	case errors.Is(err, ErrUserCancelled):
		status = models.LoginStatusCancelled
		message = err.Error()
		o.publish(ctx, interfaces.EventSSOError, map[string]interface{}{
			"message": message,
			"kind":    "cancelled",
		})
	default:
		status = models.LoginStatusError
		message = err.Error()
		o.publish(ctx, interfaces.EventSSOError, map[string]interface{}{
			"message": message,
			"kind":    "error",
		})
	}

	o.recordHistory(att, status, message)

	o.logger.Info().
		Str("attempt_id", att.id).
		Str("status", string(status)).
		Msg("SSO login attempt settled")
}

func (o *Orchestrator) recordHistory(att *attempt, status models.LoginStatus, message string) {
	if o.history == nil {
		return
	}

	event := &models.LoginEvent{
		ID:          att.id,
		AccountName: att.accountName(),
		AutoLogin:   att.auto,
		Status:      status,
		Error:       message,
		StartedAt:   att.startedAt,
		SettledAt:   time.Now(),
	}

	// History writes happen after the attempt has settled; use a background
	// context so a cancelled login still gets recorded.
	if err := o.history.StoreLoginEvent(context.Background(), event); err != nil {
		o.logger.Warn().Err(err).Str("attempt_id", att.id).Msg("Failed to record login history")
	}
}

// ClearPartition wipes the isolated partition's cookie store.
func (o *Orchestrator) ClearPartition(ctx context.Context) error {
	return o.factory.ClearPartition(ctx)
}

func (o *Orchestrator) isCurrent(att *attempt) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current != nil && o.current.gen == att.gen
}

func (o *Orchestrator) currentWindow() interfaces.LoginWindow {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.window
}

func (o *Orchestrator) publish(ctx context.Context, eventType interfaces.EventType, payload interface{}) {
	if o.events == nil {
		return
	}
	if err := o.events.Publish(ctx, interfaces.Event{Type: eventType, Payload: payload}); err != nil {
		o.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("Failed to publish event")
	}
}

// matchesLoginPage reports whether url belongs to the configured login page.
func matchesLoginPage(cfg *models.SSOConfig, url string) bool {
	return cfg.LoginURL != "" && strings.HasPrefix(url, cfg.LoginURL)
}
