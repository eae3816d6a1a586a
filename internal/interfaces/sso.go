// -----------------------------------------------------------------------
// SSO core contracts: orchestrator, exchanger, registry, credential store
// -----------------------------------------------------------------------

package interfaces

import (
	"context"

	"github.com/ternarybob/aditus/internal/models"
)

// NavigationKind distinguishes the two independent signals a ticket-bearing
// transition can arrive on. Some frontends perform the redirect client-side,
// which only one of the two reliably captures.
type NavigationKind string

const (
	// NavigationWillRedirect is the pre-navigation signal (server redirect
	// about to be followed).
	NavigationWillRedirect NavigationKind = "will_redirect"
	// NavigationDidNavigate is the post-navigation signal (navigation
	// already committed, cannot be cancelled).
	NavigationDidNavigate NavigationKind = "did_navigate"
)

// NavigationEvent is a single observed navigation in the login window.
type NavigationEvent struct {
	Kind NavigationKind
	URL  string
}

// WindowEventHandlers receive window lifecycle signals from a LoginWindow.
// Callbacks must not block; the window delivers them from its event loop.
type WindowEventHandlers struct {
	// OnNavigation fires for every observed pre- and post-navigation event.
	OnNavigation func(evt NavigationEvent)
	// OnPageLoad fires when a page finished loading, with its URL.
	OnPageLoad func(url string)
	// OnClosed fires exactly once when the window is gone, whatever the cause.
	OnClosed func()
}

// LoginWindow is a host browser window bound to the isolated SSO partition.
// Implemented over chromedp; faked in tests.
type LoginWindow interface {
	// Navigate drives the window to the given URL.
	Navigate(ctx context.Context, url string) error

	// Evaluate runs a script inside the page context. The script is a
	// boundary artifact: a serialized command to a sandboxed peer.
	Evaluate(ctx context.Context, script string) error

	// Show reveals a window that was opened hidden.
	Show(ctx context.Context) error

	// Focus brings an already-visible window to the front.
	Focus(ctx context.Context) error

	// Cookies reads all cookies currently stored in the partition.
	Cookies(ctx context.Context) ([]models.BrowserCookie, error)

	// Close tears the window down. Triggers OnClosed.
	Close()
}

// WindowFactory opens login windows. Exactly one window may exist at a time;
// that invariant is enforced by the orchestrator, not the factory.
type WindowFactory interface {
	// Open creates a window on the isolated partition and wires the handlers.
	// A hidden window stays offscreen until Show is called.
	Open(ctx context.Context, hidden bool, handlers WindowEventHandlers) (LoginWindow, error)

	// ClearPartition wipes the isolated partition's stored cookies. Safe to
	// call with no window open.
	ClearPartition(ctx context.Context) error
}

// ExchangeResult is the transport-only outcome of a ticket exchange. Non-2xx
// statuses are returned as data, not errors.
type ExchangeResult struct {
	Status  int
	Headers map[string][]string
	Cookies []string
	Body    string
}

// TicketExchanger trades an opaque ticket for a session via the configured
// callback endpoint.
type TicketExchanger interface {
	Exchange(ctx context.Context, ticket string) (*ExchangeResult, error)
}

// LoginOrchestrator owns the login window lifecycle and resolves exactly once
// per attempt with one of {success, error, cancelled}.
type LoginOrchestrator interface {
	// Login runs a full login attempt. A nil account, or one without stored
	// credentials, is a manual attempt. Returns ErrAttemptRunning when an
	// attempt is already in flight.
	Login(ctx context.Context, account *models.Account) (*models.SessionRecord, error)

	// ClearPartition wipes the isolated partition's cookie store.
	ClearPartition(ctx context.Context) error
}

// SessionRegistry is the process-wide slot holding the current SessionRecord.
// It is the single source of truth for outbound request construction.
type SessionRegistry interface {
	// Set replaces the record wholesale.
	Set(record *models.SessionRecord)

	// Get returns a snapshot of the current record, never nil.
	Get() *models.SessionRecord

	// Clear resets the record to empty defaults and invalidates the isolated
	// partition's cookies so a logout cannot be bypassed by cookie reuse.
	Clear(ctx context.Context) error
}

// CredentialStore loads and persists the SSO configuration document.
type CredentialStore interface {
	// Load returns the current config. Never fails: a missing or corrupt
	// file falls back to compiled-in defaults.
	Load() *models.SSOConfig

	// Save overwrites the persisted document wholesale.
	Save(cfg *models.SSOConfig) error

	// AddAccount appends an account and persists.
	AddAccount(account models.Account) error

	// RemoveAccount deletes the account at the given list position.
	RemoveAccount(index int) error
}
