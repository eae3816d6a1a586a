// -----------------------------------------------------------------------
// Login attempt state machine
//
// States: awaiting-ticket -> exchanging -> settled. Every terminal path
// (success, exchange failure, user close, context cancel) funnels through
// settle, which fires at most once per attempt. Navigation handlers race
// freely; the machine decides the winner.
// -----------------------------------------------------------------------

package sso

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/aditus/internal/models"
)

type attemptState int

const (
	stateAwaitingTicket attemptState = iota
	stateExchanging
	stateSettled
)

// outcome is the single result of an attempt: exactly one of record or err.
type outcome struct {
	record *models.SessionRecord
	err    error
}

// attempt is one triggered login. It owns the pending result and the
// settle-once invariant; the orchestrator owns the window.
type attempt struct {
	id        string
	gen       uint64
	account   *models.Account
	auto      bool
	startedAt time.Time

	mu    sync.Mutex
	state attemptState
	done  chan outcome
}

func newAttempt(gen uint64, account *models.Account) *attempt {
	return &attempt{
		id:        uuid.New().String(),
		gen:       gen,
		account:   account,
		auto:      account.IsAutoLogin(),
		startedAt: time.Now(),
		state:     stateAwaitingTicket,
		done:      make(chan outcome, 1),
	}
}

// beginExchange claims the ticket for this handler. Returns false when
// another handler already claimed it or the attempt has settled, which is how
// a double detection (both navigation signals firing for the same ticket)
// collapses to a single exchange.
func (a *attempt) beginExchange() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != stateAwaitingTicket {
		return false
	}
	a.state = stateExchanging
	return true
}

// settle delivers the attempt result. The first caller wins; later calls are
// no-ops. Returns whether this call settled the attempt.
func (a *attempt) settle(result outcome) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == stateSettled {
		return false
	}
	a.state = stateSettled
	a.done <- result
	return true
}

// settled reports whether the attempt has already delivered its result.
func (a *attempt) settled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state == stateSettled
}

func (a *attempt) accountName() string {
	if a.account == nil {
		return ""
	}
	return a.account.Name
}
