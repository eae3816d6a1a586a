package models

import "time"

// LoginStatus is the terminal state of a login attempt. Exactly one status is
// ever recorded per attempt.
type LoginStatus string

const (
	LoginStatusSuccess   LoginStatus = "success"
	LoginStatusError     LoginStatus = "error"
	LoginStatusCancelled LoginStatus = "cancelled"
)

// LoginEvent is the persisted record of a settled login attempt. Tickets and
// passwords are never stored.
type LoginEvent struct {
	ID          string      `json:"id" badgerhold:"key"`
	AccountName string      `json:"account_name"`
	AutoLogin   bool        `json:"auto_login"`
	Status      LoginStatus `json:"status"`
	Error       string      `json:"error,omitempty"`
	StartedAt   time.Time   `json:"started_at"`
	SettledAt   time.Time   `json:"settled_at"`
}
