package sso

import "errors"

var (
	// ErrAttemptRunning is returned when a login is triggered while another
	// attempt is still in flight. Informational, not a failure: the existing
	// window has been refocused.
	ErrAttemptRunning = errors.New("login attempt already running")

	// ErrUserCancelled is returned when the login window was closed before a
	// ticket was obtained. Distinct from network failures so the UI can show
	// a non-alarming message.
	ErrUserCancelled = errors.New("login window closed by user")
)
