// -----------------------------------------------------------------------
// SSO login trigger handler
// -----------------------------------------------------------------------

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ternarybob/aditus/internal/interfaces"
	"github.com/ternarybob/aditus/internal/models"
	"github.com/ternarybob/aditus/internal/services/sso"
	"github.com/ternarybob/arbor"
)

// SSOHandler triggers login attempts. Attempts run in the background; the
// settled result reaches the UI over the websocket channel.
type SSOHandler struct {
	orchestrator interfaces.LoginOrchestrator
	store        interfaces.CredentialStore
	logger       arbor.ILogger
}

func NewSSOHandler(orchestrator interfaces.LoginOrchestrator, store interfaces.CredentialStore, logger arbor.ILogger) *SSOHandler {
	return &SSOHandler{
		orchestrator: orchestrator,
		store:        store,
		logger:       logger,
	}
}

type loginRequest struct {
	// AccountIndex selects a saved account for auto-login. Nil or negative
	// means a manual login with no credential injection.
	AccountIndex *int `json:"accountIndex"`
}

// LoginHandler handles POST /api/sso/login
func (h *SSOHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req loginRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	account, err := h.resolveAccount(req.AccountIndex)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The attempt outlives the HTTP request; a duplicate trigger fails fast
	// with ErrAttemptRunning, which is the only outcome reported here.
	errs := make(chan error, 1)
	go func() {
		_, err := h.orchestrator.Login(context.Background(), account)
		errs <- err
	}()

	select {
	case err := <-errs:
		if errors.Is(err, sso.ErrAttemptRunning) {
			WriteJSON(w, http.StatusConflict, map[string]string{
				"status": "already_running",
			})
			return
		}
		if err != nil {
			h.logger.Warn().Err(err).Msg("Login attempt failed immediately")
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "completed"})
	case <-time.After(250 * time.Millisecond):
		WriteStarted(w, "Login window opened")
	}
}

// ClearPartitionHandler handles POST /api/sso/partition/clear
func (h *SSOHandler) ClearPartitionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	if err := h.orchestrator.ClearPartition(r.Context()); err != nil {
		h.logger.Error().Err(err).Msg("Failed to clear login partition")
		WriteError(w, http.StatusInternalServerError, "Failed to clear login partition")
		return
	}

	WriteSuccess(w, "Login partition cleared")
}

func (h *SSOHandler) resolveAccount(index *int) (*models.Account, error) {
	if index == nil || *index < 0 {
		return nil, nil
	}

	cfg := h.store.Load()
	if *index >= len(cfg.Accounts) {
		return nil, errors.New("account index out of range")
	}
	account := cfg.Accounts[*index]
	return &account, nil
}
