// -----------------------------------------------------------------------
// SSO configuration handler
// -----------------------------------------------------------------------

package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/ternarybob/aditus/internal/interfaces"
	"github.com/ternarybob/aditus/internal/models"
	"github.com/ternarybob/arbor"
)

// ConfigHandler exposes the persisted SSO document: endpoints, selectors and
// saved accounts.
type ConfigHandler struct {
	store  interfaces.CredentialStore
	logger arbor.ILogger
}

func NewConfigHandler(store interfaces.CredentialStore, logger arbor.ILogger) *ConfigHandler {
	return &ConfigHandler{
		store:  store,
		logger: logger,
	}
}

// GetConfigHandler handles GET /api/sso/config
func (h *ConfigHandler) GetConfigHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	WriteJSON(w, http.StatusOK, h.store.Load())
}

// UpdateConfigHandler handles PUT /api/sso/config
func (h *ConfigHandler) UpdateConfigHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "PUT") {
		return
	}

	var cfg models.SSOConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.store.Save(&cfg); err != nil {
		h.logger.Error().Err(err).Msg("Failed to save SSO config")
		WriteError(w, http.StatusInternalServerError, "Failed to save SSO config")
		return
	}

	h.logger.Info().Msg("SSO config updated")
	WriteJSON(w, http.StatusOK, h.store.Load())
}

type addAccountRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// AddAccountHandler handles POST /api/sso/accounts
func (h *ConfigHandler) AddAccountHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req addAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		WriteError(w, http.StatusBadRequest, "Account name is required")
		return
	}

	account := models.Account{
		Name:     req.Name,
		Username: req.Username,
		Password: req.Password,
	}
	if err := h.store.AddAccount(account); err != nil {
		h.logger.Error().Err(err).Msg("Failed to add account")
		WriteError(w, http.StatusInternalServerError, "Failed to add account")
		return
	}

	h.logger.Info().Str("account", req.Name).Msg("Account added")
	WriteJSON(w, http.StatusOK, h.store.Load())
}

// RemoveAccountHandler handles DELETE /api/sso/accounts/{index}
func (h *ConfigHandler) RemoveAccountHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "DELETE") {
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/api/sso/accounts/")
	index, err := strconv.Atoi(raw)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid account index")
		return
	}

	if err := h.store.RemoveAccount(index); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Info().Int("index", index).Msg("Account removed")
	WriteJSON(w, http.StatusOK, h.store.Load())
}
