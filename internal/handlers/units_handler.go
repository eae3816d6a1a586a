// -----------------------------------------------------------------------
// Accounting-unit handler
//
// Both endpoints authenticate with the current session snapshot; the UI
// never re-sends tokens or cookies for these calls.
// -----------------------------------------------------------------------

package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ternarybob/aditus/internal/interfaces"
	"github.com/ternarybob/aditus/internal/models"
	"github.com/ternarybob/arbor"
)

type UnitsHandler struct {
	units    interfaces.UnitService
	registry interfaces.SessionRegistry
	logger   arbor.ILogger
}

func NewUnitsHandler(units interfaces.UnitService, registry interfaces.SessionRegistry, logger arbor.ILogger) *UnitsHandler {
	return &UnitsHandler{
		units:    units,
		registry: registry,
		logger:   logger,
	}
}

// FetchUnitsHandler handles GET /api/units/{orgId}
func (h *UnitsHandler) FetchUnitsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	orgID := strings.TrimPrefix(r.URL.Path, "/api/units/")
	if orgID == "" || strings.Contains(orgID, "/") {
		WriteError(w, http.StatusBadRequest, "Org ID is required")
		return
	}

	record, ok := h.requireSession(w)
	if !ok {
		return
	}

	resp, err := h.units.FetchUnits(r.Context(), orgID, record.Token, record.Cookies)
	if err != nil {
		h.logger.Warn().Err(err).Str("org_id", orgID).Msg("Failed to fetch units")
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, resp)
}

// SetUnitSessionHandler handles POST /api/units/session
func (h *UnitsHandler) SetUnitSessionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req models.UnitSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	record, ok := h.requireSession(w)
	if !ok {
		return
	}

	resp, err := h.units.SetUnitSession(r.Context(), &req, record.Token, record.Cookies)
	if err != nil {
		h.logger.Warn().Err(err).Str("unit_id", req.UnitID).Msg("Failed to set unit session")
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, resp)
}

func (h *UnitsHandler) requireSession(w http.ResponseWriter) (*models.SessionRecord, bool) {
	record := h.registry.Get()
	if record.IsEmpty() {
		WriteError(w, http.StatusUnauthorized, "No active session. Log in first.")
		return nil, false
	}
	return record, true
}
