// -----------------------------------------------------------------------
// Login history handler
// -----------------------------------------------------------------------

package handlers

import (
	"net/http"

	"github.com/ternarybob/aditus/internal/interfaces"
	"github.com/ternarybob/arbor"
)

// HistoryHandler exposes the persisted login history.
type HistoryHandler struct {
	history interfaces.HistoryStorage
	logger  arbor.ILogger
}

func NewHistoryHandler(history interfaces.HistoryStorage, logger arbor.ILogger) *HistoryHandler {
	return &HistoryHandler{
		history: history,
		logger:  logger,
	}
}

// ListHandler handles GET /api/sso/history
func (h *HistoryHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	limit := GetLimitParam(r, 50)
	events, err := h.history.ListLoginEvents(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list login history")
		WriteError(w, http.StatusInternalServerError, "Failed to list login history")
		return
	}

	total, err := h.history.CountLoginEvents(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to count login history")
		WriteError(w, http.StatusInternalServerError, "Failed to count login history")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"total":  total,
		"events": events,
	})
}
