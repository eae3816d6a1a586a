// -----------------------------------------------------------------------
// Request dispatcher handler
// -----------------------------------------------------------------------

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ternarybob/aditus/internal/interfaces"
	"github.com/ternarybob/aditus/internal/models"
	"github.com/ternarybob/arbor"
)

// DispatchHandler forwards arbitrary requests from the console UI to upstream
// APIs. Upstream HTTP failures come back as data; only transport failures map
// to a 502.
type DispatchHandler struct {
	dispatcher interfaces.Dispatcher
	logger     arbor.ILogger
}

func NewDispatchHandler(dispatcher interfaces.Dispatcher, logger arbor.ILogger) *DispatchHandler {
	return &DispatchHandler{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// CallHandler handles POST /api/call
func (h *DispatchHandler) CallHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req models.APIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.URL == "" {
		WriteError(w, http.StatusBadRequest, "Request URL is required")
		return
	}

	resp, err := h.dispatcher.Do(r.Context(), &req)
	if err != nil {
		h.logger.Warn().Err(err).Str("url", req.URL).Msg("Dispatch failed")
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, resp)
}
