// -----------------------------------------------------------------------
// Session registry handler
// -----------------------------------------------------------------------

package handlers

import (
	"net/http"

	"github.com/ternarybob/aditus/internal/interfaces"
	"github.com/ternarybob/arbor"
)

// SessionHandler exposes the published session snapshot and the logout path.
type SessionHandler struct {
	registry interfaces.SessionRegistry
	events   interfaces.EventService
	logger   arbor.ILogger
}

func NewSessionHandler(registry interfaces.SessionRegistry, events interfaces.EventService, logger arbor.ILogger) *SessionHandler {
	return &SessionHandler{
		registry: registry,
		events:   events,
		logger:   logger,
	}
}

// SessionHandler handles GET and DELETE on /api/sso/session
func (h *SessionHandler) SessionHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getSession(w, r)
	case http.MethodDelete:
		h.clearSession(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *SessionHandler) getSession(w http.ResponseWriter, r *http.Request) {
	record := h.registry.Get()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"active":  !record.IsEmpty(),
		"session": record,
	})
}

func (h *SessionHandler) clearSession(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Clear(r.Context()); err != nil {
		// The record is already reset; only the partition wipe failed.
		h.logger.Warn().Err(err).Msg("Session cleared but partition wipe failed")
	}

	if h.events != nil {
		err := h.events.Publish(r.Context(), interfaces.Event{
			Type: interfaces.EventSessionCleared,
		})
		if err != nil {
			h.logger.Warn().Err(err).Msg("Failed to publish session cleared event")
		}
	}

	h.logger.Info().Msg("Session cleared")
	WriteSuccess(w, "Session cleared")
}
