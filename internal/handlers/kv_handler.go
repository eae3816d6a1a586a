// -----------------------------------------------------------------------
// Key/value preferences handler
//
// Small persisted store for console UI preferences (layout, last-used
// endpoints). Not a credential store; the SSO document has its own path.
// -----------------------------------------------------------------------

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/ternarybob/aditus/internal/interfaces"
	"github.com/ternarybob/arbor"
)

type KVHandler struct {
	kv     interfaces.KeyValueStorage
	logger arbor.ILogger
}

func NewKVHandler(kv interfaces.KeyValueStorage, logger arbor.ILogger) *KVHandler {
	return &KVHandler{
		kv:     kv,
		logger: logger,
	}
}

// ListKVHandler handles GET /api/kv - returns all pairs as a map
func (h *KVHandler) ListKVHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	all, err := h.kv.GetAll(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list key/value pairs")
		WriteError(w, http.StatusInternalServerError, "Failed to list key/value pairs")
		return
	}

	WriteJSON(w, http.StatusOK, all)
}

// KVHandler handles GET, PUT and DELETE on /api/kv/{key}
func (h *KVHandler) KVHandler(w http.ResponseWriter, r *http.Request) {
	key, err := extractKey(r.URL.Path)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getKV(w, r, key)
	case http.MethodPut:
		h.setKV(w, r, key)
	case http.MethodDelete:
		h.deleteKV(w, r, key)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *KVHandler) getKV(w http.ResponseWriter, r *http.Request, key string) {
	value, err := h.kv.Get(r.Context(), key)
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		WriteError(w, http.StatusNotFound, "Key not found")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("key", key).Msg("Failed to get key")
		WriteError(w, http.StatusInternalServerError, "Failed to get key")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"key":   key,
		"value": value,
	})
}

type setKVRequest struct {
	Value       string `json:"value"`
	Description string `json:"description"`
}

func (h *KVHandler) setKV(w http.ResponseWriter, r *http.Request, key string) {
	var req setKVRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.kv.Set(r.Context(), key, req.Value, req.Description); err != nil {
		h.logger.Error().Err(err).Str("key", key).Msg("Failed to set key")
		WriteError(w, http.StatusInternalServerError, "Failed to set key")
		return
	}

	WriteSuccess(w, "Key saved")
}

func (h *KVHandler) deleteKV(w http.ResponseWriter, r *http.Request, key string) {
	if err := h.kv.Delete(r.Context(), key); err != nil {
		h.logger.Error().Err(err).Str("key", key).Msg("Failed to delete key")
		WriteError(w, http.StatusInternalServerError, "Failed to delete key")
		return
	}

	WriteSuccess(w, "Key deleted")
}

func extractKey(path string) (string, error) {
	encoded := strings.TrimPrefix(path, "/api/kv/")
	if encoded == "" {
		return "", errors.New("key is required")
	}

	key, err := url.PathUnescape(encoded)
	if err != nil || strings.TrimSpace(key) == "" {
		return "", errors.New("invalid key")
	}
	return key, nil
}
