package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/DarkIrata/ffxiv-act-minioverlay/go/internal/catalog"
	"github.com/DarkIrata/ffxiv-act-minioverlay/go/internal/engine"
	"github.com/DarkIrata/ffxiv-act-minioverlay/go/internal/timers"
	"github.com/rs/zerolog/log"
)

// StateProvider is the view of the timer engine the HTTP API needs
type StateProvider interface {
	Dismisser
	Snapshot(ctx context.Context) (engine.Snapshot, error)
	Catalog() *catalog.Catalog
}

// DismissRequest is the body of POST /api/timers/dismiss
type DismissRequest struct {
	Key string `json:"key"`
}

// StateHandler handles HTTP requests for timer state
type StateHandler struct {
	stateProvider StateProvider
}

func NewStateHandler(provider StateProvider) *StateHandler {
	return &StateHandler{
		stateProvider: provider,
	}
}

// HandleGetTimers handles GET /api/timers
func (h *StateHandler) HandleGetTimers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snapshot, err := h.stateProvider.Snapshot(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to get timer snapshot")
		http.Error(w, "Failed to get timers", statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, NewTimersMessage(snapshot))
}

// HandleDismissTimer handles POST /api/timers/dismiss
func (h *StateHandler) HandleDismissTimer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req DismissRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	key, err := timers.ParseKey(req.Key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	removed, err := h.stateProvider.Dismiss(r.Context(), key)
	if err != nil {
		log.Error().Err(err).Str("key", req.Key).Msg("failed to dismiss timer")
		http.Error(w, "Failed to dismiss timer", statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, DismissedMessage{
		Type:    MessageTypeDismissed,
		Key:     key.String(),
		Removed: removed,
	})
}

// HandleGetActions handles GET /api/actions, listing the tracked catalog
func (h *StateHandler) HandleGetActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, h.stateProvider.Catalog().Entries())
}

// RegisterStateRoutes registers state-related HTTP routes
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/timers", h.HandleGetTimers)
	mux.HandleFunc("/api/timers/dismiss", h.HandleDismissTimer)
	mux.HandleFunc("/api/actions", h.HandleGetActions)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
