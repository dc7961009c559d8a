package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/DarkIrata/ffxiv-act-minioverlay/go/internal/engine"
	"github.com/rs/zerolog/log"
)

type Status struct {
	Healthy       bool      `json:"healthy"`
	EngineRunning bool      `json:"engine_running"`
	ClockSynced   bool      `json:"clock_synced"`
	ServerTime    time.Time `json:"server_time,omitzero"`
	VisibleTimers int       `json:"visible_timers"`
	NATSConnected *bool     `json:"nats_connected,omitempty"`
	Errors        []string  `json:"errors"`
}

// EngineProber answers snapshot reads; a reply proves the engine loop is live
type EngineProber interface {
	Snapshot(ctx context.Context) (engine.Snapshot, error)
}

// ConnectionProber reports the state of a broker connection
type ConnectionProber interface {
	IsConnected() bool
}

type Checker struct {
	engine  EngineProber
	nats    ConnectionProber
	timeout time.Duration
}

// NewChecker creates a health checker. nats may be nil when no broker source
// is configured.
func NewChecker(engine EngineProber, nats ConnectionProber) *Checker {
	return &Checker{
		engine:  engine,
		nats:    nats,
		timeout: 2 * time.Second,
	}
}

func (h *Checker) Check(ctx context.Context) Status {
	status := Status{
		Healthy: true,
		Errors:  []string{},
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	snapshot, err := h.engine.Snapshot(ctx)
	if err != nil {
		status.Healthy = false
		status.Errors = append(status.Errors, "engine: "+err.Error())
	} else {
		status.EngineRunning = true
		status.ClockSynced = !snapshot.ServerTime.IsZero()
		status.ServerTime = snapshot.ServerTime
		status.VisibleTimers = len(snapshot.Timers)
	}

	if h.nats != nil {
		connected := h.nats.IsConnected()
		status.NATSConnected = &connected
		if !connected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
	}

	return status
}

func (h *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := h.Check(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Error().Err(err).Msg("failed to write health check response")
	}
}
