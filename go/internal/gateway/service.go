package gateway

import (
	"context"
	"net/http"

	"github.com/DarkIrata/ffxiv-act-minioverlay/go/internal/engine"
	"github.com/rs/zerolog/log"
)

// Service is the overlay gateway: it pushes timer projections to WebSocket
// clients and serves the timer REST API.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
}

// Config holds configuration for the gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
}

func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
	}
}

// NewService creates a gateway service. counter may be nil.
func NewService(config Config, provider StateProvider, counter ClientCounter) *Service {
	connectionManager := NewConnectionManager(config.ConnectionConfig, provider, counter)

	return &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager),
		stateHandler:      NewStateHandler(provider),
	}
}

// Start runs the connection manager until ctx is cancelled
func (s *Service) Start(ctx context.Context) {
	log.Info().Msg("starting overlay gateway")
	s.connectionManager.Start(ctx)
	log.Info().Msg("overlay gateway stopped")
}

// PublishTimers implements engine.Publisher
func (s *Service) PublishTimers(snapshot engine.Snapshot) {
	s.connectionManager.PublishTimers(snapshot)
}

// RegisterRoutes registers the WebSocket and REST routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterStateRoutes(mux)
	log.Info().Msg("overlay gateway routes registered")
}

func (s *Service) GetStats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}
