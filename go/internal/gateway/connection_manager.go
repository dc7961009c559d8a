package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/DarkIrata/ffxiv-act-minioverlay/go/internal/engine"
	"github.com/DarkIrata/ffxiv-act-minioverlay/go/internal/timers"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Dismisser removes a timer on behalf of a client
type Dismisser interface {
	Dismiss(ctx context.Context, key timers.Key) (bool, error)
}

// ClientCounter receives the number of connected overlay clients
type ClientCounter interface {
	SetConnectedClients(n int)
}

// ConnectionManager manages the overlay WebSocket connections. Every client
// sees the same timer list, so there is a single pool.
type ConnectionManager struct {
	connections map[*Connection]bool
	mu          sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	dismisser Dismisser
	counter   ClientCounter

	// latest is the last encoded timers frame, sent to clients as they join
	latest   []byte
	latestMu sync.RWMutex

	broadcastCh chan []byte
}

// Connection represents a WebSocket connection to an overlay client
type Connection struct {
	ID      string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	ctx    context.Context
	cancel context.CancelFunc

	ConnectedAt time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		SendBufferSize:  64,
		CheckOrigin: func(r *http.Request) bool {
			// The overlay is loaded from a local file or the ACT plugin host
			return true
		},
	}
}

// NewConnectionManager creates a connection manager. dismisser handles client
// dismiss commands and may be nil, in which case they are refused.
func NewConnectionManager(config ConnectionConfig, dismisser Dismisser, counter ClientCounter) *ConnectionManager {
	if counter == nil {
		counter = noCounter{}
	}
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = DefaultConnectionConfig().SendBufferSize
	}
	return &ConnectionManager{
		connections: make(map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		dismisser:   dismisser,
		counter:     counter,
		broadcastCh: make(chan []byte, 256),
	}
}

// Start fans published frames out to the connected clients until ctx is done
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			cm.closeAll()
			log.Info().Msg("connection manager shutting down")
			return
		case frame := <-cm.broadcastCh:
			cm.handleBroadcast(frame)
		}
	}
}

// PublishTimers encodes a snapshot and queues it for every client. It never
// blocks; when the queue is full the frame is dropped and the next clock tick
// brings clients up to date.
func (cm *ConnectionManager) PublishTimers(snapshot engine.Snapshot) {
	frame, err := json.Marshal(NewTimersMessage(snapshot))
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal timers for broadcast")
		return
	}

	cm.latestMu.Lock()
	cm.latest = frame
	cm.latestMu.Unlock()

	select {
	case cm.broadcastCh <- frame:
	default:
		log.Warn().Msg("broadcast channel full, dropping timers frame")
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		ctx:         ctx,
		cancel:      cancel,
		ConnectedAt: time.Now(),
	}

	// Registering under the read lock means a concurrent publish either lands
	// in latest before we copy it or is broadcast after we joined.
	cm.latestMu.RLock()
	if cm.latest != nil {
		connection.Send <- cm.latest
	}
	cm.registerConnection(connection)
	cm.latestMu.RUnlock()

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("remote_addr", r.RemoteAddr).
		Msg("WebSocket connection established")

	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	cm.connections[conn] = true
	total := len(cm.connections)
	cm.mu.Unlock()

	cm.counter.SetConnectedClients(total)
	log.Debug().
		Str("connection_id", conn.ID).
		Int("total_connections", total).
		Msg("connection registered")
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	if _, exists := cm.connections[conn]; !exists {
		cm.mu.Unlock()
		return
	}
	delete(cm.connections, conn)
	close(conn.Send)
	conn.cancel()
	total := len(cm.connections)
	cm.mu.Unlock()

	cm.counter.SetConnectedClients(total)
	log.Info().
		Str("connection_id", conn.ID).
		Dur("connected_for", time.Since(conn.ConnectedAt)).
		Msg("connection unregistered")
}

// send queues a frame for one client, dropping the client if it has fallen
// behind. The manager lock guards against sending on a closed channel.
func (cm *ConnectionManager) send(conn *Connection, frame []byte) bool {
	cm.mu.RLock()
	if _, exists := cm.connections[conn]; !exists {
		cm.mu.RUnlock()
		return false
	}
	select {
	case conn.Send <- frame:
		cm.mu.RUnlock()
		return true
	default:
	}
	cm.mu.RUnlock()

	log.Warn().
		Str("connection_id", conn.ID).
		Msg("connection send buffer full, closing connection")
	cm.unregisterConnection(conn)
	conn.Conn.Close()
	return false
}

func (cm *ConnectionManager) handleBroadcast(frame []byte) {
	cm.mu.RLock()
	targets := make([]*Connection, 0, len(cm.connections))
	for conn := range cm.connections {
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range targets {
		cm.send(conn, frame)
	}
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	targets := make([]*Connection, 0, len(cm.connections))
	for conn := range cm.connections {
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range targets {
		cm.unregisterConnection(conn)
	}
}

// ConnectionStats is a point-in-time view of the connection pool
type ConnectionStats struct {
	TotalConnections int       `json:"total_connections"`
	OldestConnected  time.Time `json:"oldest_connected,omitzero"`
}

func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{TotalConnections: len(cm.connections)}
	for conn := range cm.connections {
		if stats.OldestConnected.IsZero() || conn.ConnectedAt.Before(stats.OldestConnected) {
			stats.OldestConnected = conn.ConnectedAt
		}
	}
	return stats
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

// handleClientMessage processes messages received from the client
func (c *Connection) handleClientMessage(message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.reply(ErrorMessage{Type: MessageTypeError, Message: "invalid message"})
		return
	}

	switch msg.Type {
	case MessageTypeDismiss:
		c.handleDismiss(msg.Key)
	default:
		log.Debug().
			Str("connection_id", c.ID).
			Str("type", string(msg.Type)).
			Msg("ignoring client message")
	}
}

func (c *Connection) handleDismiss(rawKey string) {
	if c.Manager.dismisser == nil {
		c.reply(ErrorMessage{Type: MessageTypeError, Message: "dismiss is not available"})
		return
	}

	key, err := timers.ParseKey(rawKey)
	if err != nil {
		c.reply(ErrorMessage{Type: MessageTypeError, Message: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.Manager.config.WriteTimeout)
	defer cancel()

	removed, err := c.Manager.dismisser.Dismiss(ctx, key)
	if err != nil {
		log.Error().Err(err).Str("key", rawKey).Msg("failed to dismiss timer")
		c.reply(ErrorMessage{Type: MessageTypeError, Message: "dismiss failed"})
		return
	}

	log.Debug().
		Str("connection_id", c.ID).
		Str("key", rawKey).
		Bool("removed", removed).
		Msg("client dismissed timer")
	c.reply(DismissedMessage{Type: MessageTypeDismissed, Key: key.String(), Removed: removed})
}

func (c *Connection) reply(v any) {
	frame, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal reply")
		return
	}
	c.Manager.send(c, frame)
}

type noCounter struct{}

func (noCounter) SetConnectedClients(int) {}
