package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DarkIrata/ffxiv-act-minioverlay/go/internal/catalog"
	"github.com/DarkIrata/ffxiv-act-minioverlay/go/internal/engine"
	"github.com/DarkIrata/ffxiv-act-minioverlay/go/internal/timers"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const chainKey = "7436|10001234"

var epoch = time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)

func chainStratagem(casterID string) string {
	return fmt.Sprintf("21|%s|%s|Aria|1D0C|Chain Stratagem|40001A2B|Striking Dummy|0|0",
		epoch.Format(time.RFC3339Nano), casterID)
}

type clientCounter struct {
	mu sync.Mutex
	n  int
}

func (c *clientCounter) SetConnectedClients(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = n
}

func (c *clientCounter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

type GatewaySuite struct {
	suite.Suite
	engine  *engine.Engine
	service *Service
	counter *clientCounter
	server  *httptest.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func TestGatewaySuite(t *testing.T) {
	suite.Run(t, new(GatewaySuite))
}

func (s *GatewaySuite) SetupTest() {
	cat, err := catalog.Default()
	s.Require().NoError(err)

	s.engine = engine.New(cat.QueryTags([]string{"damage"}), engine.DefaultConfig(),
		engine.WithClock(clockwork.NewFakeClock()))
	s.counter = &clientCounter{}
	s.service = NewService(DefaultConfig(), s.engine, s.counter)
	s.engine.SetPublisher(s.service)

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.engine.Run(s.ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.service.Start(s.ctx)
	}()

	mux := http.NewServeMux()
	s.service.RegisterRoutes(mux)
	s.server = httptest.NewServer(mux)
}

func (s *GatewaySuite) TearDownTest() {
	s.server.Close()
	s.cancel()
	s.wg.Wait()
}

func (s *GatewaySuite) submit(line string) {
	s.Require().NoError(s.engine.Submit(s.ctx, line))
}

func (s *GatewaySuite) dial() *websocket.Conn {
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws/timers"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	s.T().Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads frames until one decodes to a message of the wanted type
// that satisfies match.
func (s *GatewaySuite) readUntil(conn *websocket.Conn, want MessageType, match func(raw []byte) bool) []byte {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	for {
		_, raw, err := conn.ReadMessage()
		s.Require().NoError(err)

		var head struct {
			Type MessageType `json:"type"`
		}
		s.Require().NoError(json.Unmarshal(raw, &head))
		if head.Type == want && match(raw) {
			return raw
		}
	}
}

func (s *GatewaySuite) TestGetTimers() {
	s.submit(chainStratagem("10001234"))

	resp, err := http.Get(s.server.URL + "/api/timers")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	var msg TimersMessage
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&msg))
	s.Equal(MessageTypeTimers, msg.Type)
	s.True(epoch.Equal(msg.ServerTime))
	s.Require().Len(msg.Timers, 1)

	view := msg.Timers[0]
	s.Equal(timers.IdentityFor(0x1d0c, "10001234"), view.Key)
	s.Equal(timers.StateActive, view.State)
	s.Equal(15, view.Seconds)
	s.Equal(1.0, view.Width)
	s.Equal("Chain Stratagem", view.Action)
	s.Equal("Aria", view.Source)
	s.Equal("Striking Dummy", view.SubText)
	s.Equal("sch", view.Job)
}

func (s *GatewaySuite) TestGetTimersRejectsPost() {
	resp, err := http.Post(s.server.URL+"/api/timers", "application/json", nil)
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(http.StatusMethodNotAllowed, resp.StatusCode)
}

func (s *GatewaySuite) TestDismissOverHTTP() {
	s.submit(chainStratagem("10001234"))

	dismiss := func(key string) (*http.Response, DismissedMessage) {
		body, err := json.Marshal(DismissRequest{Key: key})
		s.Require().NoError(err)
		resp, err := http.Post(s.server.URL+"/api/timers/dismiss", "application/json", bytes.NewReader(body))
		s.Require().NoError(err)
		defer resp.Body.Close()

		var msg DismissedMessage
		if resp.StatusCode == http.StatusOK {
			s.Require().NoError(json.NewDecoder(resp.Body).Decode(&msg))
		}
		return resp, msg
	}

	resp, _ := dismiss("not-a-key")
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	resp, msg := dismiss(chainKey)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.True(msg.Removed)
	s.Equal(chainKey, msg.Key)

	resp, msg = dismiss(chainKey)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.False(msg.Removed)

	snapshot, err := s.engine.Snapshot(s.ctx)
	s.Require().NoError(err)
	s.Empty(snapshot.Timers)
}

func (s *GatewaySuite) TestGetActions() {
	resp, err := http.Get(s.server.URL + "/api/actions")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	var entries []map[string]any
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&entries))
	s.Len(entries, s.engine.Catalog().Len())
}

func (s *GatewaySuite) TestWebSocketReceivesTimers() {
	conn := s.dial()
	s.Eventually(func() bool { return s.counter.get() == 1 }, time.Second, 5*time.Millisecond)

	s.submit(chainStratagem("10001234"))

	raw := s.readUntil(conn, MessageTypeTimers, func(raw []byte) bool {
		var msg TimersMessage
		return json.Unmarshal(raw, &msg) == nil && len(msg.Timers) == 1
	})
	s.Contains(string(raw), `"key":"`+chainKey+`"`)
}

func (s *GatewaySuite) TestLateJoinerGetsLatestTimers() {
	s.submit(chainStratagem("10001234"))
	_, err := s.engine.Snapshot(s.ctx)
	s.Require().NoError(err)

	conn := s.dial()
	s.readUntil(conn, MessageTypeTimers, func(raw []byte) bool {
		var msg TimersMessage
		return json.Unmarshal(raw, &msg) == nil && len(msg.Timers) == 1
	})
}

func (s *GatewaySuite) TestWebSocketDismiss() {
	s.submit(chainStratagem("10001234"))
	conn := s.dial()
	s.Eventually(func() bool { return s.counter.get() == 1 }, time.Second, 5*time.Millisecond)

	s.Require().NoError(conn.WriteJSON(ClientMessage{Type: MessageTypeDismiss, Key: chainKey}))

	// The reply and the refreshed timer list travel separately and may arrive
	// in either order.
	var dismissed, cleared bool
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	for !dismissed || !cleared {
		_, raw, err := conn.ReadMessage()
		s.Require().NoError(err)

		var msg struct {
			Type    MessageType `json:"type"`
			Removed bool        `json:"removed"`
			Timers  []TimerView `json:"timers"`
		}
		s.Require().NoError(json.Unmarshal(raw, &msg))
		switch msg.Type {
		case MessageTypeDismissed:
			s.True(msg.Removed)
			dismissed = true
		case MessageTypeTimers:
			if len(msg.Timers) == 0 {
				cleared = true
			}
		}
	}
}

func (s *GatewaySuite) TestWebSocketRejectsBadCommands() {
	conn := s.dial()

	s.Require().NoError(conn.WriteMessage(websocket.TextMessage, []byte("{")))
	s.readUntil(conn, MessageTypeError, func([]byte) bool { return true })

	s.Require().NoError(conn.WriteJSON(ClientMessage{Type: MessageTypeDismiss, Key: "7436"}))
	raw := s.readUntil(conn, MessageTypeError, func([]byte) bool { return true })
	s.Contains(string(raw), "invalid timer key")
}

func (s *GatewaySuite) TestConnectionStats() {
	conn := s.dial()
	s.Eventually(func() bool { return s.counter.get() == 1 }, time.Second, 5*time.Millisecond)

	resp, err := http.Get(s.server.URL + "/ws/stats")
	s.Require().NoError(err)
	var stats ConnectionStats
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&stats))
	resp.Body.Close()
	s.Equal(1, stats.TotalConnections)

	conn.Close()
	s.Eventually(func() bool { return s.counter.get() == 0 }, time.Second, 5*time.Millisecond)
}

func TestNewTimersMessage(t *testing.T) {
	snapshot := engine.Snapshot{
		ServerTime: epoch,
		Timers: []timers.DisplayTimer{{
			Key:        timers.IdentityFor(0x40a8, "10005678"),
			State:      timers.StateCooldown,
			Remaining:  1500 * time.Millisecond,
			Percentage: 1.2,
			Job:        "ast",
			ActionName: "Divination",
			CasterName: "Lyse",
		}},
	}

	msg := NewTimersMessage(snapshot)
	require.Len(t, msg.Timers, 1)
	view := msg.Timers[0]
	assert.Equal(t, MessageTypeTimers, msg.Type)
	assert.Equal(t, 1.5, view.RemainingSec)
	assert.Equal(t, 2, view.Seconds)
	assert.Equal(t, 1.0, view.Width)
	assert.Equal(t, 1.2, view.Percentage)
	assert.Equal(t, "Lyse", view.Source)

	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"key":"16552|10005678"`)
	assert.NotContains(t, string(raw), "sub_text")
}
