package icons

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// DefaultSpacing keeps requests at or below 8 per second
const DefaultSpacing = time.Second / 8

// Fetcher resolves an action's icon URL from the remote API
type Fetcher interface {
	ActionIcon(ctx context.Context, actionID int) (string, error)
}

// Recorder receives fetch results for metrics
type Recorder interface {
	RecordIconFetch(success bool)
}

type noopRecorder struct{}

func (noopRecorder) RecordIconFetch(bool) {}

// Cache is the process-wide icon lookup. Get never blocks: it answers from
// the cache and, on a miss, starts a background fetch when no other fetch is
// running and the last one finished at least one spacing interval ago.
// Failed fetches are logged and otherwise ignored; a later Get retries.
type Cache struct {
	fetcher  Fetcher
	clock    clockwork.Clock
	spacing  time.Duration
	timeout  time.Duration
	recorder Recorder

	mu          sync.Mutex
	icons       map[int]string
	inFlight    bool
	lastRequest time.Time
}

type Option func(*Cache)

func WithClock(clock clockwork.Clock) Option {
	return func(c *Cache) { c.clock = clock }
}

func WithSpacing(spacing time.Duration) Option {
	return func(c *Cache) { c.spacing = spacing }
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Cache) { c.timeout = timeout }
}

func WithRecorder(recorder Recorder) Option {
	return func(c *Cache) { c.recorder = recorder }
}

func NewCache(fetcher Fetcher, opts ...Option) *Cache {
	c := &Cache{
		fetcher:  fetcher,
		clock:    clockwork.NewRealClock(),
		spacing:  DefaultSpacing,
		timeout:  10 * time.Second,
		recorder: noopRecorder{},
		icons:    make(map[int]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached icon URL for an action, if any
func (c *Cache) Get(actionID int) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if url, ok := c.icons[actionID]; ok {
		return url, true
	}

	if c.inFlight || (!c.lastRequest.IsZero() && c.clock.Since(c.lastRequest) < c.spacing) {
		return "", false
	}

	c.inFlight = true
	go c.fetch(actionID)
	return "", false
}

// Len returns the number of cached icons
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.icons)
}

func (c *Cache) fetch(actionID int) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	url, err := c.fetcher.ActionIcon(ctx, actionID)

	c.mu.Lock()
	c.inFlight = false
	c.lastRequest = c.clock.Now()
	if err == nil {
		c.icons[actionID] = url
	}
	c.mu.Unlock()

	c.recorder.RecordIconFetch(err == nil)
	if err != nil {
		log.Debug().Err(err).Int("action_id", actionID).Msg("icon fetch failed")
		return
	}
	log.Debug().Int("action_id", actionID).Str("icon", url).Msg("icon cached")
}
