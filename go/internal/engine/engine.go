package engine

import (
	"context"
	"errors"
	"time"

	"github.com/DarkIrata/ffxiv-act-minioverlay/go/internal/catalog"
	"github.com/DarkIrata/ffxiv-act-minioverlay/go/internal/ingest"
	"github.com/DarkIrata/ffxiv-act-minioverlay/go/internal/timers"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// ErrStopped is returned by calls made after Run has returned
var ErrStopped = errors.New("engine stopped")

// Snapshot is one projection of the tracking store
type Snapshot struct {
	ServerTime time.Time
	Timers     []timers.DisplayTimer
}

// Publisher receives every projection the engine produces. It is called on
// the engine goroutine and must not block.
type Publisher interface {
	PublishTimers(snapshot Snapshot)
}

// IconSource decorates projections with icon URLs. It must not block.
type IconSource interface {
	Get(actionID int) (string, bool)
}

// Recorder receives engine statistics for metrics
type Recorder interface {
	RecordIngest(outcome string)
	SetTrackedTimers(n int)
	SetVisibleTimers(n int)
	SetIdentitiesSeen(n int)
}

// Config holds the engine's tunables
type Config struct {
	// Resolution is both the clock tick period and the smallest clock step
	Resolution time.Duration
	// HideAfterCooldowns hides timers idle for this many cooldowns
	HideAfterCooldowns float64
	// QueueSize bounds the pending message buffer
	QueueSize int
}

func DefaultConfig() Config {
	return Config{
		Resolution:         timers.DefaultResolution,
		HideAfterCooldowns: timers.DefaultHideAfterCooldowns,
		QueueSize:          1024,
	}
}

// Engine owns the synced clock and tracking store and runs every operation on
// them from a single goroutine. Log lines, clock ticks, dismissals and reads
// are applied in the order they reach Run.
type Engine struct {
	config    Config
	clock     clockwork.Clock
	catalog   *catalog.Catalog
	sessionID string

	synced   *timers.SyncedClock
	registry *timers.Registry
	store    *timers.Store
	ingestor *ingest.Ingestor

	icons     IconSource
	publisher Publisher
	recorder  Recorder

	inbox chan func()
	done  chan struct{}
}

type Option func(*Engine)

// WithClock replaces the local monotonic clock. Tests use a fake clock.
func WithClock(clock clockwork.Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

func WithIcons(icons IconSource) Option {
	return func(e *Engine) { e.icons = icons }
}

func WithPublisher(publisher Publisher) Option {
	return func(e *Engine) { e.publisher = publisher }
}

func WithRecorder(recorder Recorder) Option {
	return func(e *Engine) { e.recorder = recorder }
}

// New creates an engine tracking the actions in cat
func New(cat *catalog.Catalog, config Config, opts ...Option) *Engine {
	defaults := DefaultConfig()
	if config.Resolution <= 0 {
		config.Resolution = defaults.Resolution
	}
	if config.HideAfterCooldowns <= 0 {
		config.HideAfterCooldowns = defaults.HideAfterCooldowns
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}

	e := &Engine{
		config:    config,
		clock:     clockwork.NewRealClock(),
		catalog:   cat,
		sessionID: uuid.New().String()[:8],
		icons:     noIcons{},
		publisher: noPublisher{},
		recorder:  noRecorder{},
		inbox:     make(chan func(), config.QueueSize),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.synced = timers.NewSyncedClock(e.clock, config.Resolution)
	e.registry = timers.NewRegistry()
	e.store = timers.NewStore()
	e.ingestor = ingest.New(e.synced, e.registry, e.store, cat)
	return e
}

// Run processes lines, ticks and commands until ctx is cancelled
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.done)

	ticker := e.clock.NewTicker(e.config.Resolution)
	defer ticker.Stop()

	log.Info().
		Str("session", e.sessionID).
		Int("actions", e.catalog.Len()).
		Dur("resolution", e.config.Resolution).
		Msg("timer engine started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("session", e.sessionID).Msg("timer engine shutting down")
			return nil
		case msg := <-e.inbox:
			msg()
		case <-ticker.Chan():
			if e.synced.Tick() {
				e.publish()
			}
		}
	}
}

// Submit queues a raw log line. Lines, dismissals and snapshot reads share
// one queue, so they are applied in the order they were made.
func (e *Engine) Submit(ctx context.Context, line string) error {
	return e.enqueue(ctx, func() { e.ingest(line) })
}

// Dismiss removes a timer regardless of its state. It reports whether the
// timer was being tracked.
func (e *Engine) Dismiss(ctx context.Context, key timers.Key) (bool, error) {
	var removed bool
	err := e.do(ctx, func() {
		removed = e.store.Remove(key)
		if removed {
			log.Debug().Str("key", key.String()).Msg("timer dismissed")
			e.recorder.SetTrackedTimers(e.store.Len())
			e.publish()
		}
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// Snapshot returns the current projection
func (e *Engine) Snapshot(ctx context.Context) (Snapshot, error) {
	var snapshot Snapshot
	err := e.do(ctx, func() {
		snapshot = e.snapshot()
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snapshot, nil
}

// SetPublisher replaces the publisher. It must be called before Run; it lets
// a publisher that itself depends on the engine be wired after New.
func (e *Engine) SetPublisher(publisher Publisher) {
	e.publisher = publisher
}

// Catalog returns the actions tracked this session
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

func (e *Engine) enqueue(ctx context.Context, msg func()) error {
	select {
	case <-e.done:
		return ErrStopped
	default:
	}

	select {
	case e.inbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrStopped
	}
}

// do runs fn on the engine goroutine and waits for it to finish
func (e *Engine) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if err := e.enqueue(ctx, func() {
		fn()
		close(finished)
	}); err != nil {
		return err
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrStopped
	}
}

func (e *Engine) ingest(line string) {
	outcome := e.ingestor.Ingest(line)
	e.recorder.RecordIngest(outcome.String())

	if outcome == ingest.OutcomeTracked {
		e.recorder.SetTrackedTimers(e.store.Len())
		e.recorder.SetIdentitiesSeen(e.registry.Len())
		e.publish()
	}
}

func (e *Engine) snapshot() Snapshot {
	now := e.synced.Now()
	list := timers.Project(e.store, now, e.catalog.Lookup, timers.WithHideAfterCooldowns(e.config.HideAfterCooldowns))
	for i := range list {
		if icon, ok := e.icons.Get(list[i].Key.ActionID); ok {
			list[i].Icon = icon
		}
	}
	return Snapshot{ServerTime: now, Timers: list}
}

func (e *Engine) publish() {
	snapshot := e.snapshot()
	e.recorder.SetVisibleTimers(len(snapshot.Timers))
	e.publisher.PublishTimers(snapshot)
}

type noIcons struct{}

func (noIcons) Get(int) (string, bool) { return "", false }

type noPublisher struct{}

func (noPublisher) PublishTimers(Snapshot) {}

type noRecorder struct{}

func (noRecorder) RecordIngest(string)   {}
func (noRecorder) SetTrackedTimers(int)  {}
func (noRecorder) SetVisibleTimers(int)  {}
func (noRecorder) SetIdentitiesSeen(int) {}
