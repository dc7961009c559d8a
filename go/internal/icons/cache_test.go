package icons

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	mu      sync.Mutex
	calls   []int
	release chan struct{}
	err     error
}

func (f *stubFetcher) ActionIcon(ctx context.Context, actionID int) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, actionID)
	f.mu.Unlock()

	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return "", f.err
	}
	return "https://icons.test/" + string(rune('a'+actionID%26)) + ".png", nil
}

func (f *stubFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type countingRecorder struct {
	mu        sync.Mutex
	successes int
	failures  int
}

func (r *countingRecorder) RecordIconFetch(success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if success {
		r.successes++
	} else {
		r.failures++
	}
}

func (r *countingRecorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.successes, r.failures
}

func TestCacheFetchesOnMiss(t *testing.T) {
	fetcher := &stubFetcher{}
	recorder := &countingRecorder{}
	cache := NewCache(fetcher, WithClock(clockwork.NewFakeClock()), WithRecorder(recorder))

	_, ok := cache.Get(1)
	assert.False(t, ok)

	require.Eventually(t, func() bool { return cache.Len() == 1 }, time.Second, time.Millisecond)

	url, ok := cache.Get(1)
	assert.True(t, ok)
	assert.Equal(t, "https://icons.test/b.png", url)
	assert.Equal(t, 1, fetcher.callCount())

	require.Eventually(t, func() bool {
		successes, failures := recorder.counts()
		return successes == 1 && failures == 0
	}, time.Second, time.Millisecond)
}

func TestCacheAllowsOneRequestInFlight(t *testing.T) {
	fetcher := &stubFetcher{release: make(chan struct{})}
	cache := NewCache(fetcher, WithClock(clockwork.NewFakeClock()))

	cache.Get(1)
	cache.Get(2)
	cache.Get(3)

	require.Eventually(t, func() bool { return fetcher.callCount() == 1 }, time.Second, time.Millisecond)
	close(fetcher.release)
	require.Eventually(t, func() bool { return cache.Len() == 1 }, time.Second, time.Millisecond)

	_, ok := cache.Get(2)
	assert.False(t, ok)
	assert.Equal(t, 1, fetcher.callCount())
}

func TestCacheSpacesRequests(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fetcher := &stubFetcher{}
	cache := NewCache(fetcher, WithClock(clock), WithSpacing(125*time.Millisecond))

	cache.Get(1)
	require.Eventually(t, func() bool { return cache.Len() == 1 }, time.Second, time.Millisecond)

	clock.Advance(100 * time.Millisecond)
	cache.Get(2)
	assert.Never(t, func() bool { return fetcher.callCount() > 1 }, 20*time.Millisecond, time.Millisecond)

	clock.Advance(25 * time.Millisecond)
	cache.Get(2)
	require.Eventually(t, func() bool { return cache.Len() == 2 }, time.Second, time.Millisecond)
}

func TestCacheSwallowsFailures(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fetcher := &stubFetcher{err: errors.New("network down")}
	recorder := &countingRecorder{}
	cache := NewCache(fetcher, WithClock(clock), WithRecorder(recorder))

	_, ok := cache.Get(1)
	assert.False(t, ok)
	require.Eventually(t, func() bool {
		_, failures := recorder.counts()
		return failures == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, 0, cache.Len())

	// retried once the spacing has passed
	clock.Advance(DefaultSpacing)
	cache.Get(1)
	require.Eventually(t, func() bool { return fetcher.callCount() == 2 }, time.Second, time.Millisecond)
}
