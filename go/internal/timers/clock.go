package timers

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultResolution is the smallest forward step that moves the synced clock
const DefaultResolution = 50 * time.Millisecond

// SyncedClock estimates the game server's current time from timestamps seen
// in the log, extrapolated forward with the local monotonic clock between
// observations. Not safe for concurrent use.
type SyncedClock struct {
	clock      clockwork.Clock
	resolution time.Duration

	synced      bool
	serverTime  time.Time
	localAnchor time.Time
}

// NewSyncedClock creates an unset clock. A non-positive resolution uses DefaultResolution.
func NewSyncedClock(clock clockwork.Clock, resolution time.Duration) *SyncedClock {
	if resolution <= 0 {
		resolution = DefaultResolution
	}
	return &SyncedClock{
		clock:      clock,
		resolution: resolution,
	}
}

// Synced reports whether an authoritative timestamp has been observed
func (c *SyncedClock) Synced() bool {
	return c.synced
}

// ServerTime returns the last authoritative server time, without extrapolation
func (c *SyncedClock) ServerTime() time.Time {
	return c.serverTime
}

// Observe feeds an authoritative timestamp from the log. The first one syncs
// the clock. Afterwards a timestamp is taken only if it is at least one
// resolution step past the held server time and not behind Now, so Now never
// goes backwards. It reports whether the clock moved.
func (c *SyncedClock) Observe(ts time.Time) bool {
	if !c.synced {
		c.set(ts)
		c.synced = true
		return true
	}
	if ts.Sub(c.serverTime) < c.resolution || ts.Before(c.Now()) {
		return false
	}
	c.set(ts)
	return true
}

// Now returns the estimated server time, or the zero time while unset
func (c *SyncedClock) Now() time.Time {
	if !c.synced {
		return time.Time{}
	}
	return c.serverTime.Add(c.clock.Since(c.localAnchor))
}

// Tick re-anchors the held server time to the extrapolated estimate once
// local time has run at least one resolution step past it. Now is unchanged;
// the return value tells the caller the display should refresh.
func (c *SyncedClock) Tick() bool {
	if !c.synced {
		return false
	}
	now := c.Now()
	if now.Sub(c.serverTime) < c.resolution {
		return false
	}
	c.set(now)
	return true
}

func (c *SyncedClock) set(ts time.Time) {
	c.serverTime = ts
	c.localAnchor = c.clock.Now()
}
