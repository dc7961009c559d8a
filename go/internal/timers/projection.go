package timers

import (
	"sort"
	"time"

	"github.com/DarkIrata/ffxiv-act-minioverlay/go/internal/catalog"
)

// State is the display state of a timer
type State string

const (
	StateActive   State = "active"
	StateCooldown State = "cooldown"
)

// DefaultHideAfterCooldowns hides a timer once this many cooldowns have
// elapsed since its last cast.
const DefaultHideAfterCooldowns = 2.0

// DisplayTimer is the presentation state of one timer at a point in time.
// It is derived fresh on each projection and never stored.
type DisplayTimer struct {
	Key        Key
	State      State
	Remaining  time.Duration
	Percentage float64
	Job        string
	ActionName string
	CasterName string
	SubText    string
	Icon       string
}

// Seconds is the remaining time rounded up, like the game's own buff timers
func (t DisplayTimer) Seconds() int {
	if t.Remaining <= 0 {
		return 0
	}
	return int((t.Remaining + time.Second - 1) / time.Second)
}

// Width is Percentage clamped to [0, 1] for drawing a bar
func (t DisplayTimer) Width() float64 {
	switch {
	case t.Percentage < 0:
		return 0
	case t.Percentage > 1:
		return 1
	default:
		return t.Percentage
	}
}

// MetadataFunc resolves the catalog entry for an action
type MetadataFunc func(actionID int) (catalog.Entry, bool)

type projectOptions struct {
	hideAfterCooldowns float64
}

type ProjectOption func(*projectOptions)

// WithHideAfterCooldowns overrides DefaultHideAfterCooldowns
func WithHideAfterCooldowns(n float64) ProjectOption {
	return func(o *projectOptions) {
		if n > 0 {
			o.hideAfterCooldowns = n
		}
	}
}

// Project derives the display list for every tracked identity at now. It only
// reads the store. Active timers come first, then cooldowns; each group is
// ordered by remaining time, then action ID, then caster ID.
func Project(s *Store, now time.Time, metadataOf MetadataFunc, opts ...ProjectOption) []DisplayTimer {
	o := projectOptions{hideAfterCooldowns: DefaultHideAfterCooldowns}
	for _, opt := range opts {
		opt(&o)
	}

	out := make([]DisplayTimer, 0, len(s.tracking))
	for key, history := range s.tracking {
		if len(history) == 0 {
			continue
		}
		entry, ok := metadataOf(key.ActionID)
		if !ok {
			continue
		}
		if timer, visible := projectOne(key, history[len(history)-1], entry, now, o.hideAfterCooldowns); visible {
			out = append(out, timer)
		}
	}

	sort.Slice(out, func(i, j int) bool { return displayLess(out[i], out[j]) })
	return out
}

func projectOne(key Key, event CastEvent, entry catalog.Entry, now time.Time, hideAfter float64) (DisplayTimer, bool) {
	elapsed := now.Sub(event.CastAt)
	duration := entry.Duration()
	cooldown := entry.Cooldown()

	timer := DisplayTimer{
		Key:        key,
		Job:        entry.Job,
		ActionName: event.ActionName,
		CasterName: event.CasterName,
	}

	switch {
	case duration > 0 && elapsed < duration:
		timer.State = StateActive
		timer.Remaining = max(0, duration-elapsed)
		timer.Percentage = float64(timer.Remaining) / float64(duration)
		if entry.Targeting != catalog.TargetMany {
			timer.SubText = event.TargetName
		}
	case cooldown > 0 && elapsed < time.Duration(float64(cooldown)*hideAfter):
		timer.State = StateCooldown
		timer.Remaining = max(0, cooldown-elapsed)
		timer.Percentage = float64(elapsed) / float64(cooldown)
	default:
		return DisplayTimer{}, false
	}

	return timer, true
}

func stateRank(s State) int {
	if s == StateActive {
		return 0
	}
	return 1
}

func displayLess(a, b DisplayTimer) bool {
	if ra, rb := stateRank(a.State), stateRank(b.State); ra != rb {
		return ra < rb
	}
	if a.Remaining != b.Remaining {
		return a.Remaining < b.Remaining
	}
	if a.Key.ActionID != b.Key.ActionID {
		return a.Key.ActionID < b.Key.ActionID
	}
	return a.Key.CasterID < b.Key.CasterID
}
