package timers

import (
	"testing"
	"time"

	"github.com/DarkIrata/ffxiv-act-minioverlay/go/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	buffAction  = 0x1d0c
	groupAction = 0x40a8
	shortAction = 0x8d2
)

var testCatalog = catalog.New(map[int]catalog.Entry{
	buffAction:  {Name: "Chain Stratagem", DurationSec: 15, CooldownSec: 120, Scope: catalog.ScopeEnemy, Targeting: catalog.TargetSingle, Job: "sch"},
	groupAction: {Name: "Divination", DurationSec: 15, CooldownSec: 120, Scope: catalog.ScopeFriendly, Targeting: catalog.TargetMany, Job: "ast"},
	shortAction: {Name: "Trick Attack", DurationSec: 15, CooldownSec: 60, Scope: catalog.ScopeEnemy, Targeting: catalog.TargetSingle, Job: "nin"},
})

func appendCast(s *Store, actionID int, casterID string, offset time.Duration) Key {
	entry, _ := testCatalog.Lookup(actionID)
	key := IdentityFor(actionID, casterID)
	s.Append(key, CastEvent{
		ActionID:   actionID,
		ActionName: entry.Name,
		CasterID:   casterID,
		CasterName: "caster " + casterID,
		TargetName: "target of " + casterID,
		CastAt:     serverEpoch.Add(offset),
	}, entry.Cooldown())
	return key
}

func projectAt(s *Store, offset time.Duration, opts ...ProjectOption) []DisplayTimer {
	return Project(s, serverEpoch.Add(offset), testCatalog.Lookup, opts...)
}

func TestProjectLifecycle(t *testing.T) {
	s := NewStore()
	key := appendCast(s, buffAction, "1", 0)

	t.Run("active", func(t *testing.T) {
		out := projectAt(s, 10*time.Second)
		require.Len(t, out, 1)
		assert.Equal(t, key, out[0].Key)
		assert.Equal(t, StateActive, out[0].State)
		assert.Equal(t, 5*time.Second, out[0].Remaining)
		assert.InDelta(t, 5.0/15.0, out[0].Percentage, 1e-9)
		assert.Equal(t, "sch", out[0].Job)
		assert.Equal(t, "Chain Stratagem", out[0].ActionName)
		assert.Equal(t, "caster 1", out[0].CasterName)
		assert.Equal(t, "target of 1", out[0].SubText)
	})

	t.Run("cooldown", func(t *testing.T) {
		out := projectAt(s, 20*time.Second)
		require.Len(t, out, 1)
		assert.Equal(t, StateCooldown, out[0].State)
		assert.Equal(t, 100*time.Second, out[0].Remaining)
		assert.InDelta(t, 20.0/120.0, out[0].Percentage, 1e-9)
		assert.Empty(t, out[0].SubText)
	})

	t.Run("cooldown finished but not yet hidden", func(t *testing.T) {
		out := projectAt(s, 200*time.Second)
		require.Len(t, out, 1)
		assert.Equal(t, StateCooldown, out[0].State)
		assert.Zero(t, out[0].Remaining)
		assert.Greater(t, out[0].Percentage, 1.0)
		assert.Equal(t, 1.0, out[0].Width())
	})

	t.Run("hidden after two cooldowns but still stored", func(t *testing.T) {
		assert.Empty(t, projectAt(s, 241*time.Second))
		assert.Empty(t, projectAt(s, 240*time.Second))
		assert.Equal(t, 1, s.Len())
	})
}

func TestProjectPercentageFallsWhileActive(t *testing.T) {
	s := NewStore()
	appendCast(s, buffAction, "1", 0)

	last := 2.0
	for offset := time.Duration(0); offset < 15*time.Second; offset += 500 * time.Millisecond {
		out := projectAt(s, offset)
		require.Len(t, out, 1)
		require.Equal(t, StateActive, out[0].State)
		assert.Less(t, out[0].Percentage, last)
		last = out[0].Percentage
	}
}

func TestProjectUsesLatestEvent(t *testing.T) {
	s := NewStore()
	key := appendCast(s, shortAction, "1", 0)
	appendCast(s, shortAction, "1", 50*time.Second)
	require.Len(t, s.History(key), 2)

	out := projectAt(s, 55*time.Second)
	require.Len(t, out, 1)
	assert.Equal(t, StateActive, out[0].State)
	assert.Equal(t, 10*time.Second, out[0].Remaining)
}

func TestProjectSubTextOnlyForSingleTargets(t *testing.T) {
	s := NewStore()
	appendCast(s, groupAction, "1", 0)

	out := projectAt(s, time.Second)
	require.Len(t, out, 1)
	assert.Equal(t, StateActive, out[0].State)
	assert.Empty(t, out[0].SubText)
}

func TestProjectOrdering(t *testing.T) {
	s := NewStore()
	appendCast(s, buffAction, "b", 0)               // cooldown, 70s left at t=50
	appendCast(s, shortAction, "a", 0)              // cooldown, 10s left at t=50
	appendCast(s, buffAction, "a", 40*time.Second)  // active, 5s left
	appendCast(s, groupAction, "a", 45*time.Second) // active, 10s left
	appendCast(s, shortAction, "b", 45*time.Second) // active, 10s left
	appendCast(s, shortAction, "c", 45*time.Second) // active, 10s left

	out := projectAt(s, 50*time.Second)
	got := make([]Key, len(out))
	for i, timer := range out {
		got[i] = timer.Key
	}

	assert.Equal(t, []Key{
		IdentityFor(buffAction, "a"),
		IdentityFor(shortAction, "b"),
		IdentityFor(shortAction, "c"),
		IdentityFor(groupAction, "a"),
		IdentityFor(shortAction, "a"),
		IdentityFor(buffAction, "b"),
	}, got)
}

func TestProjectDoesNotMutateStore(t *testing.T) {
	s := NewStore()
	key := appendCast(s, buffAction, "1", 0)
	before := s.History(key)

	projectAt(s, 10*time.Second)
	projectAt(s, time.Hour)

	assert.Equal(t, before, s.History(key))
	assert.Equal(t, 1, s.Len())
}

func TestProjectAfterRemove(t *testing.T) {
	s := NewStore()
	key := appendCast(s, buffAction, "1", 0)
	s.Remove(key)

	assert.Empty(t, projectAt(s, time.Second))
}

func TestProjectSkipsUnknownActions(t *testing.T) {
	s := NewStore()
	s.Append(IdentityFor(0x1, "1"), CastEvent{ActionID: 0x1, CastAt: serverEpoch}, time.Minute)

	assert.Empty(t, projectAt(s, time.Second))
}

func TestWithHideAfterCooldowns(t *testing.T) {
	s := NewStore()
	appendCast(s, shortAction, "1", 0)

	assert.Empty(t, projectAt(s, 130*time.Second))
	assert.Len(t, projectAt(s, 130*time.Second, WithHideAfterCooldowns(3)), 1)
	assert.Empty(t, projectAt(s, 61*time.Second, WithHideAfterCooldowns(1)))
}

func TestDisplayTimerSeconds(t *testing.T) {
	assert.Equal(t, 5, DisplayTimer{Remaining: 5 * time.Second}.Seconds())
	assert.Equal(t, 5, DisplayTimer{Remaining: 4*time.Second + time.Millisecond}.Seconds())
	assert.Equal(t, 0, DisplayTimer{}.Seconds())
	assert.Equal(t, 0.0, DisplayTimer{Percentage: -0.2}.Width())
}
