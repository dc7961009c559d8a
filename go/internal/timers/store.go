package timers

import (
	"sort"
	"time"
)

// CastEvent is one observed use of an action by a caster
type CastEvent struct {
	ActionID   int
	ActionName string
	CasterID   string
	CasterName string
	TargetName string
	CastAt     time.Time
}

// Store maps each timer identity to its recent cast history. Histories are
// never empty: an identity without events has no entry at all.
// Not safe for concurrent use; the engine goroutine owns it.
type Store struct {
	tracking map[Key][]CastEvent
}

func NewStore() *Store {
	return &Store{tracking: make(map[Key][]CastEvent)}
}

// Append records a cast. Earlier events for the same key that are a full
// cooldown or more older than the new cast are evicted first.
func (s *Store) Append(key Key, event CastEvent, cooldown time.Duration) {
	previous := s.tracking[key]
	history := make([]CastEvent, 0, len(previous)+1)
	for _, e := range previous {
		if event.CastAt.Sub(e.CastAt) < cooldown {
			history = append(history, e)
		}
	}
	s.tracking[key] = append(history, event)
}

// Remove dismisses a timer outright. It reports whether the key was tracked.
func (s *Store) Remove(key Key) bool {
	if _, ok := s.tracking[key]; !ok {
		return false
	}
	delete(s.tracking, key)
	return true
}

// History returns a copy of the events tracked for key, oldest first
func (s *Store) History(key Key) []CastEvent {
	history := s.tracking[key]
	if len(history) == 0 {
		return nil
	}
	out := make([]CastEvent, len(history))
	copy(out, history)
	return out
}

// Latest returns the most recent event for key
func (s *Store) Latest(key Key) (CastEvent, bool) {
	history := s.tracking[key]
	if len(history) == 0 {
		return CastEvent{}, false
	}
	return history[len(history)-1], true
}

// Len returns the number of tracked identities
func (s *Store) Len() int {
	return len(s.tracking)
}

// Keys returns the tracked identities ordered by action ID, then caster ID
func (s *Store) Keys() []Key {
	keys := make([]Key, 0, len(s.tracking))
	for key := range s.tracking {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ActionID != keys[j].ActionID {
			return keys[i].ActionID < keys[j].ActionID
		}
		return keys[i].CasterID < keys[j].CasterID
	})
	return keys
}
