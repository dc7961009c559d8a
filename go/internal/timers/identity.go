package timers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Key identifies a timer by the action used and the caster who used it.
// It is a comparable value, so equal pairs collapse to the same map key.
type Key struct {
	ActionID int
	CasterID string
}

// IdentityFor returns the key for an (action, caster) pair
func IdentityFor(actionID int, casterID string) Key {
	return Key{ActionID: actionID, CasterID: casterID}
}

// String renders the wire form "actionID|casterID"
func (k Key) String() string {
	return strconv.Itoa(k.ActionID) + "|" + k.CasterID
}

func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Key) UnmarshalText(text []byte) error {
	parsed, err := ParseKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

var errInvalidKey = errors.New("invalid timer key")

// ParseKey parses the wire form produced by Key.String
func ParseKey(s string) (Key, error) {
	actionPart, casterID, ok := strings.Cut(s, "|")
	if !ok || casterID == "" {
		return Key{}, fmt.Errorf("%w: %q", errInvalidKey, s)
	}
	actionID, err := strconv.Atoi(actionPart)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %q", errInvalidKey, s)
	}
	return IdentityFor(actionID, casterID), nil
}

// Registry records every identity seen during the process lifetime.
// Not safe for concurrent use; the engine goroutine owns it.
type Registry struct {
	seen map[Key]struct{}
}

func NewRegistry() *Registry {
	return &Registry{seen: make(map[Key]struct{})}
}

// For returns the canonical key for the pair, recording it on first sighting
func (r *Registry) For(actionID int, casterID string) Key {
	key := IdentityFor(actionID, casterID)
	r.seen[key] = struct{}{}
	return key
}

// Len returns the number of distinct identities seen so far
func (r *Registry) Len() int {
	return len(r.seen)
}
