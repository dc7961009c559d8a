package catalog

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Scope is whether an action lands on friendly or enemy units
type Scope int

const (
	ScopeFriendly Scope = iota
	ScopeEnemy
)

var scopeNames = map[Scope]string{
	ScopeFriendly: "friendly",
	ScopeEnemy:    "enemy",
}

func (s Scope) String() string {
	if name, ok := scopeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Scope(%d)", int(s))
}

// ParseScope parses the lower-case scope name used in catalog files and the database
func ParseScope(s string) (Scope, error) {
	for scope, name := range scopeNames {
		if strings.EqualFold(s, name) {
			return scope, nil
		}
	}
	return 0, fmt.Errorf("unknown scope %q", s)
}

func (s Scope) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Scope) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseScope(value.Value)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Targeting is the cardinality of an action's effect
type Targeting int

const (
	TargetSelf Targeting = iota
	TargetSingle
	TargetMany
)

var targetingNames = map[Targeting]string{
	TargetSelf:   "self",
	TargetSingle: "single",
	TargetMany:   "many",
}

func (t Targeting) String() string {
	if name, ok := targetingNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Targeting(%d)", int(t))
}

// ParseTargeting parses the lower-case targeting name used in catalog files and the database
func ParseTargeting(s string) (Targeting, error) {
	for targeting, name := range targetingNames {
		if strings.EqualFold(s, name) {
			return targeting, nil
		}
	}
	return 0, fmt.Errorf("unknown targeting %q", s)
}

func (t Targeting) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Targeting) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseTargeting(value.Value)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Entry is the static metadata for one tracked action
type Entry struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	DurationSec float64   `json:"duration_sec"`
	CooldownSec float64   `json:"cooldown_sec"`
	Scope       Scope     `json:"scope"`
	Targeting   Targeting `json:"targeting"`
	Job         string    `json:"job"`
	Tags        []string  `json:"tags"`
}

// Duration is how long the effect stays up after a cast
func (e Entry) Duration() time.Duration {
	return secondsToDuration(e.DurationSec)
}

// Cooldown is how long until the action can be used again after a cast
func (e Entry) Cooldown() time.Duration {
	return secondsToDuration(e.CooldownSec)
}

// HasAnyTag reports whether the entry belongs to at least one of the given sets
func (e Entry) HasAnyTag(tags []string) bool {
	for _, want := range tags {
		for _, tag := range e.Tags {
			if tag == want {
				return true
			}
		}
	}
	return false
}

func secondsToDuration(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}
