package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed actions.yaml
var defaultActions []byte

type fileFormat struct {
	Actions []fileEntry `yaml:"actions"`
}

type fileEntry struct {
	ID        string    `yaml:"id"`
	Name      string    `yaml:"name"`
	Duration  float64   `yaml:"duration"`
	Cooldown  float64   `yaml:"cooldown"`
	Scope     Scope     `yaml:"scope"`
	Targeting Targeting `yaml:"targeting"`
	Job       string    `yaml:"job"`
	Tags      []string  `yaml:"tags"`
}

// Default returns the built-in action table
func Default() (*Catalog, error) {
	return Load(bytes.NewReader(defaultActions))
}

// LoadFile reads a YAML catalog from disk
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// Load parses a YAML catalog
func Load(r io.Reader) (*Catalog, error) {
	var file fileFormat
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	entries := make(map[int]Entry, len(file.Actions))
	for _, fe := range file.Actions {
		id, err := ParseActionID(fe.ID)
		if err != nil {
			return nil, fmt.Errorf("action %q: %w", fe.Name, err)
		}
		if _, exists := entries[id]; exists {
			return nil, fmt.Errorf("duplicate action id %#x", id)
		}
		if fe.Duration < 0 || fe.Cooldown < 0 {
			return nil, fmt.Errorf("action %#x: duration and cooldown must not be negative", id)
		}
		entries[id] = Entry{
			ID:          id,
			Name:        fe.Name,
			DurationSec: fe.Duration,
			CooldownSec: fe.Cooldown,
			Scope:       fe.Scope,
			Targeting:   fe.Targeting,
			Job:         fe.Job,
			Tags:        fe.Tags,
		}
	}

	return New(entries), nil
}

// ParseActionID parses the hexadecimal action ID used by the combat log
func ParseActionID(s string) (int, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	id, err := strconv.ParseInt(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid action id %q: %w", s, err)
	}
	if id < 0 {
		return 0, fmt.Errorf("invalid action id %q: negative", s)
	}
	return int(id), nil
}
