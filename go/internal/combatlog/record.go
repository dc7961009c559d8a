package combatlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DarkIrata/ffxiv-act-minioverlay/go/internal/catalog"
)

// Record codes for "action used" lines. The game logs single-target and
// area abilities under separate codes with the same leading fields.
const (
	CodeAbility    = "21"
	CodeAOEAbility = "22"
)

var (
	ErrMalformed = errors.New("malformed log line")
	ErrNotCast   = errors.New("not a cast record")
)

// Record is one parsed log line: a code, the server timestamp and the
// remaining fields in order.
type Record struct {
	Code      string
	Timestamp time.Time
	Fields    []string
}

// IsCast reports whether the record is an ability use
func (r Record) IsCast() bool {
	return r.Code == CodeAbility || r.Code == CodeAOEAbility
}

// ParseRecord parses a network log line. Both the pipe-delimited form
// written to disk and the JSON string array sent by the overlay plugin are
// accepted.
func ParseRecord(raw string) (Record, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Record{}, fmt.Errorf("%w: empty line", ErrMalformed)
	}

	var parts []string
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &parts); err != nil {
			return Record{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	} else {
		parts = strings.Split(raw, "|")
	}

	if len(parts) < 2 {
		return Record{}, fmt.Errorf("%w: expected code and timestamp", ErrMalformed)
	}

	ts, err := time.Parse(time.RFC3339Nano, parts[1])
	if err != nil {
		return Record{}, fmt.Errorf("%w: timestamp: %v", ErrMalformed, err)
	}

	return Record{
		Code:      parts[0],
		Timestamp: ts,
		Fields:    parts[2:],
	}, nil
}

// Cast is the part of an ability record the timers care about
type Cast struct {
	CasterID   string
	CasterName string
	ActionID   int
	ActionName string
	TargetID   string
	TargetName string
}

const castFields = 6

// ParseCast extracts the cast fields from an ability record
func ParseCast(r Record) (Cast, error) {
	if !r.IsCast() {
		return Cast{}, fmt.Errorf("%w: code %q", ErrNotCast, r.Code)
	}
	if len(r.Fields) < castFields {
		return Cast{}, fmt.Errorf("%w: code %s has %d fields, want at least %d", ErrMalformed, r.Code, len(r.Fields), castFields)
	}

	actionID, err := catalog.ParseActionID(r.Fields[2])
	if err != nil {
		return Cast{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return Cast{
		CasterID:   r.Fields[0],
		CasterName: r.Fields[1],
		ActionID:   actionID,
		ActionName: r.Fields[3],
		TargetID:   r.Fields[4],
		TargetName: r.Fields[5],
	}, nil
}
