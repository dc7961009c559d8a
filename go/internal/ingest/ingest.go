package ingest

import (
	"errors"

	"github.com/DarkIrata/ffxiv-act-minioverlay/go/internal/catalog"
	"github.com/DarkIrata/ffxiv-act-minioverlay/go/internal/combatlog"
	"github.com/DarkIrata/ffxiv-act-minioverlay/go/internal/timers"
	"github.com/rs/zerolog/log"
)

// Outcome is what happened to one ingested line
type Outcome int

const (
	// OutcomeMalformed: the line could not be parsed and was dropped
	OutcomeMalformed Outcome = iota
	// OutcomeIgnored: a valid line that is not an ability use
	OutcomeIgnored
	// OutcomeUntracked: an ability use for an action outside the catalog
	OutcomeUntracked
	// OutcomeTracked: the cast was recorded in the store
	OutcomeTracked
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMalformed:
		return "malformed"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeUntracked:
		return "untracked"
	case OutcomeTracked:
		return "tracked"
	default:
		return "unknown"
	}
}

// Catalog is the lookup the ingestor needs from the action catalog
type Catalog interface {
	Lookup(actionID int) (catalog.Entry, bool)
}

// Ingestor turns raw log lines into cast events in the tracking store.
// Not safe for concurrent use; the engine goroutine owns it.
type Ingestor struct {
	clock    *timers.SyncedClock
	registry *timers.Registry
	store    *timers.Store
	catalog  Catalog
}

func New(clock *timers.SyncedClock, registry *timers.Registry, store *timers.Store, catalog Catalog) *Ingestor {
	return &Ingestor{
		clock:    clock,
		registry: registry,
		store:    store,
		catalog:  catalog,
	}
}

// Ingest processes one raw line. Any line with a readable timestamp advances
// the synced clock, whether or not it is a tracked cast.
func (i *Ingestor) Ingest(raw string) Outcome {
	rec, err := combatlog.ParseRecord(raw)
	if err != nil {
		log.Debug().Err(err).Msg("dropping unparseable log line")
		return OutcomeMalformed
	}

	i.clock.Observe(rec.Timestamp)

	cast, err := combatlog.ParseCast(rec)
	if errors.Is(err, combatlog.ErrNotCast) {
		return OutcomeIgnored
	}
	if err != nil {
		log.Debug().Err(err).Str("code", rec.Code).Msg("dropping malformed cast line")
		return OutcomeMalformed
	}

	entry, ok := i.catalog.Lookup(cast.ActionID)
	if !ok {
		return OutcomeUntracked
	}

	key := i.registry.For(cast.ActionID, cast.CasterID)
	event := timers.CastEvent{
		ActionID:   cast.ActionID,
		ActionName: cast.ActionName,
		CasterID:   cast.CasterID,
		CasterName: cast.CasterName,
		TargetName: cast.TargetName,
		CastAt:     i.clock.Now(),
	}
	i.store.Append(key, event, entry.Cooldown())

	log.Debug().
		Str("key", key.String()).
		Str("action", cast.ActionName).
		Str("caster", cast.CasterName).
		Time("cast_at", event.CastAt).
		Msg("tracked cast")

	return OutcomeTracked
}
