package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const selectActionsSQL = `
SELECT action_id, name, duration_sec, cooldown_sec, scope, targeting, job, tags
FROM actions
ORDER BY action_id`

// Querier is the subset of pgxpool.Pool / pgx.Conn used to read the catalog
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// LoadPostgres reads the actions table (see sql/schema.sql)
func LoadPostgres(ctx context.Context, db Querier) (*Catalog, error) {
	rows, err := db.Query(ctx, selectActionsSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to query actions: %w", err)
	}

	entries, err := pgx.CollectRows(rows, scanEntry)
	if err != nil {
		return nil, fmt.Errorf("failed to read actions: %w", err)
	}

	byID := make(map[int]Entry, len(entries))
	for _, entry := range entries {
		byID[entry.ID] = entry
	}
	return New(byID), nil
}

func scanEntry(row pgx.CollectableRow) (Entry, error) {
	var (
		entry     Entry
		scope     string
		targeting string
	)
	if err := row.Scan(
		&entry.ID,
		&entry.Name,
		&entry.DurationSec,
		&entry.CooldownSec,
		&scope,
		&targeting,
		&entry.Job,
		&entry.Tags,
	); err != nil {
		return Entry{}, err
	}

	var err error
	if entry.Scope, err = ParseScope(scope); err != nil {
		return Entry{}, fmt.Errorf("action %d: %w", entry.ID, err)
	}
	if entry.Targeting, err = ParseTargeting(targeting); err != nil {
		return Entry{}, fmt.Errorf("action %d: %w", entry.ID, err)
	}
	return entry, nil
}
