package main

import (
	"context"
	"fmt"

	"github.com/DarkIrata/ffxiv-act-minioverlay/go/internal/catalog"
	"github.com/DarkIrata/ffxiv-act-minioverlay/go/internal/config"
	"github.com/rs/zerolog/log"
)

// loadCatalog reads the full action table from the first configured source
// (database, then file, then the built-in table) and narrows it to the
// configured action sets.
func loadCatalog(ctx context.Context, cfg config.Config) (*catalog.Catalog, error) {
	var (
		full   *catalog.Catalog
		source string
		err    error
	)

	switch {
	case cfg.CatalogDatabaseURL != "":
		source = "postgres"
		pool, dbErr := setupDatabase(ctx, cfg.CatalogDatabaseURL)
		if dbErr != nil {
			return nil, dbErr
		}
		defer pool.Close()
		full, err = catalog.LoadPostgres(ctx, pool)
	case cfg.CatalogFile != "":
		source = cfg.CatalogFile
		full, err = catalog.LoadFile(cfg.CatalogFile)
	default:
		source = "built-in"
		full, err = catalog.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog from %s: %w", source, err)
	}

	tracked := full.QueryTags(cfg.ActionSets)
	log.Info().
		Str("source", source).
		Strs("sets", cfg.ActionSets).
		Int("actions", full.Len()).
		Int("tracked", tracked.Len()).
		Msg("action catalog loaded")

	if tracked.Len() == 0 {
		log.Warn().Strs("sets", cfg.ActionSets).Msg("no actions match the configured sets")
	}
	return tracked, nil
}
