package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/autopo-forecast/internal/drive"
	"github.com/andresuchdata/autopo-forecast/internal/repository"
	"github.com/andresuchdata/autopo-forecast/internal/repository/postgres"
	"github.com/andresuchdata/autopo-forecast/pkg/logger"
)

// openRepository picks the record source from the flags: local exports,
// Drive exports, then the database. The returned func releases it.
func (a *application) openRepository(ctx context.Context, c *cli.Context) (repository.MovementRepository, func(), error) {
	src, cleanup, err := a.fileSource(ctx, c)
	if err != nil {
		return nil, nil, err
	}
	if src != nil {
		repo, err := src.Load(ctx)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to load exports: %w", err)
		}
		return repo, cleanup, nil
	}

	dbCfg := a.cfg.Database
	if url := c.String("db-url"); url != "" {
		dbCfg.URL = url
	}
	db, err := postgres.NewDB(&dbCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	// The pool is process-wide; after closes it.
	a.db = db
	return postgres.NewMovementRepository(db), func() {}, nil
}

// fileSource returns nil when no export flag is set.
func (a *application) fileSource(ctx context.Context, c *cli.Context) (*drive.FileSource, func(), error) {
	src := drive.FileSource{
		ItemsPath:     c.String("items"),
		MovementsPath: c.String("movements"),
	}
	noop := func() {}

	driveItems, driveMovements := c.String("drive-items"), c.String("drive-movements")
	if driveItems == "" && driveMovements == "" {
		if src.MovementsPath == "" && src.ItemsPath == "" {
			return nil, noop, nil
		}
		return &src, noop, nil
	}

	svc, err := drive.NewService(ctx, a.cfg.Drive.CredentialsJSON)
	if err != nil {
		return nil, nil, err
	}
	dir, err := os.MkdirTemp("", "replenish-drive-")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create download dir: %w", err)
	}
	cleanup := func() { os.RemoveAll(dir) }

	if driveItems != "" {
		if src.ItemsPath, err = drive.FetchExport(ctx, svc, driveItems, dir); err != nil {
			cleanup()
			return nil, nil, err
		}
	}
	if driveMovements != "" {
		if src.MovementsPath, err = drive.FetchExport(ctx, svc, driveMovements, dir); err != nil {
			cleanup()
			return nil, nil, err
		}
	}
	logger.Log.Info().Str("dir", dir).Msg("drive exports downloaded")
	return &src, cleanup, nil
}
