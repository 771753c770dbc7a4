package repository

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

// GooseMigrator implements Migrator on top of a goose provider.
type GooseMigrator struct {
	provider *goose.Provider
	logger   zerolog.Logger
}

// NewGooseMigrator creates a migrator for the SQL files at the root of migrations.
func NewGooseMigrator(dialect goose.Dialect, db *sql.DB, migrations fs.FS, logger zerolog.Logger) (*GooseMigrator, error) {
	provider, err := goose.NewProvider(dialect, db, migrations)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}

	return &GooseMigrator{
		provider: provider,
		logger:   logger.With().Str("component", "migrator").Logger(),
	}, nil
}

// Migrate applies all pending migrations.
func (m *GooseMigrator) Migrate(ctx context.Context) error {
	results, err := m.provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	for _, r := range results {
		m.logger.Info().
			Int64("version", r.Source.Version).
			Str("file", path.Base(r.Source.Path)).
			Dur("duration", r.Duration).
			Msg("applied migration")
	}

	return nil
}

// MigrateDown rolls back the most recent migration.
func (m *GooseMigrator) MigrateDown(ctx context.Context) error {
	r, err := m.provider.Down(ctx)
	if err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}

	m.logger.Info().
		Int64("version", r.Source.Version).
		Str("file", path.Base(r.Source.Path)).
		Msg("rolled back migration")

	return nil
}

// MigrationStatus returns the state of every known migration.
func (m *GooseMigrator) MigrationStatus(ctx context.Context) ([]MigrationState, error) {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get migration status: %w", err)
	}

	states := make([]MigrationState, 0, len(statuses))
	for _, s := range statuses {
		states = append(states, MigrationState{
			Version: s.Source.Version,
			Source:  path.Base(s.Source.Path),
			Applied: s.State == goose.StateApplied,
		})
	}

	return states, nil
}

// SchemaVersion returns the current schema version.
func (m *GooseMigrator) SchemaVersion(ctx context.Context) (int64, error) {
	v, err := m.provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return v, nil
}

var _ Migrator = (*GooseMigrator)(nil)
