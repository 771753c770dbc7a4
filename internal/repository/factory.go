package repository

import "context"

// Repositories holds all repository instances.
type Repositories struct {
	User   UserRepository
	Object ObjectRepository
}

// DatabaseHealth is an interface for database health checks.
// This interface satisfies handler.HealthChecker for health endpoints.
type DatabaseHealth interface {
	Ping(ctx context.Context) error
	Health(ctx context.Context) error
	Close() error
}

// Migrator applies and inspects schema migrations.
type Migrator interface {
	// Migrate applies all pending migrations.
	Migrate(ctx context.Context) error

	// MigrateDown rolls back the most recent migration.
	MigrateDown(ctx context.Context) error

	// MigrationStatus returns one line per known migration.
	MigrationStatus(ctx context.Context) ([]MigrationState, error)

	// SchemaVersion returns the current schema version.
	SchemaVersion(ctx context.Context) (int64, error)
}

// MigrationState describes one migration and whether it has been applied.
type MigrationState struct {
	Version int64
	Source  string
	Applied bool
}

// Database bundles the repositories with the connection that backs them.
type Database struct {
	Repos    *Repositories
	Health   DatabaseHealth
	Migrator Migrator
	Driver   string
}

// Close closes the underlying connection.
func (d *Database) Close() error {
	if d.Health == nil {
		return nil
	}
	return d.Health.Close()
}
