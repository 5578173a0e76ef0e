// Package store is the per-agent embedded state store: goals, action log,
// learnings, tick log. Each agent process owns its store exclusively; the
// supervisor never opens it.
package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Store wraps the sqlite database for one agent identity.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the store at path and applies pending
// migrations. Migration failure is fatal to the caller by contract.
func Open(path string) (*Store, error) {
	if err := Migrate(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// The store has exactly one owner; a single connection avoids sqlite
	// write contention entirely.
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

// Migrate applies all pending schema migrations to the database at path.
func Migrate(path string) error {
	m, err := newMigrator(path)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("store: migrate up: %w", err)
	}
	return nil
}

// SchemaVersion reports the applied migration version for the database at
// path. Returns 0 when no migrations have run.
func SchemaVersion(path string) (uint, error) {
	m, err := newMigrator(path)
	if err != nil {
		return 0, err
	}
	defer m.Close()
	v, _, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("store: read version: %w", err)
	}
	return v, nil
}

func newMigrator(path string) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("store: load migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, "sqlite://"+path)
	if err != nil {
		return nil, fmt.Errorf("store: create migrator: %w", err)
	}
	return m, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
