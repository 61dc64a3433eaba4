// Package postgres implements store.EventLog backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/dyngraph/internal/model"
	"github.com/alfredjeanlab/dyngraph/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// EventLog implements store.EventLog on an events table.
type EventLog struct {
	db *sql.DB
}

var _ store.EventLog = (*EventLog)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*EventLog, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &EventLog{db: db}, nil
}

// NewWithDB wraps an already migrated database handle.
func NewWithDB(db *sql.DB) *EventLog {
	return &EventLog{db: db}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (l *EventLog) Close() error {
	return l.db.Close()
}

func (l *EventLog) RecordEvent(ctx context.Context, e *model.Event) error {
	return queryRecordEvent(ctx, l.db, e)
}

func (l *EventLog) ListEvents(ctx context.Context, filter store.EventFilter) ([]*model.Event, error) {
	return queryListEvents(ctx, l.db, filter)
}

// Prune deletes events older than the given age and returns how many went.
func (l *EventLog) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	return queryPruneEvents(ctx, l.db, time.Now().Add(-olderThan))
}
