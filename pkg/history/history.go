// Package history persists the final record of every VM instance for
// telemetry. Uses pure-Go SQLite (modernc.org/sqlite), no cgo required.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"luna-vmm/pkg/models"
)

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the history database at the given path.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()

		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()

		return nil, fmt.Errorf("migrating history schema: %w", err)
	}

	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS instances (
			id                TEXT PRIMARY KEY,
			status            TEXT NOT NULL,
			hypervisor        TEXT NOT NULL DEFAULT '',
			memory_mb         INTEGER NOT NULL DEFAULT 0,
			vcpu              INTEGER NOT NULL DEFAULT 0,
			host_port         INTEGER NOT NULL DEFAULT 0,
			recovery_attempts INTEGER NOT NULL DEFAULT 0,
			last_error_kind   TEXT NOT NULL DEFAULT '',
			last_error        TEXT NOT NULL DEFAULT '',
			created_at        TEXT NOT NULL,
			ready_at          TEXT,
			terminated_at     TEXT
		)
	`)

	return err
}

// Record upserts the instance's final state. Called once per instance when it
// reaches Terminated or Failed, before removal from the active table.
func (s *Store) Record(ctx context.Context, instance *models.VMInstance) error {
	errKind, errMsg := "", ""
	if instance.LastError != nil {
		errKind, errMsg = instance.LastError.Kind, instance.LastError.Message
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO instances (id, status, hypervisor, memory_mb, vcpu, host_port,
			recovery_attempts, last_error_kind, last_error, created_at, ready_at, terminated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			recovery_attempts = excluded.recovery_attempts,
			last_error_kind = excluded.last_error_kind,
			last_error = excluded.last_error,
			ready_at = excluded.ready_at,
			terminated_at = excluded.terminated_at
	`, instance.ID, string(instance.Status), instance.Hypervisor.String(),
		instance.Allocation.MemoryMB, instance.Allocation.VCPU, instance.Allocation.HostPort,
		instance.RecoveryAttempts, errKind, errMsg,
		instance.CreatedAt.Format(time.RFC3339), formatTime(instance.ReadyAt), formatTime(instance.TerminatedAt))
	if err != nil {
		return fmt.Errorf("recording instance %s: %w", instance.ID, err)
	}

	return nil
}

// Entry is one row of the instance history.
type Entry struct {
	ID               string
	Status           models.Status
	Hypervisor       models.Hypervisor
	RecoveryAttempts int
	LastErrorKind    string
	CreatedAt        time.Time
}

// List returns the recorded instances, newest first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, hypervisor, recovery_attempts, last_error_kind, created_at
		FROM instances ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("listing instance history: %w", err)
	}

	defer rows.Close()

	entries := []Entry{}

	for rows.Next() {
		var (
			entry   Entry
			created string
		)

		if err := rows.Scan(&entry.ID, &entry.Status, &entry.Hypervisor,
			&entry.RecoveryAttempts, &entry.LastErrorKind, &created); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}

		entry.CreatedAt, _ = time.Parse(time.RFC3339, created)
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func formatTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}

	return t.Format(time.RFC3339)
}
