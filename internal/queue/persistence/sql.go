package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cuongbtq/recon-queue/internal/queue/domain"
	"github.com/jmoiron/sqlx"
)

const schema = `
	CREATE TABLE IF NOT EXISTS queue_slots (
		slot_key   TEXT PRIMARY KEY,
		payload    TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)
`

// SQLSlot persists a queue as one row of the queue_slots table. It works
// with any sqlx driver whose dialect supports ON CONFLICT upserts
// (PostgreSQL and SQLite).
type SQLSlot struct {
	db  *sqlx.DB
	key string
	now func() time.Time
}

// NewSQLSlot creates a slot for key.
func NewSQLSlot(db *sqlx.DB, key string) *SQLSlot {
	return &SQLSlot{
		db:  db,
		key: key,
		now: time.Now,
	}
}

// EnsureSchema creates the queue_slots table if missing.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create queue_slots table: %w", err)
	}
	return nil
}

// Load reads the slot row; a missing row is an empty queue.
func (s *SQLSlot) Load(ctx context.Context) ([]domain.Job, error) {
	query := s.db.Rebind(`SELECT payload FROM queue_slots WHERE slot_key = ?`)

	var payload string
	if err := s.db.GetContext(ctx, &payload, query, s.key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load slot %s: %w", s.key, err)
	}

	return decode([]byte(payload))
}

// Save upserts the slot row.
func (s *SQLSlot) Save(ctx context.Context, jobs []domain.Job) error {
	data, err := encode(jobs)
	if err != nil {
		return err
	}

	query := s.db.Rebind(`
		INSERT INTO queue_slots (slot_key, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (slot_key) DO UPDATE
		SET payload = excluded.payload,
		    updated_at = excluded.updated_at
	`)

	if _, err := s.db.ExecContext(ctx, query, s.key, string(data), s.now().UTC()); err != nil {
		return fmt.Errorf("failed to save slot %s: %w", s.key, err)
	}
	return nil
}
