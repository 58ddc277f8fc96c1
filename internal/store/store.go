// Package store persists finished reports in postgres or sqlite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"go-alloy/pkg/metrics"
	"go-alloy/pkg/models"
)

var ErrNotFound = errors.New("report not found")

const DefaultListLimit = 50

const schema = `
CREATE TABLE IF NOT EXISTS reports (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	acquirer   TEXT NOT NULL,
	target     TEXT NOT NULL,
	status     TEXT NOT NULL,
	payload    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`

const createdIndex = `CREATE INDEX IF NOT EXISTS reports_created_at_idx ON reports (created_at)`

// Summary is a reports row without its payload.
type Summary struct {
	ID        string              `db:"id" json:"id"`
	Title     string              `db:"title" json:"title"`
	Acquirer  string              `db:"acquirer" json:"acquirer"`
	Target    string              `db:"target" json:"target"`
	Status    models.ReportStatus `db:"status" json:"status"`
	CreatedAt time.Time           `db:"created_at" json:"created_at"`
}

type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects with the given driver ("postgres" or "sqlite3") and runs Migrate.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range []string{schema, createdIndex} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Save upserts a report keyed by its id.
func (s *Store) Save(ctx context.Context, r models.Report) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO reports (id, title, acquirer, target, status, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			status = excluded.status,
			payload = excluded.payload,
			updated_at = excluded.updated_at`),
		r.ID.String(), r.Title, r.Task.Acquirer, r.Task.Target, string(r.Status), string(payload), r.CreatedAt, r.UpdatedAt)
	if err != nil {
		metrics.ReportsSaved.WithLabelValues("error").Inc()
		return fmt.Errorf("save report %s: %w", r.ID, err)
	}
	metrics.ReportsSaved.WithLabelValues(string(r.Status)).Inc()
	return nil
}

func (s *Store) Load(ctx context.Context, id uuid.UUID) (models.Report, error) {
	var payload string
	err := s.db.GetContext(ctx, &payload, s.db.Rebind(`SELECT payload FROM reports WHERE id = ?`), id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return models.Report{}, ErrNotFound
	}
	if err != nil {
		return models.Report{}, fmt.Errorf("load report %s: %w", id, err)
	}
	var r models.Report
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return models.Report{}, fmt.Errorf("decode report %s: %w", id, err)
	}
	return r, nil
}

// List returns the newest reports first.
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	out := []Summary{}
	err := s.db.SelectContext(ctx, &out, s.db.Rebind(`
		SELECT id, title, acquirer, target, status, created_at
		FROM reports
		ORDER BY created_at DESC
		LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM reports WHERE id = ?`), id.String())
	if err != nil {
		return fmt.Errorf("delete report %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete report %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
