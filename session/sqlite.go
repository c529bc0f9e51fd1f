package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore persists records in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and runs the
// schema migration.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	// Single writer; sqlite serializes anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate session db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sub_sessions (
			id         TEXT PRIMARY KEY,
			parent_id  TEXT NOT NULL DEFAULT '',
			agent_name TEXT NOT NULL DEFAULT '',
			model      TEXT NOT NULL DEFAULT '',
			messages   TEXT NOT NULL DEFAULT '[]',
			total_cost TEXT NOT NULL DEFAULT '0',
			num_turns  INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sub_sessions_parent ON sub_sessions(parent_id);
	`)
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save inserts or replaces a record.
func (s *SQLiteStore) Save(ctx context.Context, r *Record) error {
	if r == nil {
		return errNilRecord
	}
	msgs, err := json.Marshal(r.Messages)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sub_sessions (id, parent_id, agent_name, model, messages, total_cost, num_turns, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			parent_id = excluded.parent_id,
			agent_name = excluded.agent_name,
			model = excluded.model,
			messages = excluded.messages,
			total_cost = excluded.total_cost,
			num_turns = excluded.num_turns,
			updated_at = excluded.updated_at`,
		r.ID, r.ParentID, r.AgentName, r.Model, string(msgs), r.TotalCost.String(), r.NumTurns,
		r.CreatedAt.UTC().Format(timeLayout), r.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	return nil
}

const selectColumns = "SELECT id, parent_id, agent_name, model, messages, total_cost, num_turns, created_at, updated_at FROM sub_sessions"

// Load retrieves a record by ID.
func (s *SQLiteStore) Load(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	return r, err
}

// Delete removes a record by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sub_sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return notFound(id)
	}
	return nil
}

// List returns all records ordered by creation time.
func (s *SQLiteStore) List(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+" ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		r                    Record
		msgs, cost           string
		createdAt, updatedAt string
	)
	if err := row.Scan(&r.ID, &r.ParentID, &r.AgentName, &r.Model, &msgs, &cost, &r.NumTurns, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(msgs), &r.Messages); err != nil {
		return nil, fmt.Errorf("unmarshal messages: %w", err)
	}
	var err error
	if r.TotalCost, err = decimal.NewFromString(cost); err != nil {
		r.TotalCost = decimal.Zero
	}
	r.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	r.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return &r, nil
}
