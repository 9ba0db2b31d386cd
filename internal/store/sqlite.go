package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS chat_summaries (
	id           TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL,
	source       TEXT NOT NULL,
	title        TEXT NOT NULL,
	participants TEXT NOT NULL,
	messages     INTEGER NOT NULL,
	stats        TEXT NOT NULL,
	created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_summaries_created_at ON chat_summaries(created_at);`

// SQLite is a file-backed Repository for local runs.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() {
	s.db.Close()
}

func (s *SQLite) SaveSummary(ctx context.Context, sum Summary) (uuid.UUID, error) {
	if sum.ID == uuid.Nil {
		sum.ID = uuid.New()
	}
	names, err := json.Marshal(sum.Participants)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal participants: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chat_summaries (id, run_id, source, title, participants, messages, stats, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.ID.String(), sum.RunID.String(), sum.Source, sum.Title, string(names), sum.Messages, string(sum.Stats), sum.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert summary: %w", err)
	}
	return sum.ID, nil
}

func (s *SQLite) GetSummary(ctx context.Context, id uuid.UUID) (*Summary, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, run_id, source, title, participants, messages, stats, created_at
		FROM chat_summaries WHERE id = ?`, id.String())

	var raw string
	sum, err := scanSQLite(row.Scan, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get summary: %w", err)
	}
	sum.Stats = json.RawMessage(raw)
	return sum, nil
}

func (s *SQLite) ListSummaries(ctx context.Context, limit int) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, source, title, participants, messages, created_at
		FROM chat_summaries ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		sum, err := scanSQLite(rows.Scan, nil)
		if err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, *sum)
	}
	return out, rows.Err()
}

// scanSQLite decodes one row; the stats column is only selected when raw is non-nil.
func scanSQLite(scan func(dest ...any) error, raw *string) (*Summary, error) {
	var (
		sum          Summary
		id, runID    string
		participants string
		createdAt    int64
	)
	dest := []any{&id, &runID, &sum.Source, &sum.Title, &participants, &sum.Messages}
	if raw != nil {
		dest = append(dest, raw)
	}
	dest = append(dest, &createdAt)
	if err := scan(dest...); err != nil {
		return nil, err
	}

	var err error
	if sum.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse id: %w", err)
	}
	if sum.RunID, err = uuid.Parse(runID); err != nil {
		return nil, fmt.Errorf("parse run id: %w", err)
	}
	if err := json.Unmarshal([]byte(participants), &sum.Participants); err != nil {
		return nil, fmt.Errorf("decode participants: %w", err)
	}
	sum.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &sum, nil
}
