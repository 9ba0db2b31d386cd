package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS chat_summaries (
	id           uuid PRIMARY KEY,
	run_id       uuid NOT NULL,
	source       text NOT NULL,
	title        text NOT NULL,
	participants text[] NOT NULL,
	messages     integer NOT NULL,
	stats        jsonb NOT NULL,
	created_at   timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS chat_summaries_created_at_idx ON chat_summaries (created_at DESC);`

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) SaveSummary(ctx context.Context, sum Summary) (uuid.UUID, error) {
	if sum.ID == uuid.Nil {
		sum.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO chat_summaries (id, run_id, source, title, participants, messages, stats, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sum.ID, sum.RunID, sum.Source, sum.Title, sum.Participants, sum.Messages, []byte(sum.Stats), sum.CreatedAt,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert summary: %w", err)
	}
	return sum.ID, nil
}

func (s *Store) GetSummary(ctx context.Context, id uuid.UUID) (*Summary, error) {
	var sum Summary
	var raw []byte
	err := s.pool.QueryRow(ctx, `
		SELECT id, run_id, source, title, participants, messages, stats, created_at
		FROM chat_summaries WHERE id = $1`, id,
	).Scan(&sum.ID, &sum.RunID, &sum.Source, &sum.Title, &sum.Participants, &sum.Messages, &raw, &sum.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get summary: %w", err)
	}
	sum.Stats = raw
	return &sum, nil
}

func (s *Store) ListSummaries(ctx context.Context, limit int) ([]Summary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, run_id, source, title, participants, messages, created_at
		FROM chat_summaries ORDER BY created_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.RunID, &sum.Source, &sum.Title, &sum.Participants, &sum.Messages, &sum.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}
