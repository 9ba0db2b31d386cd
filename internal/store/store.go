package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/chatstats/internal/stats"
)

// ErrNotFound is returned when no summary matches the requested id.
var ErrNotFound = errors.New("summary not found")

// Summary is one persisted statistics result.
type Summary struct {
	ID           uuid.UUID       `json:"id"`
	RunID        uuid.UUID       `json:"run_id"`
	Source       string          `json:"source"`
	Title        string          `json:"title"`
	Participants []string        `json:"participants"`
	Messages     int             `json:"messages"`
	Stats        json.RawMessage `json:"stats,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Repository persists statistics summaries.
type Repository interface {
	SaveSummary(ctx context.Context, sum Summary) (uuid.UUID, error)
	GetSummary(ctx context.Context, id uuid.UUID) (*Summary, error)
	// ListSummaries returns the newest summaries first, without the Stats payload.
	ListSummaries(ctx context.Context, limit int) ([]Summary, error)
	Close()
}

// NewSummary wraps a computed Statistics for persistence.
func NewSummary(runID uuid.UUID, source string, s *stats.Statistics) (Summary, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return Summary{}, fmt.Errorf("marshal statistics: %w", err)
	}
	return Summary{
		ID:           uuid.New(),
		RunID:        runID,
		Source:       source,
		Title:        s.Title,
		Participants: s.Participants,
		Messages:     s.Messages,
		Stats:        raw,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// Open connects to the backend selected by the URL scheme: postgres:// and
// postgresql:// use Postgres, sqlite:// or a bare file path use SQLite.
func Open(ctx context.Context, databaseURL string) (Repository, error) {
	switch {
	case databaseURL == "":
		return nil, errors.New("open store: empty database url")
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return New(ctx, databaseURL)
	default:
		return NewSQLite(ctx, strings.TrimPrefix(databaseURL, "sqlite://"))
	}
}
