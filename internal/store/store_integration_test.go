//go:build integration

package store

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/chatstats/internal/stats"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func TestIntegration_SaveAndGetSummary(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	sum, err := NewSummary(uuid.New(), "integration-test-"+uuid.New().String()[:8], &stats.Statistics{
		Title:        "Integration test",
		Participants: []string{"Mike", "Agent"},
		Messages:     12,
	})
	if err != nil {
		t.Fatalf("NewSummary failed: %v", err)
	}

	id, err := s.SaveSummary(ctx, sum)
	if err != nil {
		t.Fatalf("SaveSummary failed: %v", err)
	}
	t.Cleanup(func() {
		s.pool.Exec(ctx, "DELETE FROM chat_summaries WHERE id = $1", id)
	})

	row, err := s.GetSummary(ctx, id)
	if err != nil {
		t.Fatalf("GetSummary failed: %v", err)
	}
	if row.Title != "Integration test" {
		t.Errorf("expected title, got %q", row.Title)
	}
	if len(row.Participants) != 2 {
		t.Errorf("expected 2 participants, got %v", row.Participants)
	}
	if row.Messages != 12 {
		t.Errorf("expected 12 messages, got %d", row.Messages)
	}

	list, err := s.ListSummaries(ctx, 50)
	if err != nil {
		t.Fatalf("ListSummaries failed: %v", err)
	}
	found := false
	for _, l := range list {
		if l.ID == id {
			found = true
		}
	}
	if !found {
		t.Error("expected saved summary in list")
	}
}

func TestIntegration_GetMissingSummary(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.GetSummary(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
