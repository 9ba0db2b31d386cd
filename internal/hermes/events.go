package hermes

import (
	"time"

	"github.com/MikeSquared-Agency/chatstats/internal/stats"
)

const (
	// SubjectConversationAnalyzed carries one AnalyzedEvent per computed conversation.
	SubjectConversationAnalyzed = "swarm.chatstats.conversation.analyzed"
	// SubjectBatchCompleted carries a BatchEvent when an inbox run finishes.
	SubjectBatchCompleted = "swarm.chatstats.batch.completed"
)

// AnalyzedEvent is a compact announcement of a computed statistics result.
type AnalyzedEvent struct {
	SummaryID        string    `json:"summary_id,omitempty"`
	RunID            string    `json:"run_id"`
	Source           string    `json:"source"`
	Title            string    `json:"title"`
	Participants     []string  `json:"participants"`
	Messages         int       `json:"messages"`
	Days             int       `json:"days"`
	TopSender        string    `json:"top_sender,omitempty"`
	InsufficientData bool      `json:"insufficient_data"`
	AnalyzedAt       time.Time `json:"analyzed_at"`
}

// NewAnalyzedEvent builds the event for s. summaryID is empty when nothing was persisted.
func NewAnalyzedEvent(runID, summaryID, source string, s *stats.Statistics) AnalyzedEvent {
	ev := AnalyzedEvent{
		SummaryID:        summaryID,
		RunID:            runID,
		Source:           source,
		Title:            s.Title,
		Participants:     s.Participants,
		Messages:         s.Messages,
		Days:             s.Temporal.Days,
		InsufficientData: s.InsufficientData,
		AnalyzedAt:       time.Now().UTC(),
	}
	if len(s.MessagesBy) > 0 {
		ev.TopSender = s.MessagesBy[0].Key
	}
	return ev
}

// BatchEvent summarises a finished batch run.
type BatchEvent struct {
	RunID     string `json:"run_id"`
	Root      string `json:"root"`
	Processed int    `json:"processed"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
	Duration  string `json:"duration"`
}
