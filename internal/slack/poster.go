package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/chatstats/internal/stats"
)

const defaultPostMessageURL = "https://slack.com/api/chat.postMessage"

type Poster struct {
	token   string
	channel string
	client  *http.Client
	logger  *slog.Logger
	apiURL  string
}

func NewPoster(token, channel string, logger *slog.Logger) *Poster {
	return &Poster{
		token:   token,
		channel: channel,
		client:  &http.Client{Timeout: 10 * time.Second},
		apiURL:  defaultPostMessageURL,
		logger:  logger,
	}
}

// PostText posts a plain mrkdwn message and returns its timestamp.
func (p *Poster) PostText(ctx context.Context, text string) (string, error) {
	return p.post(ctx, map[string]any{
		"channel": p.channel,
		"text":    text,
	})
}

// PostConversationSummary posts the headline numbers of one analyzed conversation.
func (p *Poster) PostConversationSummary(ctx context.Context, s *stats.Statistics, source string) (string, error) {
	text := formatStatsMessage(s, source)
	ts, err := p.post(ctx, map[string]any{
		"channel": p.channel,
		"text":    text,
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": text,
				},
			},
			{
				"type": "context",
				"elements": []map[string]any{
					{
						"type": "mrkdwn",
						"text": "Source: " + source,
					},
				},
			},
		},
	})
	if err != nil {
		return "", err
	}
	p.logger.Info("posted conversation summary to slack", "ts", ts, "title", s.Title)
	return ts, nil
}

// PostThread posts a threaded reply to a message.
func (p *Poster) PostThread(ctx context.Context, threadTS, text string) error {
	_, err := p.post(ctx, map[string]any{
		"channel":   p.channel,
		"thread_ts": threadTS,
		"text":      text,
	})
	return err
}

func (p *Poster) post(ctx context.Context, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var slackResp struct {
		OK    bool   `json:"ok"`
		TS    string `json:"ts"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(respBody, &slackResp); err != nil {
		return "", fmt.Errorf("parse slack response: %w", err)
	}
	if !slackResp.OK {
		return "", fmt.Errorf("slack error: %s", slackResp.Error)
	}
	return slackResp.TS, nil
}

func formatStatsMessage(s *stats.Statistics, source string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "*Conversation:* %s\n", s.Title)
	fmt.Fprintf(&sb, "*Messages:* %d over %d days (%d active)\n", s.Messages, s.Temporal.Days, s.Temporal.ActiveDays)
	if s.Temporal.ActiveStreak.Days > 0 {
		fmt.Fprintf(&sb, "*Longest streak:* %d days\n", s.Temporal.ActiveStreak.Days)
	}
	sb.WriteString("\n")

	top := s.TopParticipantsByMessages(3)
	if len(top) > 0 {
		sb.WriteString("*Top senders*\n")
		for i, c := range top {
			fmt.Fprintf(&sb, "%d. %s: %d\n", i+1, c.Key, c.Count)
		}
	}

	if len(s.TopEmoji) > 0 {
		emoji := make([]string, 0, 5)
		for i, e := range s.TopEmoji {
			if i == 5 {
				break
			}
			emoji = append(emoji, fmt.Sprintf("%s %d", e.Emoji, e.Total))
		}
		fmt.Fprintf(&sb, "\n*Top emoji:* %s\n", strings.Join(emoji, " | "))
	}

	if s.InsufficientData {
		sb.WriteString("\n_Few messages, statistics may not be meaningful._")
	}

	return sb.String()
}
