package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/chatstats/internal/config"
)

func writeConversation(t *testing.T, dir, name string, msgs ...map[string]any) string {
	t.Helper()
	path := filepath.Join(dir, name)
	data, err := json.Marshal(map[string]any{
		"title":        "Test chat",
		"participants": []map[string]string{{"name": "Alice"}, {"name": "Bob"}},
		"messages":     msgs,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func m(sender string, ts int64, content string) map[string]any {
	return map[string]any{"sender_name": sender, "timestamp_ms": ts, "content": content}
}

func testConfig() config.Config {
	return config.Config{TopN: 10, ReplyCeiling: 24 * time.Hour, MinMessages: 10, Timezone: "UTC"}
}

func TestRunAnalyze_Text(t *testing.T) {
	path := writeConversation(t, t.TempDir(), "message_1.json",
		m("Bob", 1709600000000, "hello again"),
		m("Alice", 1709500000000, "hello"),
	)

	var out bytes.Buffer
	if err := runAnalyze(context.Background(), testConfig(), []string{"-user", "Alice", path}, &out); err != nil {
		t.Fatalf("runAnalyze: %v", err)
	}
	if !strings.Contains(out.String(), "Number of messages Alice: 1") {
		t.Errorf("unexpected report:\n%s", out.String())
	}
}

func TestRunAnalyze_JSON(t *testing.T) {
	dir := t.TempDir()
	writeConversation(t, dir, "message_1.json", m("Bob", 1709600000000, "one"))
	writeConversation(t, dir, "message_2.json", m("Alice", 1709500000000, "two"))

	var out bytes.Buffer
	err := runAnalyze(context.Background(), testConfig(), []string{"-json", filepath.Join(dir, "message_1.json")}, &out)
	if err != nil {
		t.Fatalf("runAnalyze: %v", err)
	}

	var got struct {
		Messages int `json:"messages"`
		Shards   int `json:"shards"`
	}
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if got.Messages != 2 || got.Shards != 2 {
		t.Errorf("expected 2 messages from 2 shards, got %+v", got)
	}
}

func TestRunAnalyze_Usage(t *testing.T) {
	var ue usageError
	err := runAnalyze(context.Background(), testConfig(), nil, &bytes.Buffer{})
	if !errors.As(err, &ue) {
		t.Errorf("expected usage error, got %v", err)
	}
}

func TestRunAnalyze_SaveWithoutDatabase(t *testing.T) {
	path := writeConversation(t, t.TempDir(), "message_1.json", m("Bob", 1709600000000, "x"))
	err := runAnalyze(context.Background(), testConfig(), []string{"-save", path}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("expected DATABASE_URL error, got %v", err)
	}
}

func TestRunCombine(t *testing.T) {
	dir := t.TempDir()
	writeConversation(t, dir, "message_1.json", m("Bob", 3, "c"))
	writeConversation(t, dir, "message_2.json", m("Alice", 2, "b"), m("Bob", 1, "a"))
	out := filepath.Join(dir, "combined", "message_1.json")

	if err := runCombine([]string{filepath.Join(dir, "message_1.json"), out}); err != nil {
		t.Fatalf("runCombine: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read combined: %v", err)
	}
	var combined struct {
		Messages []json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(data, &combined); err != nil {
		t.Fatalf("parse combined: %v", err)
	}
	if len(combined.Messages) != 3 {
		t.Errorf("expected 3 messages, got %d", len(combined.Messages))
	}

	var ue usageError
	if err := runCombine([]string{"only-one"}); !errors.As(err, &ue) {
		t.Errorf("expected usage error, got %v", err)
	}
}

func TestStatsOptions(t *testing.T) {
	opts, err := statsOptions(testConfig())
	if err != nil {
		t.Fatalf("statsOptions: %v", err)
	}
	if opts.ReplyCeiling != 86400 {
		t.Errorf("expected ceiling 86400s, got %f", opts.ReplyCeiling)
	}
	if opts.Location.String() != "UTC" {
		t.Errorf("expected UTC, got %s", opts.Location)
	}

	bad := testConfig()
	bad.Timezone = "Not/AZone"
	if _, err := statsOptions(bad); err == nil {
		t.Error("expected error for bad timezone")
	}
}
