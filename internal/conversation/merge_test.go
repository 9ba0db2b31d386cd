package conversation

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestLoad_SingleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.json")
	writeShard(t, path, shard("t", []string{"A"}, msg("A", 1000, "x")))

	conv, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conv.Shards != 1 || len(conv.Messages) != 1 {
		t.Errorf("expected 1 shard with 1 message, got %d shards, %d messages", conv.Shards, len(conv.Messages))
	}
}

func TestLoad_MergesShards(t *testing.T) {
	dir := t.TempDir()
	writeShard(t, filepath.Join(dir, "conv_1.json"), shard("t", []string{"A", "B"},
		msg("A", 5000, "five"),
		msg("B", 4000, "four"),
	))
	writeShard(t, filepath.Join(dir, "conv_2.json"), shard("t", []string{"B", "C"},
		msg("C", 3000, "three"),
		msg("B", 2000, "two"),
		msg("D", 1000, "one"),
	))

	conv, err := Load(filepath.Join(dir, "conv_1.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(conv.Messages) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(conv.Messages))
	}
	for i, m := range conv.Messages {
		if want := int64(5000 - 1000*i); m.Timestamp != want {
			t.Errorf("messages[%d].Timestamp = %d, want %d (no re-sorting)", i, m.Timestamp, want)
		}
	}
	want := []string{"A", "B", "C", "D"}
	if len(conv.Participants) != len(want) {
		t.Fatalf("expected participants %v, got %v", want, conv.Participants)
	}
	for i := range want {
		if conv.Participants[i] != want[i] {
			t.Errorf("participants[%d] = %q, want %q", i, conv.Participants[i], want[i])
		}
	}
	if conv.Shards != 2 {
		t.Errorf("expected 2 shards, got %d", conv.Shards)
	}
	if conv.Title != "t" {
		t.Errorf("expected title t, got %q", conv.Title)
	}
}

func TestLoad_TitleMismatch(t *testing.T) {
	dir := t.TempDir()
	writeShard(t, filepath.Join(dir, "message_1.json"), shard("first", []string{"A"}, msg("A", 2000, "x")))
	writeShard(t, filepath.Join(dir, "message_2.json"), shard("second", []string{"A"}, msg("A", 1000, "y")))

	conv, err := Load(filepath.Join(dir, "message_1.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conv.Title != MultiTitle {
		t.Errorf("expected %q, got %q", MultiTitle, conv.Title)
	}
}

func TestShardPaths_StopsAtGap(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"1", "2", "4"} {
		writeShard(t, filepath.Join(dir, "message_"+n+".json"), shard("t", []string{"A"}))
	}

	paths := ShardPaths(filepath.Join(dir, "message_1.json"))
	if len(paths) != 2 {
		t.Errorf("expected probing to stop at the gap, got %v", paths)
	}
}

func TestShardPaths_Cap(t *testing.T) {
	dir := t.TempDir()
	for n := 1; n <= MaxShards+2; n++ {
		writeShard(t, filepath.Join(dir, "message_"+strconv.Itoa(n)+".json"), shard("t", []string{"A"}))
	}

	paths := ShardPaths(filepath.Join(dir, "message_1.json"))
	if len(paths) != MaxShards {
		t.Errorf("expected %d shards, got %d", MaxShards, len(paths))
	}
}

func TestShardPaths_NotFirstShard(t *testing.T) {
	dir := t.TempDir()
	writeShard(t, filepath.Join(dir, "message_2.json"), shard("t", []string{"A"}))
	writeShard(t, filepath.Join(dir, "message_3.json"), shard("t", []string{"A"}))

	paths := ShardPaths(filepath.Join(dir, "message_2.json"))
	if len(paths) != 1 {
		t.Errorf("only a _1 shard starts a series, got %v", paths)
	}
}

func TestLoad_MalformedContinuationFails(t *testing.T) {
	dir := t.TempDir()
	writeShard(t, filepath.Join(dir, "message_1.json"), shard("t", []string{"A"}, msg("A", 2000, "x")))
	os.WriteFile(filepath.Join(dir, "message_2.json"), []byte(`{"title":"t"}`), 0o644)

	if _, err := Load(filepath.Join(dir, "message_1.json")); err == nil {
		t.Fatal("expected error for malformed continuation shard")
	}
}

func TestCombine(t *testing.T) {
	dir := t.TempDir()
	writeShard(t, filepath.Join(dir, "message_1.json"), shard("t", []string{"A"}, msg("A", 3000, "x")))
	writeShard(t, filepath.Join(dir, "message_2.json"), shard("t", []string{"A"}, msg("A", 2000, "y"), msg("A", 1000, "z")))

	out := filepath.Join(dir, "combined", "message_1.json")
	n, err := Combine(filepath.Join(dir, "message_1.json"), out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 combined messages, got %d", n)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read combined: %v", err)
	}
	var doc struct {
		Title    string            `json:"title"`
		Messages []json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("parse combined: %v", err)
	}
	if doc.Title != "t" || len(doc.Messages) != 3 {
		t.Errorf("unexpected combined shard: title %q, %d messages", doc.Title, len(doc.Messages))
	}
}

func TestCombine_MalformedShard(t *testing.T) {
	tests := []struct {
		name  string
		first string
		next  string
	}{
		{name: "null document", first: `null`},
		{name: "missing messages", first: `{"title":"t","participants":[]}`},
		{name: "null participants", first: `{"title":"t","participants":null,"messages":[]}`},
		{name: "null continuation", first: `{"title":"t","participants":[],"messages":[]}`, next: `null`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, "message_1.json"), []byte(tt.first), 0o644); err != nil {
				t.Fatal(err)
			}
			if tt.next != "" {
				if err := os.WriteFile(filepath.Join(dir, "message_2.json"), []byte(tt.next), 0o644); err != nil {
					t.Fatal(err)
				}
			}

			out := filepath.Join(dir, "out", "message_1.json")
			_, err := Combine(filepath.Join(dir, "message_1.json"), out)
			var malformed *MalformedShardError
			if !errors.As(err, &malformed) {
				t.Fatalf("expected MalformedShardError, got %v", err)
			}
			if _, err := os.Stat(out); !os.IsNotExist(err) {
				t.Errorf("no output should be written, stat err = %v", err)
			}
		})
	}
}
