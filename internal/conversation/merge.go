package conversation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
)

const (
	// MaxShards caps how many numbered shards are probed for one conversation.
	MaxShards = 10

	// MultiTitle replaces the title when merged shards disagree on it.
	MultiTitle = "multiple conversations"
)

var firstShard = regexp.MustCompile(`^(.*)_1(\.[^.]+)$`)

// ShardPaths returns the contiguous run of numbered shards starting at path.
// A path that is not the first of a numbered series is returned alone.
// Probing stops at the first missing number.
func ShardPaths(path string) []string {
	paths := []string{path}
	dir, base := filepath.Split(path)
	m := firstShard.FindStringSubmatch(base)
	if m == nil {
		return paths
	}
	for n := 2; n <= MaxShards; n++ {
		next := filepath.Join(dir, m[1]+"_"+strconv.Itoa(n)+m[2])
		if _, err := os.Stat(next); err != nil {
			break
		}
		paths = append(paths, next)
	}
	return paths
}

// Load reads the shard at path and merges every continuation shard into it.
// Messages are concatenated in shard order and never re-sorted: each shard is
// newest first and higher shard numbers hold older messages.
func Load(path string) (*Conversation, error) {
	var conv *Conversation
	for _, p := range ShardPaths(path) {
		part, names, err := ReadShard(p)
		if err != nil {
			return nil, err
		}
		if conv == nil {
			conv = part
			continue
		}
		merge(conv, part, names)
	}
	return conv, nil
}

func merge(base, part *Conversation, names []string) {
	for _, n := range names {
		if !base.HasParticipant(n) {
			base.Participants = append(base.Participants, n)
		}
	}
	base.Messages = append(base.Messages, part.Messages...)
	if base.Title != part.Title {
		base.Title = MultiTitle
	}
	base.Shards++
}

// Combine writes the numbered shards starting at path as a single shard at out.
// The first shard's top-level fields are kept and the message arrays of all
// shards are concatenated in shard order.
func Combine(path, out string) (int, error) {
	var base map[string]json.RawMessage
	all := []json.RawMessage{}
	for i, p := range ShardPaths(path) {
		data, err := os.ReadFile(p)
		if err != nil {
			return 0, fmt.Errorf("read shard: %w", err)
		}
		var doc map[string]json.RawMessage
		if err := json.Unmarshal(data, &doc); err != nil {
			return 0, &MalformedShardError{Path: p, Err: err}
		}
		for _, key := range []string{"participants", "messages"} {
			if !present(doc[key]) {
				return 0, &MalformedShardError{Path: p, Err: fmt.Errorf("missing %q", key)}
			}
		}
		var msgs []json.RawMessage
		if err := json.Unmarshal(doc["messages"], &msgs); err != nil {
			return 0, &MalformedShardError{Path: p, Err: err}
		}
		if i == 0 {
			base = doc
		}
		all = append(all, msgs...)
	}

	merged, err := json.Marshal(all)
	if err != nil {
		return 0, fmt.Errorf("marshal messages: %w", err)
	}
	base["messages"] = merged

	data, err := json.MarshalIndent(base, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("marshal shard: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return 0, fmt.Errorf("mkdir: %w", err)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return 0, fmt.Errorf("write shard: %w", err)
	}
	return len(all), nil
}
