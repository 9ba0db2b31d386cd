package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// MalformedShardError reports a shard that cannot be parsed as a conversation export.
type MalformedShardError struct {
	Path string
	Err  error
}

func (e *MalformedShardError) Error() string {
	return fmt.Sprintf("malformed shard %s: %v", e.Path, e.Err)
}

func (e *MalformedShardError) Unwrap() error { return e.Err }

// shardFile is the on-disk layout of one export shard.
type shardFile struct {
	Title        string              `json:"title"`
	Participants *[]shardParticipant `json:"participants"`
	Messages     *[]shardMessage     `json:"messages"`
}

type shardParticipant struct {
	Name string `json:"name"`
}

type shardMessage struct {
	SenderName  *string         `json:"sender_name"`
	TimestampMS *int64          `json:"timestamp_ms"`
	Content     *string         `json:"content"`
	Reactions   []shardReaction `json:"reactions"`
	IsUnsent    bool            `json:"is_unsent"`
	Photos      json.RawMessage `json:"photos"`
	Videos      json.RawMessage `json:"videos"`
	Gifs        json.RawMessage `json:"gifs"`
	Sticker     json.RawMessage `json:"sticker"`
	Files       json.RawMessage `json:"files"`
	AudioFiles  json.RawMessage `json:"audio_files"`
	Share       json.RawMessage `json:"share"`
}

type shardReaction struct {
	Reaction *string `json:"reaction"`
	Actor    *string `json:"actor"`
}

// ReadShard loads one export shard. It returns the shard as a conversation
// fragment together with its participant list: the declared participants
// followed by every other sender, in first-seen order.
func ReadShard(path string) (*Conversation, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read shard: %w", err)
	}
	return ParseShard(data, path)
}

// ParseShard decodes an export shard already in memory. path only labels errors.
func ParseShard(data []byte, path string) (*Conversation, []string, error) {
	var raw shardFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, &MalformedShardError{Path: path, Err: err}
	}
	if raw.Participants == nil {
		return nil, nil, &MalformedShardError{Path: path, Err: errors.New(`missing "participants"`)}
	}
	if raw.Messages == nil {
		return nil, nil, &MalformedShardError{Path: path, Err: errors.New(`missing "messages"`)}
	}

	var participants []string
	seen := make(map[string]bool)
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			participants = append(participants, name)
		}
	}
	for _, p := range *raw.Participants {
		add(normalizeName(p.Name))
	}

	msgs := make([]Message, 0, len(*raw.Messages))
	for _, m := range *raw.Messages {
		// Messages without a sender or timestamp cannot be attributed; drop them.
		if m.SenderName == nil || m.TimestampMS == nil {
			continue
		}
		msg := Message{
			Sender:    normalizeName(*m.SenderName),
			Timestamp: *m.TimestampMS,
			Unsent:    m.IsUnsent,
			Kinds:     payloadKinds(m),
		}
		if m.Content != nil {
			msg.Content = RepairEmoji(Repair(*m.Content))
			msg.HasContent = true
		}
		for _, r := range m.Reactions {
			if r.Actor == nil || r.Reaction == nil {
				continue
			}
			msg.Reactions = append(msg.Reactions, Reaction{
				Actor: normalizeName(*r.Actor),
				Emoji: RepairEmoji(Repair(*r.Reaction)),
			})
		}
		add(msg.Sender)
		msgs = append(msgs, msg)
	}

	conv := &Conversation{
		Title:        Repair(raw.Title),
		Participants: participants,
		Messages:     msgs,
		Shards:       1,
		Order:        NewestFirst,
	}
	return conv, participants, nil
}

func payloadKinds(m shardMessage) KindSet {
	var s KindSet
	if m.Content != nil {
		s = s.With(KindText)
	}
	for kind, raw := range map[MessageKind]json.RawMessage{
		KindPhoto:   m.Photos,
		KindVideo:   m.Videos,
		KindGif:     m.Gifs,
		KindSticker: m.Sticker,
		KindFile:    m.Files,
		KindAudio:   m.AudioFiles,
		KindShare:   m.Share,
	} {
		if present(raw) {
			s = s.With(kind)
		}
	}
	return s
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}
