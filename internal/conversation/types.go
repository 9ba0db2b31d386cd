package conversation

import (
	"strings"
	"time"
)

// UnknownParticipant replaces empty participant and sender names.
const UnknownParticipant = "Unknown"

// EditMarker is appended by the export platform to edited message content.
const EditMarker = " (edited)"

// ChronoOrder documents how a message slice is ordered.
type ChronoOrder int

const (
	// NewestFirst means index 0 is the most recent message.
	NewestFirst ChronoOrder = iota
)

// MessageKind is a payload kind carried by a message.
type MessageKind uint8

const (
	KindText MessageKind = iota
	KindPhoto
	KindVideo
	KindGif
	KindSticker
	KindFile
	KindAudio
	KindShare
)

// AllKinds lists every message kind in display order.
var AllKinds = []MessageKind{KindText, KindPhoto, KindVideo, KindGif, KindSticker, KindFile, KindAudio, KindShare}

func (k MessageKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindPhoto:
		return "photo"
	case KindVideo:
		return "video"
	case KindGif:
		return "gif"
	case KindSticker:
		return "sticker"
	case KindFile:
		return "file"
	case KindAudio:
		return "audio"
	case KindShare:
		return "share"
	default:
		return "unknown"
	}
}

// KindSet is a small set of message kinds; a message may carry several.
type KindSet uint8

func (s KindSet) Has(k MessageKind) bool { return s&(1<<k) != 0 }

func (s KindSet) With(k MessageKind) KindSet { return s | 1<<k }

// Reaction is an emoji reaction attached to a message.
type Reaction struct {
	Actor string
	Emoji string
}

// Message is a single message of a conversation.
type Message struct {
	Sender     string
	Timestamp  int64 // milliseconds since epoch
	Content    string
	HasContent bool
	Reactions  []Reaction
	Kinds      KindSet
	Unsent     bool
}

// Time returns the message timestamp in loc.
func (m Message) Time(loc *time.Location) time.Time {
	return time.UnixMilli(m.Timestamp).In(loc)
}

// Edited reports whether the content ends with the edit marker.
func (m Message) Edited() bool {
	return m.HasContent && strings.HasSuffix(m.Content, EditMarker)
}

// Body returns the content without a trailing edit marker.
func (m Message) Body() string {
	if m.Edited() {
		return strings.TrimSuffix(m.Content, EditMarker)
	}
	return m.Content
}

// Conversation is the canonical, merged view of one exported conversation.
// Messages are always stored NewestFirst and are never mutated after Load.
type Conversation struct {
	Title        string
	Participants []string
	Messages     []Message
	Shards       int
	Order        ChronoOrder
}

// Newest returns the most recent message. The conversation must not be empty.
func (c *Conversation) Newest() Message { return c.Messages[0] }

// Oldest returns the earliest message. The conversation must not be empty.
func (c *Conversation) Oldest() Message { return c.Messages[len(c.Messages)-1] }

// Chronological returns the messages oldest first as a new slice.
func (c *Conversation) Chronological() []Message {
	out := make([]Message, len(c.Messages))
	for i, m := range c.Messages {
		out[len(c.Messages)-1-i] = m
	}
	return out
}

// HasParticipant reports whether name is part of the participant set.
func (c *Conversation) HasParticipant(name string) bool {
	for _, p := range c.Participants {
		if p == name {
			return true
		}
	}
	return false
}
