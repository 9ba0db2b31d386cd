package stats

import (
	"github.com/forPelevin/gomoji"
	"github.com/rivo/uniseg"

	"github.com/MikeSquared-Agency/chatstats/internal/conversation"
)

// EmojiSet holds the emoji grapheme clusters used in one conversation.
type EmojiSet map[string]struct{}

func (s EmojiSet) Has(cluster string) bool {
	_, ok := s[cluster]
	return ok
}

// UsedEmojis collects every emoji appearing in message content or reactions.
// It is computed once per conversation and shared by all lexical passes.
func UsedEmojis(conv *conversation.Conversation) EmojiSet {
	set := make(EmojiSet)
	add := func(text string) {
		gr := uniseg.NewGraphemes(text)
		for gr.Next() {
			c := gr.Str()
			if set.Has(c) {
				continue
			}
			if isEmoji(c) {
				set[c] = struct{}{}
			}
		}
	}
	for _, m := range conv.Messages {
		if m.HasContent {
			add(m.Content)
		}
		for _, r := range m.Reactions {
			add(r.Emoji)
		}
	}
	return set
}

func isEmoji(cluster string) bool {
	_, err := gomoji.GetInfo(cluster)
	return err == nil
}

// graphemes splits text into user-perceived characters.
func graphemes(text string) []string {
	var out []string
	gr := uniseg.NewGraphemes(text)
	for gr.Next() {
		out = append(out, gr.Str())
	}
	return out
}
