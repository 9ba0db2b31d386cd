package stats

import (
	"strings"
	"unicode/utf8"

	"github.com/MikeSquared-Agency/chatstats/internal/conversation"
)

// wordStrip is trimmed from both edges of every whitespace-separated token.
const wordStrip = `,.()?!@#$%^&*/_:;\"`

// caseSensitive tokens keep their case.
var caseSensitive = map[string]bool{"xD": true, "XD": true}

// TopEmoji is one emoji of a top list with its global and per-participant counts.
type TopEmoji struct {
	Emoji          string         `json:"emoji"`
	Total          int            `json:"total"`
	PerParticipant map[string]int `json:"per_participant"`
}

// Lexical holds word, character and emoji frequency tables, globally and per
// participant. Every ranked table follows Rank ordering.
type Lexical struct {
	Words        []Count            `json:"words"`
	WordsBy      map[string][]Count `json:"words_by"`
	Characters   []Count            `json:"characters"`
	CharactersBy map[string][]Count `json:"characters_by"`
	Emoji        []Count            `json:"emoji"`
	EmojiBy      map[string][]Count `json:"emoji_by"`
	Reactions    []Count            `json:"reactions"`
	ReactionsBy  map[string][]Count `json:"reactions_by"`

	// Per participant volumes.
	WordTotals      map[string]int `json:"word_totals"`
	CharacterTotals map[string]int `json:"character_totals"`
	EmojiTotals     map[string]int `json:"emoji_totals"`
	ReactionTotals  map[string]int `json:"reaction_totals"`
	Edits           map[string]int `json:"edits"`
}

// tally accumulates the frequency tables of one participant or of the whole
// conversation during the single scan.
type tally struct {
	words     map[string]int
	chars     map[string]int
	emoji     map[string]int
	reactions map[string]int
}

func newTally() *tally {
	return &tally{
		words:     make(map[string]int),
		chars:     make(map[string]int),
		emoji:     make(map[string]int),
		reactions: make(map[string]int),
	}
}

// AnalyzeLexical counts words, characters and emoji in one pass over the
// messages. emojis must be the set returned by UsedEmojis for conv.
func AnalyzeLexical(conv *conversation.Conversation, emojis EmojiSet) Lexical {
	global := newTally()
	by := make(map[string]*tally)
	get := func(name string) *tally {
		t, ok := by[name]
		if !ok {
			t = newTally()
			by[name] = t
		}
		return t
	}
	for _, p := range conv.Participants {
		get(p)
	}

	lex := Lexical{
		WordTotals:      make(map[string]int),
		CharacterTotals: make(map[string]int),
		EmojiTotals:     make(map[string]int),
		ReactionTotals:  make(map[string]int),
		Edits:           make(map[string]int),
	}

	for _, m := range conv.Messages {
		sender := get(m.Sender)
		for _, r := range m.Reactions {
			if !emojis.Has(r.Emoji) {
				continue
			}
			get(r.Actor).reactions[r.Emoji]++
			global.reactions[r.Emoji]++
			lex.ReactionTotals[r.Actor]++
		}
		if !m.HasContent {
			continue
		}
		if m.Edited() {
			lex.Edits[m.Sender]++
		}

		body := m.Body()
		lex.CharacterTotals[m.Sender] += utf8.RuneCountInString(body)

		for _, w := range Words(body, emojis) {
			sender.words[w]++
			global.words[w]++
			lex.WordTotals[m.Sender]++
		}

		for _, g := range graphemes(strings.ToLower(body)) {
			if emojis.Has(g) {
				sender.emoji[g]++
				global.emoji[g]++
				lex.EmojiTotals[m.Sender]++
				continue
			}
			for _, r := range g {
				if r == ' ' {
					continue
				}
				c := string(r)
				sender.chars[c]++
				global.chars[c]++
			}
		}
	}

	lex.Words = Rank(global.words)
	lex.Characters = Rank(global.chars)
	lex.Emoji = Rank(global.emoji)
	lex.Reactions = Rank(global.reactions)
	lex.WordsBy = make(map[string][]Count, len(by))
	lex.CharactersBy = make(map[string][]Count, len(by))
	lex.EmojiBy = make(map[string][]Count, len(by))
	lex.ReactionsBy = make(map[string][]Count, len(by))
	for name, t := range by {
		lex.WordsBy[name] = Rank(t.words)
		lex.CharactersBy[name] = Rank(t.chars)
		lex.EmojiBy[name] = Rank(t.emoji)
		lex.ReactionsBy[name] = Rank(t.reactions)
	}
	return lex
}

// Words extracts the counted words of a message body: whitespace tokens with
// edge punctuation and emoji removed, lower-cased unless case-sensitive.
func Words(body string, emojis EmojiSet) []string {
	var words []string
	for _, tok := range strings.Fields(body) {
		tok = strings.Trim(tok, wordStrip)
		tok = stripEmoji(tok, emojis)
		if tok == "" {
			continue
		}
		if !caseSensitive[tok] {
			tok = strings.ToLower(tok)
		}
		words = append(words, tok)
	}
	return words
}

func stripEmoji(tok string, emojis EmojiSet) string {
	if len(emojis) == 0 || tok == "" {
		return tok
	}
	var sb strings.Builder
	for _, g := range graphemes(tok) {
		if !emojis.Has(g) {
			sb.WriteString(g)
		}
	}
	return sb.String()
}

// TopEmojis builds the top n records of a ranked emoji table with the
// per-participant breakdown for every participant.
func TopEmojis(ranked []Count, by map[string][]Count, participants []string, n int) []TopEmoji {
	top := Top(ranked, n)
	out := make([]TopEmoji, len(top))
	for i, c := range top {
		per := make(map[string]int, len(participants))
		for _, p := range participants {
			per[p] = 0
		}
		for name, counts := range by {
			for _, pc := range counts {
				if pc.Key == c.Key {
					per[name] = pc.Count
					break
				}
			}
		}
		out[i] = TopEmoji{Emoji: c.Key, Total: c.Count, PerParticipant: per}
	}
	return out
}
