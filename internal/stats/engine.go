package stats

import (
	"errors"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/MikeSquared-Agency/chatstats/internal/conversation"
)

// ErrEmptyConversation is returned for conversations without participants or messages.
var ErrEmptyConversation = errors.New("conversation has no participants or no messages")

const (
	DefaultTopN        = 10
	DefaultMinMessages = 10
)

// Options tunes a statistics run. Zero values select the defaults.
type Options struct {
	TopN         int
	ReplyCeiling float64 // seconds
	MinMessages  int
	Location     *time.Location
	Logger       *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.TopN <= 0 {
		o.TopN = DefaultTopN
	}
	if o.ReplyCeiling <= 0 {
		o.ReplyCeiling = DefaultReplyCeiling
	}
	if o.MinMessages <= 0 {
		o.MinMessages = DefaultMinMessages
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Averages are per-message and per-day ratios; zero when the denominator is zero.
type Averages struct {
	MessagesPerDay       float64 `json:"messages_per_day"`
	WordsPerMessage      float64 `json:"words_per_message"`
	CharactersPerMessage float64 `json:"characters_per_message"`
	CharactersPerWord    float64 `json:"characters_per_word"`
}

// Statistics is the fully computed, read-only result of one conversation.
type Statistics struct {
	Title        string   `json:"title"`
	Participants []string `json:"participants"`
	Shards       int      `json:"shards"`

	Messages   int `json:"messages"`
	Words      int `json:"words"`
	Characters int `json:"characters"`
	Edits      int `json:"edits"`

	// Per participant, ranked by count descending.
	MessagesBy   []Count `json:"messages_by"`
	WordsBy      []Count `json:"words_by"`
	CharactersBy []Count `json:"characters_by"`
	EditsBy      []Count `json:"edits_by"`

	Averages   Averages            `json:"averages"`
	AveragesBy map[string]Averages `json:"averages_by"`

	Temporal Temporal `json:"temporal"`

	TopWords        []Count            `json:"top_words"`
	TopWordsBy      map[string][]Count `json:"top_words_by"`
	TopCharacters   []Count            `json:"top_characters"`
	TopCharactersBy map[string][]Count `json:"top_characters_by"`
	TopEmoji        []TopEmoji         `json:"top_emoji"`
	TopEmojiBy      map[string][]Count `json:"top_emoji_by"`
	EmojiTotals     []Count            `json:"emoji_totals"`
	TopReactions    []TopEmoji         `json:"top_reactions"`
	TopReactionsBy  map[string][]Count `json:"top_reactions_by"`
	ReactionTotals  []Count            `json:"reaction_totals"`

	Replies Replies `json:"replies"`

	KindsBy          map[string]map[string]int `json:"kinds_by"`
	UnsentBy         map[string]int            `json:"unsent_by"`
	InsufficientData bool                      `json:"insufficient_data"`
}

// Compute runs every analysis pass over conv. conv is only read.
func Compute(conv *conversation.Conversation, opts Options) (*Statistics, error) {
	if conv == nil || len(conv.Participants) == 0 || len(conv.Messages) == 0 {
		return nil, ErrEmptyConversation
	}
	opts = opts.withDefaults()

	s := &Statistics{
		Title:        conv.Title,
		Participants: conv.Participants,
		Shards:       conv.Shards,
		Messages:     len(conv.Messages),
		KindsBy:      make(map[string]map[string]int),
		UnsentBy:     make(map[string]int),
		AveragesBy:   make(map[string]Averages),
	}
	if s.Messages < opts.MinMessages {
		s.InsufficientData = true
		opts.Logger.Warn("conversation has few messages",
			"title", conv.Title,
			"messages", s.Messages,
			"min_messages", opts.MinMessages,
		)
	}

	msgs := make(map[string]int)
	for _, m := range conv.Messages {
		msgs[m.Sender]++
		for _, k := range conversation.AllKinds {
			if m.Kinds.Has(k) {
				if s.KindsBy[m.Sender] == nil {
					s.KindsBy[m.Sender] = make(map[string]int)
				}
				s.KindsBy[m.Sender][k.String()]++
			}
		}
		if m.Unsent {
			s.UnsentBy[m.Sender]++
		}
	}

	s.Temporal = AnalyzeTemporal(conv, opts.Location)
	s.Replies = AnalyzeReplies(conv, opts.ReplyCeiling)
	lex := AnalyzeLexical(conv, UsedEmojis(conv))

	s.MessagesBy = rankParticipants(conv.Participants, msgs)
	s.WordsBy = rankParticipants(conv.Participants, lex.WordTotals)
	s.CharactersBy = rankParticipants(conv.Participants, lex.CharacterTotals)
	s.EditsBy = rankParticipants(conv.Participants, lex.Edits)
	s.Words = Sum(s.WordsBy)
	s.Characters = Sum(s.CharactersBy)
	s.Edits = Sum(s.EditsBy)

	s.Averages = averages(s.Messages, s.Words, s.Characters, s.Temporal.Days)
	for _, p := range conv.Participants {
		s.AveragesBy[p] = averages(msgs[p], lex.WordTotals[p], lex.CharacterTotals[p], s.Temporal.Days)
	}

	s.TopWords = Top(lex.Words, opts.TopN)
	s.TopCharacters = Top(lex.Characters, opts.TopN)
	s.TopEmoji = TopEmojis(lex.Emoji, lex.EmojiBy, conv.Participants, opts.TopN)
	s.TopReactions = TopEmojis(lex.Reactions, lex.ReactionsBy, conv.Participants, opts.TopN)
	s.EmojiTotals = rankParticipants(conv.Participants, lex.EmojiTotals)
	s.ReactionTotals = rankParticipants(withExtraKeys(conv.Participants, lex.ReactionTotals), lex.ReactionTotals)
	s.TopWordsBy = topBy(lex.WordsBy, opts.TopN)
	s.TopCharactersBy = topBy(lex.CharactersBy, opts.TopN)
	s.TopEmojiBy = topBy(lex.EmojiBy, opts.TopN)
	s.TopReactionsBy = topBy(lex.ReactionsBy, opts.TopN)

	return s, nil
}

func averages(msgs, words, chars, days int) Averages {
	return Averages{
		MessagesPerDay:       ratio(msgs, days),
		WordsPerMessage:      ratio(words, msgs),
		CharactersPerMessage: ratio(chars, msgs),
		CharactersPerWord:    ratio(chars, words),
	}
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

// withExtraKeys appends the keys of freq missing from names, sorted, so that
// reaction actors outside the participant list keep their counts.
func withExtraKeys(names []string, freq map[string]int) []string {
	var extra []string
	for k := range freq {
		if !slices.Contains(names, k) {
			extra = append(extra, k)
		}
	}
	if len(extra) == 0 {
		return names
	}
	sort.Strings(extra)
	return append(slices.Clip(names), extra...)
}

func topBy(by map[string][]Count, n int) map[string][]Count {
	out := make(map[string][]Count, len(by))
	for name, counts := range by {
		out[name] = Top(counts, n)
	}
	return out
}

// TopParticipantsByMessages returns the k most active senders plus a Rest entry.
func (s *Statistics) TopParticipantsByMessages(k int) []Count {
	return TopWithRest(s.MessagesBy, k)
}

// TopParticipantsByWords returns the k wordiest participants plus a Rest entry.
func (s *Statistics) TopParticipantsByWords(k int) []Count {
	return TopWithRest(s.WordsBy, k)
}

// TopParticipantsByCharacters returns the k participants with most characters plus a Rest entry.
func (s *Statistics) TopParticipantsByCharacters(k int) []Count {
	return TopWithRest(s.CharactersBy, k)
}

// TopParticipantsByEdits returns the k participants with most edits plus a Rest entry.
func (s *Statistics) TopParticipantsByEdits(k int) []Count {
	return TopWithRest(s.EditsBy, k)
}

// Share returns the fraction of all messages sent by participant, in percent.
func (s *Statistics) Share(participant string) float64 {
	for _, c := range s.MessagesBy {
		if c.Key == participant {
			return 100 * ratio(c.Count, s.Messages)
		}
	}
	return 0
}
