// Package report renders computed statistics as a plain-text report.
package report

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/MikeSquared-Agency/chatstats/internal/stats"
)

// ErrUnknownParticipant is returned when the report is filtered on a name
// that is not part of the conversation.
var ErrUnknownParticipant = errors.New("participant not in conversation")

const (
	bannerWidth = 80
	timeLayout  = "2006-01-02 15:04:05"
	dateLayout  = "2006-01-02"
)

// Options selects what WriteText prints.
type Options struct {
	// User restricts per-participant sections to one participant.
	User string
	// TopN caps every top list; zero prints the lists as computed.
	TopN int
	// Participants is the cutoff of the per-participant rollups, the rest
	// being summed into one Rest entry. Zero selects DefaultParticipants.
	Participants int
}

// DefaultParticipants participants are named in each rollup line.
const DefaultParticipants = 5

// Banner centres msg, padded with spaces, in a line of width ch runes.
// Odd padding puts the extra rune on the right.
func Banner(msg string, ch rune, width int) string {
	text := " " + msg + " "
	pad := width - len([]rune(text))
	if pad <= 0 {
		return text
	}
	left := pad / 2
	fill := string(ch)
	return strings.Repeat(fill, left) + text + strings.Repeat(fill, pad-left)
}

// WriteText writes the report of s to w.
func WriteText(w io.Writer, s *stats.Statistics, opts Options) error {
	if opts.User != "" && !slices.Contains(s.Participants, opts.User) {
		return fmt.Errorf("report for %q: %w", opts.User, ErrUnknownParticipant)
	}

	var sb strings.Builder
	section := func(name string) {
		sb.WriteString(Banner(name, '=', bannerWidth))
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "%s\n", s.Title)
	if s.Shards > 1 {
		fmt.Fprintf(&sb, "(merged from %d files)\n", s.Shards)
	}
	if s.InsufficientData {
		sb.WriteString("Warning: few messages, statistics may not be meaningful\n")
	}

	section("Times")
	fmt.Fprintf(&sb, "Start: %s\n", s.Temporal.Start.Format(timeLayout))
	fmt.Fprintf(&sb, "End: %s\n", s.Temporal.End.Format(timeLayout))

	section("Totals")
	for _, c := range s.MessagesBy {
		if opts.User != "" && c.Key != opts.User {
			continue
		}
		fmt.Fprintf(&sb, "Number of messages %s: %d (%.2f %%)\n", c.Key, c.Count, s.Share(c.Key))
	}
	fmt.Fprintf(&sb, "Number of days: %d (%d active)\n", s.Temporal.Days, s.Temporal.ActiveDays)
	if opts.User == "" {
		fmt.Fprintf(&sb, "Number of messages: %d\n", s.Messages)
		fmt.Fprintf(&sb, "Number of words: %d\n", s.Words)
		fmt.Fprintf(&sb, "Number of characters: %d\n", s.Characters)
		fmt.Fprintf(&sb, "Number of edits: %d\n", s.Edits)

		k := opts.Participants
		if k <= 0 {
			k = DefaultParticipants
		}
		writeRollup(&sb, "Messages by", s.TopParticipantsByMessages(k))
		writeRollup(&sb, "Words by", s.TopParticipantsByWords(k))
		writeRollup(&sb, "Characters by", s.TopParticipantsByCharacters(k))
		writeRollup(&sb, "Edits by", s.TopParticipantsByEdits(k))
	} else {
		fmt.Fprintf(&sb, "Number of words: %d\n", countOf(s.WordsBy, opts.User))
		fmt.Fprintf(&sb, "Number of characters: %d\n", countOf(s.CharactersBy, opts.User))
		fmt.Fprintf(&sb, "Number of edits: %d\n", countOf(s.EditsBy, opts.User))
		fmt.Fprintf(&sb, "Number of unsent messages: %d\n", s.UnsentBy[opts.User])
	}

	section("Averages")
	avg := s.Averages
	if opts.User != "" {
		avg = s.AveragesBy[opts.User]
	}
	fmt.Fprintf(&sb, "Average length of messages: %.2f words\n", avg.WordsPerMessage)
	fmt.Fprintf(&sb, "Average length of messages: %.2f characters\n", avg.CharactersPerMessage)
	fmt.Fprintf(&sb, "Average length of words: %.2f characters\n", avg.CharactersPerWord)
	fmt.Fprintf(&sb, "Average messages per day: %.2f\n", avg.MessagesPerDay)

	section("Activity")
	t := s.Temporal
	if t.BusiestDay.Count > 0 {
		fmt.Fprintf(&sb, "Most messages in one day: %d (%s)\n", t.BusiestDay.Count, t.BusiestDay.Date.Format(dateLayout))
	}
	writeStreak(&sb, "Longest active streak", t.ActiveStreak)
	writeStreak(&sb, "Longest inactive streak", t.InactiveStreak)
	fmt.Fprintf(&sb, "Busiest hour: %02d:00\n", argmax(t.Hours[:]))
	fmt.Fprintf(&sb, "Busiest weekday: %s\n", weekdays[argmax(t.Weekdays[:])])

	section("Reply times")
	r := s.Replies
	if opts.User == "" {
		writeSummary(&sb, "All", r.Global)
	}
	for _, p := range s.Participants {
		if opts.User != "" && p != opts.User {
			continue
		}
		writeSummary(&sb, p, r.Summaries[p])
		writeSummary(&sb, p+" (consecutive)", r.SelfSummary[p])
	}

	words, chars, emoji := s.TopWords, s.TopCharacters, emojiCounts(s.TopEmoji)
	reactions := emojiCounts(s.TopReactions)
	if opts.User != "" {
		words, chars = s.TopWordsBy[opts.User], s.TopCharactersBy[opts.User]
		emoji, reactions = s.TopEmojiBy[opts.User], s.TopReactionsBy[opts.User]
	}

	section("Top words")
	writeCounts(&sb, words, opts.TopN)
	section("Top characters")
	writeCounts(&sb, chars, opts.TopN)
	section("Top emoji")
	writeCounts(&sb, emoji, opts.TopN)
	section("Top reactions")
	writeCounts(&sb, reactions, opts.TopN)

	_, err := io.WriteString(w, sb.String())
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

var weekdays = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

func writeStreak(sb *strings.Builder, label string, st stats.Streak) {
	if st.Days == 0 {
		fmt.Fprintf(sb, "%s: none\n", label)
		return
	}
	fmt.Fprintf(sb, "%s: %d days (%s to %s)\n", label, st.Days, st.Start.Format(dateLayout), st.End.Format(dateLayout))
}

func writeSummary(sb *strings.Builder, label string, sum stats.Summary) {
	if sum.Count == 0 {
		fmt.Fprintf(sb, "%s: no replies\n", label)
		return
	}
	fmt.Fprintf(sb, "%s: mean %s, median %s, mode %s (%d replies)\n",
		label, seconds(sum.Mean), seconds(sum.Median), seconds(sum.Mode), sum.Count)
}

func writeRollup(sb *strings.Builder, label string, counts []stats.Count) {
	parts := make([]string, len(counts))
	for i, c := range counts {
		parts[i] = fmt.Sprintf("%s %d", c.Key, c.Count)
	}
	fmt.Fprintf(sb, "%s: %s\n", label, strings.Join(parts, ", "))
}

func writeCounts(sb *strings.Builder, counts []stats.Count, n int) {
	if n > 0 {
		counts = stats.Top(counts, n)
	}
	if len(counts) == 0 {
		sb.WriteString("(none)\n")
		return
	}
	for i, c := range counts {
		fmt.Fprintf(sb, "%2d. %s: %d\n", i+1, c.Key, c.Count)
	}
}

// seconds renders a latency with the largest fitting unit.
func seconds(v float64) string {
	switch {
	case v >= 3600:
		return fmt.Sprintf("%.1fh", v/3600)
	case v >= 60:
		return fmt.Sprintf("%.1fm", v/60)
	default:
		return fmt.Sprintf("%.1fs", v)
	}
}

func emojiCounts(top []stats.TopEmoji) []stats.Count {
	out := make([]stats.Count, len(top))
	for i, e := range top {
		out[i] = stats.Count{Key: e.Emoji, Count: e.Total}
	}
	return out
}

func countOf(counts []stats.Count, key string) int {
	for _, c := range counts {
		if c.Key == key {
			return c.Count
		}
	}
	return 0
}

// argmax returns the first index holding the largest value.
func argmax(v []int) int {
	best := 0
	for i := range v {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
