package stats

import (
	"math"
	"sort"

	"github.com/MikeSquared-Agency/chatstats/internal/conversation"
)

// DefaultReplyCeiling excludes gaps longer than a day from reply averages.
const DefaultReplyCeiling = 86400.0

// ReplyEvent is the latency between two chronologically adjacent messages,
// attributed to the sender of the newer one.
type ReplyEvent struct {
	Participant string  `json:"participant"`
	Seconds     float64 `json:"seconds"`
	Self        bool    `json:"self"`
}

// Summary holds central-tendency statistics of a latency list.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Mode   float64 `json:"mode"`
}

// Replies holds reply latencies. Cross-sender replies and same-sender bursts
// are kept apart and never feed the same statistic.
type Replies struct {
	Ceiling float64 `json:"ceiling"`

	// Uncapped latency lists, in the order they were observed.
	All    []float64            `json:"-"`
	By     map[string][]float64 `json:"-"`
	SelfBy map[string][]float64 `json:"-"`

	Global      Summary            `json:"global"`
	Summaries   map[string]Summary `json:"by_participant"`
	SelfSummary map[string]Summary `json:"self_by_participant"`
}

// ReplyEvents lists the latency between each adjacent pair of messages,
// newest pair first. Negative latencies are dropped as corrupt.
// The newest message is never paired with the oldest one.
func ReplyEvents(conv *conversation.Conversation) []ReplyEvent {
	var events []ReplyEvent
	for i := 0; i+1 < len(conv.Messages); i++ {
		newer, older := conv.Messages[i], conv.Messages[i+1]
		secs := float64(newer.Timestamp-older.Timestamp) / 1000
		if secs < 0 {
			continue
		}
		events = append(events, ReplyEvent{
			Participant: newer.Sender,
			Seconds:     secs,
			Self:        newer.Sender == older.Sender,
		})
	}
	return events
}

// AnalyzeReplies derives reply and burst latencies and summarises them,
// ignoring latencies above ceiling seconds in the summaries only.
func AnalyzeReplies(conv *conversation.Conversation, ceiling float64) Replies {
	if ceiling <= 0 {
		ceiling = DefaultReplyCeiling
	}
	r := Replies{
		Ceiling:     ceiling,
		By:          make(map[string][]float64),
		SelfBy:      make(map[string][]float64),
		Summaries:   make(map[string]Summary),
		SelfSummary: make(map[string]Summary),
	}
	for _, ev := range ReplyEvents(conv) {
		if ev.Self {
			r.SelfBy[ev.Participant] = append(r.SelfBy[ev.Participant], ev.Seconds)
			continue
		}
		r.All = append(r.All, ev.Seconds)
		r.By[ev.Participant] = append(r.By[ev.Participant], ev.Seconds)
	}

	r.Global = Summarize(r.All, ceiling)
	for _, p := range conv.Participants {
		r.Summaries[p] = Summarize(r.By[p], ceiling)
		r.SelfSummary[p] = Summarize(r.SelfBy[p], ceiling)
	}
	return r
}

// Summarize computes mean, median and mode of the latencies not above ceiling.
// The mode is taken over whole seconds, ties resolved to the smallest value.
// Every field is zero for an empty list.
func Summarize(latencies []float64, ceiling float64) Summary {
	capped := make([]float64, 0, len(latencies))
	for _, l := range latencies {
		if l <= ceiling {
			capped = append(capped, l)
		}
	}
	if len(capped) == 0 {
		return Summary{}
	}
	sort.Float64s(capped)

	sum := 0.0
	freq := make(map[int64]int)
	for _, l := range capped {
		sum += l
		freq[int64(math.Trunc(l))]++
	}

	n := len(capped)
	median := capped[n/2]
	if n%2 == 0 {
		median = (capped[n/2-1] + capped[n/2]) / 2
	}

	var mode int64
	best := 0
	for v, c := range freq {
		if c > best || (c == best && v < mode) {
			mode, best = v, c
		}
	}

	return Summary{
		Count:  n,
		Mean:   sum / float64(n),
		Median: median,
		Mode:   float64(mode),
	}
}
