package stats

import (
	"sort"
)

// RestKey labels the synthetic rollup entry holding everything past the cutoff.
const RestKey = "Rest"

// Count is one entry of a ranked table.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Rank orders a frequency table by count descending, ties broken by ascending key.
func Rank(freq map[string]int) []Count {
	out := make([]Count, 0, len(freq))
	for k, v := range freq {
		out = append(out, Count{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Key < out[j].Key
		}
		return out[i].Count > out[j].Count
	})
	return out
}

// rankParticipants orders participants by count descending. Ties keep the
// participant order of the conversation, and participants with no entry count as 0.
func rankParticipants(participants []string, freq map[string]int) []Count {
	out := make([]Count, len(participants))
	for i, p := range participants {
		out[i] = Count{Key: p, Count: freq[p]}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	return out
}

// Top returns at most n leading entries of a ranked table.
func Top(ranked []Count, n int) []Count {
	if n < 0 || len(ranked) <= n {
		return ranked
	}
	return ranked[:n]
}

// TopWithRest returns the first k entries of ranked unchanged and, when more
// entries exist, a final RestKey entry carrying the sum of everything else.
// The values of the result always sum to the values of ranked.
func TopWithRest(ranked []Count, k int) []Count {
	if k < 0 {
		k = 0
	}
	if len(ranked) <= k {
		out := make([]Count, len(ranked))
		copy(out, ranked)
		return out
	}
	out := make([]Count, k, k+1)
	copy(out, ranked[:k])
	total, shown := 0, 0
	for i, c := range ranked {
		total += c.Count
		if i < k {
			shown += c.Count
		}
	}
	return append(out, Count{Key: RestKey, Count: total - shown})
}

// Sum adds up the counts of a table.
func Sum(counts []Count) int {
	n := 0
	for _, c := range counts {
		n += c.Count
	}
	return n
}
