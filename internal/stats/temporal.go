package stats

import (
	"math"
	"sort"
	"time"

	"github.com/MikeSquared-Agency/chatstats/internal/conversation"
)

// DayBucket is the message count of one calendar day. The newest day of a
// timeline carries one extra count from its seed.
type DayBucket struct {
	Date  time.Time `json:"date"`
	Count int       `json:"count"`
}

// Streak is a run of consecutive calendar days sharing the same activity status.
type Streak struct {
	Days  int       `json:"days"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Temporal holds every time-bucketed view of a conversation.
type Temporal struct {
	Start          time.Time   `json:"start"`
	End            time.Time   `json:"end"`
	Days           int         `json:"days"`
	ActiveDays     int         `json:"active_days"`
	Timeline       []DayBucket `json:"timeline"`
	Hours          [24]int     `json:"hours"`
	Weekdays       [7]int      `json:"weekdays"` // 0=Monday
	ActiveStreak   Streak      `json:"active_streak"`
	InactiveStreak Streak      `json:"inactive_streak"`
	ActivityRatio  []float64   `json:"activity_ratio"`
	BusiestDay     DayBucket   `json:"busiest_day"`
}

// AnalyzeTemporal builds the day timeline, hour and weekday histograms,
// streaks and activity ratio. conv must hold at least one message.
func AnalyzeTemporal(conv *conversation.Conversation, loc *time.Location) Temporal {
	if loc == nil {
		loc = time.Local
	}
	t := Temporal{
		Start: conv.Oldest().Time(loc),
		End:   conv.Newest().Time(loc),
	}

	first, last := dateSpan(conv, loc)
	t.Days = daysBetween(first, last) + 1
	t.Timeline = make([]DayBucket, t.Days)
	set := make([]bool, t.Days)

	// Walk newest first. The newest day is seeded with 1 before the walk counts
	// its messages, and the running bucket moves back by the exact day gap
	// whenever an earlier date shows up.
	idx := t.Days - 1
	current := last
	t.Timeline[idx] = DayBucket{Date: current, Count: 1}
	set[idx] = true
	for _, m := range conv.Messages {
		ts := m.Time(loc)
		t.Hours[hourSlot(ts)]++
		t.Weekdays[(int(ts.Weekday())+6)%7]++

		d := civil(ts)
		switch {
		case d.Equal(current):
			t.Timeline[idx].Count++
		case d.Before(current):
			idx -= daysBetween(d, current)
			current = d
			t.Timeline[idx] = DayBucket{Date: d, Count: 1}
			set[idx] = true
		default:
			// Out of order timestamp: count it on its own day without moving the walk.
			i := daysBetween(first, d)
			t.Timeline[i].Date = d
			t.Timeline[i].Count++
			set[i] = true
		}
	}
	for i := range t.Timeline {
		if !set[i] {
			t.Timeline[i].Date = t.Timeline[i-1].Date.AddDate(0, 0, 1)
		}
	}

	active := activeDates(conv, loc)
	t.ActiveDays = len(active)
	t.ActiveStreak, t.InactiveStreak = streaks(active)
	t.ActivityRatio = activityRatio(t.Timeline)
	t.BusiestDay = busiest(t.Timeline)
	return t
}

// hourSlot rounds a time of day to the nearest hour, half to even, wrapping 24 to 0.
func hourSlot(ts time.Time) int {
	h := int(math.RoundToEven(float64(ts.Hour()) + float64(ts.Minute())/60 + float64(ts.Second())/3600))
	if h == 24 {
		h = 0
	}
	return h
}

// civil truncates ts to its calendar date, expressed as UTC midnight so that
// day arithmetic is free of DST shifts.
func civil(ts time.Time) time.Time {
	y, m, d := ts.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

func dateSpan(conv *conversation.Conversation, loc *time.Location) (first, last time.Time) {
	first = civil(conv.Oldest().Time(loc))
	last = civil(conv.Newest().Time(loc))
	for _, m := range conv.Messages {
		d := civil(m.Time(loc))
		if d.Before(first) {
			first = d
		}
		if d.After(last) {
			last = d
		}
	}
	return first, last
}

// activeDates returns the distinct calendar dates with activity, oldest first.
func activeDates(conv *conversation.Conversation, loc *time.Location) []time.Time {
	seen := make(map[time.Time]bool)
	var dates []time.Time
	for _, m := range conv.Chronological() {
		d := civil(m.Time(loc))
		if !seen[d] {
			seen[d] = true
			dates = append(dates, d)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// streaks finds the longest run of consecutive active dates and the longest
// run of inactive dates between two active ones. Ties keep the earliest run.
func streaks(dates []time.Time) (active, inactive Streak) {
	if len(dates) == 0 {
		return
	}
	run := Streak{Days: 1, Start: dates[0], End: dates[0]}
	active = run
	for i := 1; i < len(dates); i++ {
		gap := daysBetween(dates[i-1], dates[i])
		if gap == 1 {
			run.Days++
			run.End = dates[i]
		} else {
			run = Streak{Days: 1, Start: dates[i], End: dates[i]}
			if idle := gap - 1; idle > inactive.Days {
				inactive = Streak{
					Days:  idle,
					Start: dates[i-1].AddDate(0, 0, 1),
					End:   dates[i].AddDate(0, 0, -1),
				}
			}
		}
		if run.Days > active.Days {
			active = run
		}
	}
	return active, inactive
}

// activityRatio is, per day, the share of days so far that had any activity.
func activityRatio(timeline []DayBucket) []float64 {
	out := make([]float64, len(timeline))
	cumulative := 0
	for i, b := range timeline {
		if b.Count > 0 {
			cumulative++
		}
		out[i] = float64(cumulative) / float64(i+1)
	}
	return out
}

func busiest(timeline []DayBucket) DayBucket {
	var best DayBucket
	for _, b := range timeline {
		if b.Count > best.Count {
			best = b
		}
	}
	return best
}
