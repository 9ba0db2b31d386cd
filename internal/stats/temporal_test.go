package stats

import (
	"testing"
	"time"

	"github.com/MikeSquared-Agency/chatstats/internal/conversation"
)

// base is a Monday.
var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// at returns the epoch milliseconds of day d at h:m:s after base.
func at(d, h, m, s int) int64 {
	return base.AddDate(0, 0, d).Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second).UnixMilli()
}

// newConv builds a conversation from messages given newest first.
func newConv(msgs ...conversation.Message) *conversation.Conversation {
	var participants []string
	seen := map[string]bool{}
	for _, m := range msgs {
		if !seen[m.Sender] {
			seen[m.Sender] = true
			participants = append(participants, m.Sender)
		}
	}
	return &conversation.Conversation{
		Title:        "test",
		Participants: participants,
		Messages:     msgs,
		Shards:       1,
		Order:        conversation.NewestFirst,
	}
}

func text(sender string, ts int64, content string) conversation.Message {
	return conversation.Message{
		Sender:     sender,
		Timestamp:  ts,
		Content:    content,
		HasContent: true,
		Kinds:      conversation.KindSet(0).With(conversation.KindText),
	}
}

func TestAnalyzeTemporal_GapDays(t *testing.T) {
	conv := newConv(
		text("A", at(4, 12, 0, 0), "late"),
		text("B", at(4, 9, 0, 0), "late"),
		text("A", at(0, 11, 30, 0), "early"),
		text("B", at(0, 10, 30, 0), "early"),
	)

	tm := AnalyzeTemporal(conv, time.UTC)

	if tm.Days != 5 {
		t.Fatalf("expected 5 days, got %d", tm.Days)
	}
	if len(tm.Timeline) != 5 {
		t.Fatalf("expected 5 buckets, got %d", len(tm.Timeline))
	}
	// The newest day is seeded with 1 on top of its two messages.
	wantCounts := []int{2, 0, 0, 0, 3}
	for i, b := range tm.Timeline {
		wantDate := base.AddDate(0, 0, i)
		if !b.Date.Equal(wantDate) {
			t.Errorf("bucket %d date = %s, want %s", i, b.Date, wantDate)
		}
		if b.Count != wantCounts[i] {
			t.Errorf("bucket %d count = %d, want %d", i, b.Count, wantCounts[i])
		}
	}
	if tm.ActiveDays != 2 {
		t.Errorf("expected 2 active days, got %d", tm.ActiveDays)
	}

	in := tm.InactiveStreak
	if in.Days != 3 || !in.Start.Equal(base.AddDate(0, 0, 1)) || !in.End.Equal(base.AddDate(0, 0, 3)) {
		t.Errorf("inactive streak = %+v, want 3 days from day 2 to day 4", in)
	}
	act := tm.ActiveStreak
	if act.Days != 1 || !act.Start.Equal(base) || !act.End.Equal(base) {
		t.Errorf("active streak = %+v, want the first day", act)
	}

	wantRatio := []float64{1, 0.5, 1.0 / 3, 0.25, 0.4}
	for i, r := range tm.ActivityRatio {
		if diff := r - wantRatio[i]; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("ratio[%d] = %f, want %f", i, r, wantRatio[i])
		}
	}
	if tm.BusiestDay.Count != 3 || !tm.BusiestDay.Date.Equal(base.AddDate(0, 0, 4)) {
		t.Errorf("busiest day = %+v, want the seeded newest day", tm.BusiestDay)
	}
}

func TestAnalyzeTemporal_DaysUseCalendarDates(t *testing.T) {
	// Less than 24 hours apart but on two calendar dates.
	conv := newConv(
		text("A", at(1, 1, 0, 0), "after midnight"),
		text("B", at(0, 23, 0, 0), "before midnight"),
	)

	tm := AnalyzeTemporal(conv, time.UTC)
	if tm.Days != 2 {
		t.Fatalf("expected 2 days, got %d", tm.Days)
	}
	if tm.Timeline[0].Count != 1 || tm.Timeline[1].Count != 2 {
		t.Errorf("unexpected timeline %+v", tm.Timeline)
	}
	if tm.ActiveStreak.Days != 2 {
		t.Errorf("expected a 2-day active streak, got %d", tm.ActiveStreak.Days)
	}
	if tm.InactiveStreak.Days != 0 {
		t.Errorf("expected no inactive streak, got %+v", tm.InactiveStreak)
	}
}

func TestAnalyzeTemporal_TimelineSeedsNewestDay(t *testing.T) {
	tests := []struct {
		name string
		msgs []conversation.Message
		want []int
	}{
		{
			name: "single message",
			msgs: []conversation.Message{text("A", at(0, 9, 0, 0), "x")},
			want: []int{2},
		},
		{
			name: "two days",
			msgs: []conversation.Message{
				text("A", at(1, 8, 0, 0), "x"),
				text("B", at(1, 7, 0, 0), "x"),
				text("A", at(0, 7, 0, 0), "x"),
			},
			want: []int{1, 3},
		},
		{
			name: "gap",
			msgs: []conversation.Message{
				text("A", at(2, 8, 0, 0), "x"),
				text("A", at(2, 7, 0, 0), "x"),
				text("A", at(0, 7, 0, 0), "x"),
			},
			want: []int{1, 0, 3},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm := AnalyzeTemporal(newConv(tt.msgs...), time.UTC)
			if len(tm.Timeline) != len(tt.want) {
				t.Fatalf("expected %d buckets, got %+v", len(tt.want), tm.Timeline)
			}
			for i, b := range tm.Timeline {
				if b.Count != tt.want[i] {
					t.Errorf("bucket %d count = %d, want %d", i, b.Count, tt.want[i])
				}
				if !b.Date.Equal(base.AddDate(0, 0, i)) {
					t.Errorf("bucket %d date = %s", i, b.Date)
				}
			}
		})
	}
}

func TestAnalyzeTemporal_HoursAndWeekdays(t *testing.T) {
	conv := newConv(
		text("A", at(6, 23, 45, 0), "sunday late"),
		text("A", at(1, 11, 30, 0), "tuesday"),
		text("A", at(0, 10, 30, 0), "monday"),
		text("A", at(0, 10, 29, 0), "monday"),
	)

	tm := AnalyzeTemporal(conv, time.UTC)

	if tm.Hours[0] != 1 {
		t.Errorf("23:45 should round to hour 0, hours = %v", tm.Hours)
	}
	if tm.Hours[10] != 2 {
		t.Errorf("10:29 and 10:30 should round to 10, hours = %v", tm.Hours)
	}
	if tm.Hours[12] != 1 {
		t.Errorf("11:30 should round to 12, hours = %v", tm.Hours)
	}
	if tm.Weekdays[0] != 2 || tm.Weekdays[1] != 1 || tm.Weekdays[6] != 1 {
		t.Errorf("unexpected weekdays %v", tm.Weekdays)
	}
}

func TestStreaks_TiesKeepEarliest(t *testing.T) {
	d := func(n int) time.Time { return base.AddDate(0, 0, n) }

	active, inactive := streaks([]time.Time{d(0), d(1), d(4), d(5), d(8)})
	if active.Days != 2 || !active.Start.Equal(d(0)) {
		t.Errorf("active = %+v, want the first 2-day run", active)
	}
	if inactive.Days != 2 || !inactive.Start.Equal(d(2)) || !inactive.End.Equal(d(3)) {
		t.Errorf("inactive = %+v, want days 2-3", inactive)
	}

	active, _ = streaks([]time.Time{d(0), d(3), d(4), d(5)})
	if active.Days != 3 || !active.Start.Equal(d(3)) || !active.End.Equal(d(5)) {
		t.Errorf("active = %+v, want days 3-5", active)
	}
}

func TestAnalyzeTemporal_SingleMessage(t *testing.T) {
	conv := newConv(text("A", at(0, 9, 0, 0), "solo"))

	tm := AnalyzeTemporal(conv, time.UTC)
	if tm.Days != 1 || len(tm.Timeline) != 1 || tm.Timeline[0].Count != 2 {
		t.Errorf("unexpected single-message temporal %+v", tm)
	}
	if tm.ActivityRatio[0] != 1 {
		t.Errorf("expected ratio 1, got %f", tm.ActivityRatio[0])
	}
}
