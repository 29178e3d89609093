package classify

import (
	"testing"
	"time"
)

// 2026-10-14 is a Wednesday.
var wednesday = time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolveDue(t *testing.T) {
	cases := []struct {
		text string
		want time.Time
	}{
		{"pay rent 2026-11-01", day(2026, 11, 1)},
		{"pay rent 11/1/2026", day(2026, 11, 1)},
		{"pay rent 1/15/2027 or today", day(2027, 1, 15)},
		{"finish today", day(2026, 10, 14)},
		{"finish TODAY at 5pm", time.Date(2026, 10, 14, 17, 0, 0, 0, time.UTC)},
		{"call mom tomorrow", day(2026, 10, 15)},
		{"tomorrow 9:15am standup", time.Date(2026, 10, 15, 9, 15, 0, 0, time.UTC)},
		{"Send resume by Friday 2pm", time.Date(2026, 10, 16, 14, 0, 0, 0, time.UTC)},
		{"gym on monday", day(2026, 10, 19)},
		{"sunday brunch", day(2026, 10, 18)},
		{"renew passport next week", day(2026, 10, 21)},
		{"tomorrow, or friday", day(2026, 10, 15)},
		{"lunch friday 12pm", time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)},
		{"flight saturday 12am", day(2026, 10, 17)},
	}
	for _, tc := range cases {
		got, ok := ResolveDue(tc.text, wednesday)
		if !ok {
			t.Fatalf("%q: expected a due date", tc.text)
		}
		if !got.Equal(tc.want) {
			t.Fatalf("%q: expected %s, got %s", tc.text, tc.want, got)
		}
	}
}

func TestResolveDueSameWeekdayRollsForward(t *testing.T) {
	got, ok := ResolveDue("team sync wednesday", wednesday)
	if !ok {
		t.Fatalf("expected a due date")
	}
	want := day(2026, 10, 21)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestResolveDueNoPhrase(t *testing.T) {
	for _, text := range []string{
		"",
		"Call insurance to update RX",
		"read chapter 10",
		"fridays are long",
		"invalid 2026-02-30 date",
		"13/45/2026 is not a date",
	} {
		if got, ok := ResolveDue(text, wednesday); ok {
			t.Fatalf("%q: expected no due date, got %s", text, got)
		}
	}
}

func TestResolveDueExplicitDateIgnoresTimeOfDay(t *testing.T) {
	got, ok := ResolveDue("dentist 2026-12-01 at 3pm", wednesday)
	if !ok {
		t.Fatalf("expected a due date")
	}
	if !got.Equal(day(2026, 12, 1)) {
		t.Fatalf("expected date-only result, got %s", got)
	}
}

func TestResolveDueUsesLocationOfNow(t *testing.T) {
	loc := time.FixedZone("UTC-7", -7*3600)
	now := time.Date(2026, 10, 14, 22, 0, 0, 0, loc)
	got, ok := ResolveDue("today", now)
	if !ok {
		t.Fatalf("expected a due date")
	}
	if got.Location() != loc || got.Day() != 14 {
		t.Fatalf("expected local date, got %s", got)
	}
}
