package classify

import (
	"reflect"
	"testing"
	"time"
)

func TestClassifyFamilies(t *testing.T) {
	cases := []struct {
		text    string
		tags    []string
		urgency int
	}{
		{"Call insurance to update RX", []string{"health"}, 2},
		{"Send resume by Friday 2pm", []string{"work"}, 2},
		{"Dinner with friends", []string{"social"}, 0},
		{"Study LLM paper (no hard deadline)", []string{"work", "learning"}, 2},
		{"30-min workout", []string{"fitness"}, 1},
		{"water the plants", []string{}, 1},
		{"URGENT: see the doctor", []string{"health"}, 3},
		{"Urgent recruiter email about the job offer, see doctor asap", []string{"work", "health"}, 3},
		{"party tonight", []string{"social"}, 0},
		{"Coffee with recruiter", []string{"work", "social"}, 1},
	}
	for _, tc := range cases {
		got := Classify(tc.text)
		if !reflect.DeepEqual(got.Tags, tc.tags) {
			t.Fatalf("%q: expected tags %#v, got %#v", tc.text, tc.tags, got.Tags)
		}
		if got.Urgency != tc.urgency {
			t.Fatalf("%q: expected urgency %d, got %d", tc.text, tc.urgency, got.Urgency)
		}
	}
}

func TestClassifyMatchesWholeWordsOnly(t *testing.T) {
	got := Classify("Reorganize the workshop bookshelf")
	if len(got.Tags) != 0 {
		t.Fatalf("expected no tags for partial words, got %#v", got.Tags)
	}
	if got.Urgency != BaseUrgency {
		t.Fatalf("expected base urgency, got %d", got.Urgency)
	}
}

func TestClassifyUrgentHealthSaturates(t *testing.T) {
	for _, text := range []string{
		"urgent doctor visit",
		"Hospital paperwork URGENT",
		"urgent: dentist, insurance, rx, medical",
	} {
		got := Classify(text)
		if got.Urgency != 3 {
			t.Fatalf("%q: expected urgency 3, got %d", text, got.Urgency)
		}
		if !containsTag(got.Tags, "health") {
			t.Fatalf("%q: expected health tag, got %#v", text, got.Tags)
		}
	}
}

func TestClassifyIsIdempotent(t *testing.T) {
	text := "Urgent: book dentist appointment and dinner with friends tomorrow"
	first := Classify(text)
	second := Classify(text)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results, got %#v and %#v", first, second)
	}
}

func TestClassifyClampsOnceAfterAllNudges(t *testing.T) {
	// Saturating step by step would reach 3 before the social nudge and end at 2.
	got := Classify("urgent work dinner with the doctor")
	if got.Urgency != 3 {
		t.Fatalf("expected urgency 3, got %d", got.Urgency)
	}
}

func TestClampUrgency(t *testing.T) {
	for in, want := range map[int]int{-4: 0, 0: 0, 2: 2, 3: 3, 9: 3} {
		if got := ClampUrgency(in); got != want {
			t.Fatalf("ClampUrgency(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestFallbackRewriteKeepsRawTitle(t *testing.T) {
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC) // Wednesday
	fb := FallbackRewrite("Send resume by Friday 2pm", now)
	if fb.Title != "Send resume by Friday 2pm" {
		t.Fatalf("expected raw title, got %q", fb.Title)
	}
	if fb.Due == nil {
		t.Fatalf("expected due date")
	}
	want := time.Date(2026, 10, 16, 14, 0, 0, 0, time.UTC)
	if !fb.Due.Equal(want) {
		t.Fatalf("expected due %s, got %s", want, fb.Due)
	}
	if fb.Urgency != 2 || !reflect.DeepEqual(fb.Tags, []string{"work"}) {
		t.Fatalf("unexpected classification: %#v", fb)
	}

	plain := FallbackRewrite("Call insurance to update RX", now)
	if plain.Due != nil {
		t.Fatalf("expected no due date, got %s", plain.Due)
	}
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
