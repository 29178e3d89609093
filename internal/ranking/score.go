// Package ranking scores tasks for display and orders them. Scores are
// derived on every call and never stored.
package ranking

import (
	"sort"
	"time"
)

// Input is the part of a task the scorer reads.
type Input struct {
	Urgency     int
	UserUrgency *int
	Due         *time.Time
	Pinned      bool
	CreatedAt   time.Time
}

// EffectiveUrgency is the user override when present, else the derived urgency.
func (in Input) EffectiveUrgency() int {
	if in.UserUrgency != nil {
		return *in.UserUrgency
	}
	return in.Urgency
}

// Weights tunes the score. Each due band's range sits strictly above the
// next lower band's, and Recency is smaller than the narrowest gap between
// bands, so creation age only breaks ties inside a band.
type Weights struct {
	Urgency float64 // per urgency point

	Overdue        float64 // base for overdue tasks
	OverduePerDay  float64
	OverdueDayCap  float64 // days after which overdue stops growing
	DueDay         float64 // base for due within 24h
	DueDaySpan     float64 // added as the deadline approaches
	DueWeek        float64 // base for due within 7 days
	DueWeekPerDay  float64 // per day remaining under 7
	DueLater       float64 // floor for due beyond 7 days
	DueLaterSpan   float64 // shrinks with distance
	NoDue          float64
	Recency        float64 // upper bound of the age term
	RecencyHalfAge time.Duration

	Pinned float64
}

// DefaultWeights returns the scoring weights used for display.
//
//	overdue   (10000, 46500]
//	24h       [5000, 6000]
//	7 days    [2000, 2600)
//	later     (200, 1000)
//	no due    100
func DefaultWeights() Weights {
	return Weights{
		Urgency:        1000,
		Overdue:        10000,
		OverduePerDay:  100,
		OverdueDayCap:  365,
		DueDay:         5000,
		DueDaySpan:     1000,
		DueWeek:        2000,
		DueWeekPerDay:  100,
		DueLater:       200,
		DueLaterSpan:   800,
		NoDue:          100,
		Recency:        50,
		RecencyHalfAge: 7 * 24 * time.Hour,
		Pinned:         1_000_000,
	}
}

// Band names the due-date proximity tier of a task.
type Band string

const (
	BandOverdue Band = "overdue"
	BandDueSoon Band = "due-soon"
	BandWeek    Band = "due-this-week"
	BandLater   Band = "later"
	BandNoDue   Band = "no-due"
)

// BandOf classifies due relative to now.
func BandOf(due *time.Time, now time.Time) Band {
	if due == nil {
		return BandNoDue
	}
	days := due.Sub(now).Hours() / 24
	switch {
	case days < 0:
		return BandOverdue
	case days <= 1:
		return BandDueSoon
	case days <= 7:
		return BandWeek
	default:
		return BandLater
	}
}

// Score computes the display score with DefaultWeights.
func Score(in Input, now time.Time) float64 {
	return DefaultWeights().Score(in, now)
}

func (w Weights) Score(in Input, now time.Time) float64 {
	score := w.Urgency*float64(in.EffectiveUrgency()) + w.dueTerm(in.Due, now) + w.recencyTerm(in.CreatedAt, now)
	if in.Pinned {
		score += w.Pinned
	}
	return score
}

func (w Weights) dueTerm(due *time.Time, now time.Time) float64 {
	if due == nil {
		return w.NoDue
	}
	days := due.Sub(now).Hours() / 24
	switch BandOf(due, now) {
	case BandOverdue:
		overdue := -days
		if overdue > w.OverdueDayCap {
			overdue = w.OverdueDayCap
		}
		return w.Overdue + overdue*w.OverduePerDay
	case BandDueSoon:
		return w.DueDay + (1-days)*w.DueDaySpan
	case BandWeek:
		return w.DueWeek + (7-days)*w.DueWeekPerDay
	default:
		return w.DueLater + w.DueLaterSpan*7/days
	}
}

// recencyTerm grows with age and stays below w.Recency.
func (w Weights) recencyTerm(createdAt time.Time, now time.Time) float64 {
	age := now.Sub(createdAt)
	if age <= 0 || w.RecencyHalfAge <= 0 {
		return 0
	}
	a := float64(age)
	return w.Recency * a / (a + float64(w.RecencyHalfAge))
}

// Scored pairs an item with its score.
type Scored[T any] struct {
	Item      T
	Score     float64
	Pinned    bool
	CreatedAt time.Time
}

// Less is the display order: pinned first, then higher score, then older
// creation time.
func Less[T any](a, b Scored[T]) bool {
	if a.Pinned != b.Pinned {
		return a.Pinned
	}
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// Rank scores every item as of now and returns them in display order. The
// input slice is not modified.
func Rank[T any](items []T, view func(T) Input, now time.Time) []Scored[T] {
	w := DefaultWeights()
	out := make([]Scored[T], 0, len(items))
	for _, it := range items {
		in := view(it)
		out = append(out, Scored[T]{Item: it, Score: w.Score(in, now), Pinned: in.Pinned, CreatedAt: in.CreatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return Less(out[i], out[j]) })
	return out
}

// DefaultFocusSize is how many tasks the focus view shows.
const DefaultFocusSize = 4

// Focus splits ranked items into the first n and the rest.
func Focus[T any](ranked []Scored[T], n int) (focus, others []Scored[T]) {
	if n <= 0 {
		n = DefaultFocusSize
	}
	if n > len(ranked) {
		n = len(ranked)
	}
	return ranked[:n], ranked[n:]
}
