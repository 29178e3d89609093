package store

import "time"

type seedTask struct {
	raw     string
	tags    []string
	urgency int
	dueDays int // days from now; ignored when noDue
	noDue   bool
	age     time.Duration
}

var seedTasks = []seedTask{
	{raw: "Call insurance to update RX", tags: []string{"health", "urgent"}, urgency: 3, dueDays: -1, age: 48 * time.Hour},
	{raw: "30-min workout", tags: []string{"fitness", "health"}, urgency: 2, age: 24 * time.Hour},
	{raw: "Review job offer from startup", tags: []string{"work", "important"}, urgency: 2, age: 12 * time.Hour},
	{raw: "Send resume by Friday 2pm", tags: []string{"work", "career"}, urgency: 1, dueDays: 1, age: 6 * time.Hour},
	{raw: "Book dentist appointment this month", tags: []string{"health", "appointment"}, urgency: 0, dueDays: 7, age: 72 * time.Hour},
	{raw: "Study LLM paper (no hard deadline)", tags: []string{"learning", "research"}, urgency: 0, noDue: true, age: 120 * time.Hour},
	{raw: "Submit project report", tags: []string{"work", "project"}, urgency: 1, dueDays: 1, age: 96 * time.Hour},
	{raw: "Dinner with friends", tags: []string{"social", "fun"}, urgency: 0, dueDays: 7, age: 168 * time.Hour},
}

// Seed fills an empty workspace with demo tasks and reports how many it
// created. A workspace that already has tasks is left alone.
func (w *Workspace) Seed(now time.Time) (int, error) {
	existing, err := w.ListTasks(ListFilter{All: true})
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}
	for i, st := range seedTasks {
		in := CreateTaskInput{RawText: st.raw, Tags: st.tags, Urgency: st.urgency}
		if !st.noDue {
			due := now.AddDate(0, 0, st.dueDays)
			in.Due = &due
		}
		if _, err := w.createTask(in, now.Add(-st.age)); err != nil {
			return i, err
		}
	}
	return len(seedTasks), nil
}
