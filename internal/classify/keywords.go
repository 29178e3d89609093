// Package classify holds the deterministic, rule-based side of the rewrite
// pipeline: keyword families that derive tags and urgency from raw task text,
// and the resolver that turns date phrases into calendar dates.
//
// Everything here is pure and safe for concurrent use.
package classify

import (
	"regexp"
	"time"
)

const (
	MinUrgency  = 0
	MaxUrgency  = 3
	BaseUrgency = 1
)

// Family is one keyword family. A match appends Tag once and applies Delta
// to the running urgency.
type Family struct {
	Tag     string
	Pattern *regexp.Regexp
	Delta   int
}

// Families is evaluated in order; the order only affects the order of tags.
var Families = []Family{
	{Tag: "work", Pattern: wordsPattern(`job|offer|recruiter|resume|oa|interview|career|work|project|report|deadline|meeting|email`), Delta: 1},
	{Tag: "health", Pattern: wordsPattern(`doctor|rx|insurance|medical|health|appointment|dentist|hospital`), Delta: 1},
	{Tag: "social", Pattern: wordsPattern(`dinner|party|hangout|social|friends|date|drinks|coffee`), Delta: -1},
	{Tag: "learning", Pattern: wordsPattern(`study|learn|research|paper|course|education|training|read|book`), Delta: 0},
	{Tag: "fitness", Pattern: wordsPattern(`workout|exercise|gym|fitness|run|walk|sport`), Delta: 0},
}

// urgencyWords nudges urgency without adding a tag. Bare weekday names are
// left to the date resolver.
var urgencyWords = wordsPattern(`urgent|asap|immediately|today|tomorrow`)

func wordsPattern(alternation string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(?:` + alternation + `)\b`)
}

// Classification is the keyword-derived part of a rewrite result.
type Classification struct {
	Tags    []string
	Urgency int
}

// Classify matches text against every family and the urgency words.
// Nudges are summed first and clamped once at the end.
func Classify(text string) Classification {
	urgency := BaseUrgency
	tags := []string{}
	for _, f := range Families {
		if !f.Pattern.MatchString(text) {
			continue
		}
		tags = append(tags, f.Tag)
		urgency += f.Delta
	}
	if urgencyWords.MatchString(text) {
		urgency++
	}
	return Classification{Tags: tags, Urgency: ClampUrgency(urgency)}
}

// ClampUrgency forces u into [MinUrgency, MaxUrgency].
func ClampUrgency(u int) int {
	if u < MinUrgency {
		return MinUrgency
	}
	if u > MaxUrgency {
		return MaxUrgency
	}
	return u
}

// Fallback is the full rule-based rewrite: the raw text is kept as the title
// and the due date comes from ResolveDue.
type Fallback struct {
	Title   string
	Tags    []string
	Urgency int
	Due     *time.Time
}

func FallbackRewrite(raw string, now time.Time) Fallback {
	c := Classify(raw)
	out := Fallback{Title: raw, Tags: c.Tags, Urgency: c.Urgency}
	if due, ok := ResolveDue(raw, now); ok {
		out.Due = &due
	}
	return out
}
