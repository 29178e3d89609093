// Package rewrite turns raw task text into a structured Result. It asks a
// generative model first, validates and repairs what comes back, and falls
// back to the keyword classifier whenever the model path fails.
package rewrite

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/amirbrooks/focuslist/internal/classify"
)

const dateLayout = "2006-01-02"

// Source tags where an Outcome's Result came from.
type Source int

const (
	SourceRemote Source = iota
	SourceFallback
)

func (s Source) String() string {
	switch s {
	case SourceRemote:
		return "remote"
	case SourceFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Result is the structured record produced for one raw task text.
type Result struct {
	Title   string   `json:"title"`
	Tags    []string `json:"tags"`
	Urgency int      `json:"urgency"`
	Due     string   `json:"due,omitempty"`
	// DueAt is Due as a timestamp, keeping a resolved time-of-day.
	DueAt *time.Time `json:"-"`
}

// Outcome is the tagged result of Rewrite. Result is always usable.
// Cause records why the remote path was abandoned (SourceFallback) or why
// the due date was repaired (Repaired).
type Outcome struct {
	Result   Result
	Source   Source
	Repaired bool
	Cause    error
}

type Rewriter struct {
	settings SettingsProvider
	gen      Generator
	logger   *log.Logger
	now      func() time.Time
}

// NewRewriter wires a settings provider and a generator. A nil logger means
// log.Default().
func NewRewriter(settings SettingsProvider, gen Generator, logger *log.Logger) *Rewriter {
	if logger == nil {
		logger = log.Default()
	}
	return &Rewriter{settings: settings, gen: gen, logger: logger, now: time.Now}
}

// Rewrite runs the pipeline for raw. userRules, when non-empty, replaces the
// rules stored in settings for this call. Rewrite never fails.
func (r *Rewriter) Rewrite(ctx context.Context, raw, userRules string) Outcome {
	now := r.now()
	s := r.loadSettings(ctx)
	if strings.TrimSpace(userRules) == "" {
		userRules = s.UserRules
	}

	text, err := r.gen.Generate(ctx, s, BuildPrompt(raw, userRules))
	if err != nil {
		return r.fallback(raw, now, err)
	}
	reply, err := parseReply(text)
	if err != nil {
		return r.fallback(raw, now, err)
	}

	out := Outcome{Source: SourceRemote}
	out.Result = Result{
		Title: reply.title(),
		Tags:  reply.tags(),
	}
	if out.Result.Title == "" {
		out.Result.Title = raw
	}
	if u, ok := reply.urgency(); ok {
		out.Result.Urgency = classify.ClampUrgency(u)
	} else {
		out.Result.Urgency = classify.BaseUrgency
	}

	due := reply.due()
	if err := ValidateDue(due, now); err != nil {
		out.Repaired = true
		out.Cause = err
		r.logger.Printf("rewrite: repairing due date from raw text: %v", err)
		if d, ok := classify.ResolveDue(raw, now); ok {
			setDue(&out.Result, d)
		}
		return out
	}
	d, _ := time.ParseInLocation(dateLayout, due.(string), now.Location())
	setDue(&out.Result, d)
	return out
}

// Ping issues one generation request with the current settings and reports
// any upstream failure.
func (r *Rewriter) Ping(ctx context.Context) error {
	s := r.loadSettings(ctx)
	_, err := r.gen.Generate(ctx, s, BuildPrompt("test connection", ""))
	return err
}

func (r *Rewriter) loadSettings(ctx context.Context) Settings {
	s, err := r.settings.Settings(ctx)
	if err != nil {
		r.logger.Printf("rewrite: load settings: %v (using defaults)", err)
		s = Settings{}
	}
	return s.withDefaults()
}

func (r *Rewriter) fallback(raw string, now time.Time, cause error) Outcome {
	r.logger.Printf("rewrite: remote failed, using fallback: %v", cause)
	return Outcome{Result: Offline(raw, now), Source: SourceFallback, Cause: cause}
}

// Offline runs only the rule-based path, as if the remote call had failed.
func Offline(raw string, now time.Time) Result {
	fb := classify.FallbackRewrite(raw, now)
	res := Result{Title: fb.Title, Tags: fb.Tags, Urgency: fb.Urgency}
	if fb.Due != nil {
		setDue(&res, *fb.Due)
	}
	return res
}

func setDue(res *Result, d time.Time) {
	res.Due = d.Format(dateLayout)
	res.DueAt = &d
}
