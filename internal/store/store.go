package store

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"

	"github.com/amirbrooks/focuslist/internal/classify"
	"github.com/amirbrooks/focuslist/internal/ranking"
	"github.com/amirbrooks/focuslist/internal/rewrite"
)

type randReader struct{}

func (randReader) Read(p []byte) (int, error) { return rand.Read(p) }

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid")
	timeNow     = func() time.Time { return time.Now().UTC() }
)

// MatchConflictError provides details when an id prefix matches multiple tasks.
// It still satisfies errors.Is(err, ErrConflict).
type MatchConflictError struct {
	Reason  string
	Matches []Task
}

func (e *MatchConflictError) Error() string {
	if e == nil || strings.TrimSpace(e.Reason) == "" {
		return "conflict"
	}
	return "conflict: " + e.Reason
}

func (e *MatchConflictError) Is(target error) bool {
	return target == ErrConflict
}

type Workspace struct {
	Root     string
	defaults rewrite.Settings
}

type TaskMeta struct {
	Schema      int        `yaml:"schema" json:"schema"`
	ID          string     `yaml:"id" json:"id"`
	RawText     string     `yaml:"raw_text" json:"raw_text"`
	Title       string     `yaml:"title" json:"title"`
	Tags        []string   `yaml:"tags" json:"tags"`
	Urgency     int        `yaml:"urgency" json:"urgency"`
	UserUrgency *int       `yaml:"user_urgency,omitempty" json:"user_urgency,omitempty"`
	Due         *time.Time `yaml:"due,omitempty" json:"due,omitempty"`
	Pinned      bool       `yaml:"pinned" json:"pinned"`
	Completed   bool       `yaml:"completed" json:"completed"`
	Archived    bool       `yaml:"archived" json:"archived"`
	CreatedAt   time.Time  `yaml:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `yaml:"updated_at" json:"updated_at"`
	CompletedAt *time.Time `yaml:"completed_at,omitempty" json:"completed_at,omitempty"`
}

type Task struct {
	TaskMeta `yaml:",inline" json:",inline"`
	Path     string `yaml:"-" json:"-"`
	Body     string `yaml:"-" json:"notes,omitempty"`
}

type CreateTaskInput struct {
	RawText string
	Title   string
	Tags    []string
	Urgency int
	Due     *time.Time
	Pinned  bool
}

// TaskPatch updates only the fields that are set.
type TaskPatch struct {
	Title            *string
	Tags             []string
	SetTags          bool
	Urgency          *int
	UserUrgency      *int
	ClearUserUrgency bool
	Due              *time.Time
	ClearDue         bool
	Pinned           *bool
	Completed        *bool
	Archived         *bool
}

type ListFilter struct {
	Tag    string
	Search string
	// All includes completed and archived tasks.
	All bool
}

// Open opens a workspace rooted at root. defaults fill settings that the
// workspace has not stored. It does not create files until Init is called.
func Open(root string, defaults rewrite.Settings) (*Workspace, error) {
	root = ExpandHome(strings.TrimSpace(root))
	if root == "" {
		return nil, fmt.Errorf("%w: workspace root is required", ErrInvalid)
	}
	return &Workspace{Root: root, defaults: defaults}, nil
}

func (w *Workspace) Init() error {
	if err := os.MkdirAll(w.tasksDir(), 0o755); err != nil {
		return err
	}
	if _, err := os.Stat(w.settingsPath()); errors.Is(err, os.ErrNotExist) {
		return w.writeSettings(settingsFile{})
	}
	return nil
}

func (w *Workspace) CreateTask(in CreateTaskInput) (*Task, error) {
	return w.createTask(in, timeNow())
}

func (w *Workspace) createTask(in CreateTaskInput, now time.Time) (*Task, error) {
	raw := strings.TrimSpace(in.RawText)
	if raw == "" {
		return nil, fmt.Errorf("%w: raw text is required", ErrInvalid)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = raw
	}
	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}

	id := "tsk_" + newULID()
	meta := TaskMeta{
		Schema:    1,
		ID:        id,
		RawText:   raw,
		Title:     title,
		Tags:      tags,
		Urgency:   classify.ClampUrgency(in.Urgency),
		Due:       in.Due,
		Pinned:    in.Pinned,
		CreatedAt: now,
		UpdatedAt: now,
	}
	filename := fmt.Sprintf("%s__%s.md", id, slugify(truncate(title, 60, true)))
	task := &Task{TaskMeta: meta, Path: filepath.Join(w.tasksDir(), filename)}
	if err := writeTaskFile(task); err != nil {
		return nil, err
	}
	return task, nil
}

// CreateFromRewrite persists a rewrite result for raw.
func (w *Workspace) CreateFromRewrite(raw string, res rewrite.Result) (*Task, error) {
	return w.CreateTask(CreateTaskInput{
		RawText: raw,
		Title:   res.Title,
		Tags:    res.Tags,
		Urgency: res.Urgency,
		Due:     res.DueAt,
	})
}

func (w *Workspace) GetTask(prefix string) (*Task, error) {
	candidates, err := w.findTasksByPrefix(prefix)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrNotFound
	}
	if len(candidates) > 1 {
		return nil, &MatchConflictError{Reason: "prefix", Matches: tasksFromPaths(candidates)}
	}
	return readTaskFile(candidates[0])
}

func (w *Workspace) UpdateTask(prefix string, p TaskPatch) (*Task, error) {
	task, err := w.GetTask(prefix)
	if err != nil {
		return nil, err
	}
	now := timeNow()
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title cannot be empty", ErrInvalid)
		}
		task.Title = title
	}
	if p.SetTags {
		task.Tags = append([]string{}, p.Tags...)
	}
	if p.Urgency != nil {
		task.Urgency = classify.ClampUrgency(*p.Urgency)
	}
	if p.ClearUserUrgency {
		task.UserUrgency = nil
	}
	if p.UserUrgency != nil {
		u := classify.ClampUrgency(*p.UserUrgency)
		task.UserUrgency = &u
	}
	if p.ClearDue {
		task.Due = nil
	}
	if p.Due != nil {
		d := *p.Due
		task.Due = &d
	}
	if p.Pinned != nil {
		task.Pinned = *p.Pinned
	}
	if p.Completed != nil {
		setCompleted(task, *p.Completed, now)
	}
	if p.Archived != nil {
		task.Archived = *p.Archived
	}
	task.UpdatedAt = now
	if err := writeTaskFile(task); err != nil {
		return nil, err
	}
	return task, nil
}

// setCompleted marks a task done or not done. Completing also archives;
// reopening leaves the archive flag alone.
func setCompleted(t *Task, done bool, now time.Time) {
	t.Completed = done
	if done {
		t.Archived = true
		t.CompletedAt = &now
	} else {
		t.CompletedAt = nil
	}
}

func (w *Workspace) ToggleComplete(prefix string) (*Task, error) {
	task, err := w.GetTask(prefix)
	if err != nil {
		return nil, err
	}
	done := !task.Completed
	return w.UpdateTask(task.ID, TaskPatch{Completed: &done})
}

func (w *Workspace) TogglePin(prefix string) (*Task, error) {
	task, err := w.GetTask(prefix)
	if err != nil {
		return nil, err
	}
	pinned := !task.Pinned
	return w.UpdateTask(task.ID, TaskPatch{Pinned: &pinned})
}

func (w *Workspace) ToggleArchive(prefix string) (*Task, error) {
	task, err := w.GetTask(prefix)
	if err != nil {
		return nil, err
	}
	archived := !task.Archived
	return w.UpdateTask(task.ID, TaskPatch{Archived: &archived})
}

func (w *Workspace) DeleteTask(prefix string) (*Task, error) {
	task, err := w.GetTask(prefix)
	if err != nil {
		return nil, err
	}
	if err := os.Remove(task.Path); err != nil {
		return nil, err
	}
	return task, nil
}

func (w *Workspace) AddNote(prefix string, note string) (*Task, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, fmt.Errorf("%w: note is empty", ErrInvalid)
	}
	task, err := w.GetTask(prefix)
	if err != nil {
		return nil, err
	}
	now := timeNow()
	task.UpdatedAt = now
	entry := fmt.Sprintf("- %s — %s\n", now.Format(time.RFC3339), note)
	if task.Body == "" {
		task.Body = "## Notes\n\n" + entry
	} else {
		task.Body = strings.TrimRight(task.Body, "\n") + "\n" + entry
	}
	if err := writeTaskFile(task); err != nil {
		return nil, err
	}
	return task, nil
}

// ListTasks returns matching tasks oldest first. Display order is the
// caller's job (see Ranked).
func (w *Workspace) ListTasks(f ListFilter) ([]Task, error) {
	var out []Task
	err := filepath.WalkDir(w.tasksDir(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !isTaskFile(d.Name()) {
			return nil
		}
		t, err := readTaskFile(path)
		if err != nil {
			// ignore broken task files
			return nil
		}
		if !f.All && (t.Archived || t.Completed) {
			return nil
		}
		if f.Tag != "" && !containsString(t.Tags, f.Tag) {
			return nil
		}
		if f.Search != "" {
			q := strings.ToLower(f.Search)
			if !strings.Contains(strings.ToLower(t.Title), q) && !strings.Contains(strings.ToLower(t.RawText), q) {
				return nil
			}
		}
		out = append(out, *t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// RankInput is the scorer's view of a task.
func (t Task) RankInput() ranking.Input {
	return ranking.Input{
		Urgency:     t.Urgency,
		UserUrgency: t.UserUrgency,
		Due:         t.Due,
		Pinned:      t.Pinned,
		CreatedAt:   t.CreatedAt,
	}
}

// Ranked lists tasks and orders them for display as of now.
func (w *Workspace) Ranked(f ListFilter, now time.Time) ([]ranking.Scored[Task], error) {
	tasks, err := w.ListTasks(f)
	if err != nil {
		return nil, err
	}
	return ranking.Rank(tasks, Task.RankInput, now), nil
}

func (t *Task) IDShort(n int) string {
	s := t.ID
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// EffectiveUrgency is the user override when set.
func (t *Task) EffectiveUrgency() int {
	return t.RankInput().EffectiveUrgency()
}

func (t *Task) StatusAbbrev() string {
	switch {
	case t.Completed:
		return "✓"
	case t.Archived:
		return "a"
	case t.Pinned:
		return "*"
	default:
		return "o"
	}
}

func (t *Task) RenderHuman() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s\n", t.Title))
	b.WriteString(fmt.Sprintf("ID: %s\n", t.ID))
	if t.RawText != t.Title {
		b.WriteString(fmt.Sprintf("Raw: %s\n", t.RawText))
	}
	b.WriteString(fmt.Sprintf("Urgency: %d", t.Urgency))
	if t.UserUrgency != nil {
		b.WriteString(fmt.Sprintf(" (user %d)", *t.UserUrgency))
	}
	b.WriteString("\n")
	if t.Due != nil {
		b.WriteString(fmt.Sprintf("Due: %s\n", formatDue(*t.Due)))
	}
	if len(t.Tags) > 0 {
		b.WriteString(fmt.Sprintf("Tags: %s\n", strings.Join(t.Tags, ", ")))
	}
	b.WriteString(fmt.Sprintf("Pinned: %t  Completed: %t  Archived: %t\n", t.Pinned, t.Completed, t.Archived))
	b.WriteString(fmt.Sprintf("Created: %s\n", t.CreatedAt.Format(time.RFC3339)))
	b.WriteString("\n")
	if strings.TrimSpace(t.Body) != "" {
		b.WriteString(strings.TrimRight(t.Body, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}

// formatDue prints a date, adding the clock only when it is not midnight.
func formatDue(d time.Time) string {
	if d.Hour() == 0 && d.Minute() == 0 {
		return d.Format("2006-01-02")
	}
	return d.Format("2006-01-02 15:04")
}

func FormatDue(d *time.Time) string {
	if d == nil {
		return ""
	}
	return formatDue(*d)
}

func writeTaskFile(t *Task) error {
	yamlBytes, err := yaml.Marshal(&t.TaskMeta)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(yamlBytes)
	buf.WriteString("---\n\n")
	if strings.TrimSpace(t.Body) != "" {
		buf.WriteString(t.Body)
		if !strings.HasSuffix(t.Body, "\n") {
			buf.WriteString("\n")
		}
	}
	return atomicWriteFile(t.Path, buf.Bytes(), 0o644)
}

func readTaskFile(path string) (*Task, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	meta, body, err := parseFrontmatter(b)
	if err != nil {
		return nil, err
	}
	return &Task{TaskMeta: *meta, Path: path, Body: strings.TrimLeft(body, "\n")}, nil
}

func parseFrontmatter(b []byte) (*TaskMeta, string, error) {
	s := strings.ReplaceAll(string(b), "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	if !strings.HasPrefix(s, "---\n") {
		return nil, "", fmt.Errorf("%w: missing frontmatter", ErrInvalid)
	}
	parts := strings.SplitN(s, "\n---\n", 2)
	if len(parts) != 2 {
		return nil, "", fmt.Errorf("%w: invalid frontmatter delimiters", ErrInvalid)
	}
	// parts[0] includes leading ---\n
	yamlPart := strings.TrimPrefix(parts[0], "---\n")
	var meta TaskMeta
	if err := yaml.Unmarshal([]byte(yamlPart), &meta); err != nil {
		return nil, "", err
	}
	if meta.Schema == 0 {
		meta.Schema = 1
	}
	if meta.ID == "" {
		return nil, "", fmt.Errorf("%w: task without id", ErrInvalid)
	}
	if meta.Tags == nil {
		meta.Tags = []string{}
	}
	return &meta, parts[1], nil
}

func (w *Workspace) findTasksByPrefix(prefix string) ([]string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, fmt.Errorf("%w: task id is required", ErrInvalid)
	}
	prefixNorm := strings.ToUpper(prefix)
	if !strings.HasPrefix(prefixNorm, "TSK_") {
		prefixNorm = "TSK_" + prefixNorm
	}
	entries, err := os.ReadDir(w.tasksDir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var hits []string
	for _, e := range entries {
		if e.IsDir() || !isTaskFile(e.Name()) {
			continue
		}
		// filenames start with the id
		id, _, _ := strings.Cut(e.Name(), "__")
		if strings.HasPrefix(strings.ToUpper(id), prefixNorm) {
			hits = append(hits, filepath.Join(w.tasksDir(), e.Name()))
		}
	}
	sort.Strings(hits)
	return hits, nil
}

func tasksFromPaths(paths []string) []Task {
	out := make([]Task, 0, len(paths))
	for _, path := range paths {
		t, err := readTaskFile(path)
		if err != nil {
			continue
		}
		out = append(out, *t)
	}
	return out
}

func isTaskFile(name string) bool {
	return strings.HasPrefix(name, "tsk_") && strings.HasSuffix(strings.ToLower(name), ".md")
}

func (w *Workspace) tasksDir() string {
	return filepath.Join(w.Root, "tasks")
}

func newULID() string {
	t := ulid.Timestamp(timeNow())
	entropy := ulid.Monotonic(randReader{}, 0)
	id, err := ulid.New(t, entropy)
	if err != nil {
		// fallback
		return fmt.Sprintf("%d", timeNow().UnixNano())
	}
	return strings.ToUpper(id.String())
}

func slugify(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return "x"
	}
	// Replace non-alnum with hyphen
	var b strings.Builder
	lastHyphen := false
	for _, r := range s {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if isAlnum {
			b.WriteRune(r)
			lastHyphen = false
		} else {
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "x"
	}
	return out
}

func containsString(list []string, v string) bool {
	v = strings.TrimSpace(strings.ToLower(v))
	for _, s := range list {
		if strings.ToLower(s) == v {
			return true
		}
	}
	return false
}

func truncate(s string, n int, ascii bool) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	if ascii {
		return string(r[:n-2]) + ".."
	}
	// unicode ellipsis
	return string(r[:n-1]) + "…"
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~"+string(os.PathSeparator)) || path == "~" {
		home, _ := os.UserHomeDir()
		if home != "" {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func atomicWriteFile(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := filepath.Join(dir, ".tmp-"+newULID())
	if err := os.WriteFile(tmp, data, perm); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	// Rename is atomic on same filesystem.
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
