package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

type harness struct {
	root string
	out  *bytes.Buffer
	err  *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{root: t.TempDir(), out: &bytes.Buffer{}, err: &bytes.Buffer{}}
	prevOut, prevErr, prevNow := stdout, stderr, timeNow
	stdout, stderr = h.out, h.err
	timeNow = func() time.Time { return time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { stdout, stderr, timeNow = prevOut, prevErr, prevNow })
	if code := h.run("init"); code != ExitOK {
		t.Fatalf("init failed: %d %s", code, h.err.String())
	}
	return h
}

func (h *harness) run(args ...string) int {
	h.out.Reset()
	h.err.Reset()
	return Run(append([]string{"--root", h.root}, args...))
}

func TestAddOfflineAndList(t *testing.T) {
	h := newHarness(t)
	if code := h.run("add", "Call insurance to update RX tomorrow", "--no-ai", "--pin"); code != ExitOK {
		t.Fatalf("add failed: %d %s", code, h.err.String())
	}
	if got := h.out.String(); !strings.Contains(got, "[U3]") || !strings.Contains(got, "due 2026-10-15") {
		t.Fatalf("unexpected add output %q", got)
	}

	if code := h.run("--plain", "ls"); code != ExitOK {
		t.Fatalf("ls failed: %d", code)
	}
	lines := strings.Split(strings.TrimSpace(h.out.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[1], "Call insurance to update RX tomorrow") || !strings.Contains(lines[1], "\t*\t3\t") {
		t.Fatalf("unexpected ls output %q", h.out.String())
	}
}

func TestAddOverrides(t *testing.T) {
	h := newHarness(t)
	code := h.run("--json", "--stdout-json", "add", "--no-ai", "--urgency", "0", "--due", "2026-12-01", "--tag", "home", "--tag", "chores", "fix the sink")
	if code != ExitOK {
		t.Fatalf("add failed: %d %s", code, h.err.String())
	}
	var payload struct {
		Task struct {
			Urgency int      `json:"urgency"`
			Tags    []string `json:"tags"`
			Due     string   `json:"due"`
		} `json:"task"`
	}
	if err := json.Unmarshal(h.out.Bytes(), &payload); err != nil {
		t.Fatalf("decode %q: %v", h.out.String(), err)
	}
	if payload.Task.Urgency != 0 || !reflect.DeepEqual(payload.Task.Tags, []string{"home", "chores"}) || !strings.HasPrefix(payload.Task.Due, "2026-12-01") {
		t.Fatalf("unexpected task %+v", payload.Task)
	}
}

func TestAddUsesModelFromSettings(t *testing.T) {
	h := newHarness(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"response": `{"title":"Send resume","tags":["work"],"urgency":2,"due":"2026-10-16"}`,
		})
	}))
	defer srv.Close()

	if code := h.run("settings", "set", "ollamaBaseUrl", srv.URL); code != ExitOK {
		t.Fatalf("settings set failed: %d %s", code, h.err.String())
	}
	if code := h.run("add", "send resume by friday"); code != ExitOK {
		t.Fatalf("add failed: %d %s", code, h.err.String())
	}
	got := h.out.String()
	if !strings.Contains(got, "Send resume") || !strings.Contains(got, "(remote)") {
		t.Fatalf("expected remote rewrite, got %q", got)
	}

	if code := h.run("settings", "show"); code != ExitOK || !strings.Contains(h.out.String(), srv.URL) {
		t.Fatalf("settings show missing base url: %q", h.out.String())
	}
}

func TestRewriteOffline(t *testing.T) {
	h := newHarness(t)
	if code := h.run("rewrite", "--offline", "Send resume by Friday 2pm"); code != ExitOK {
		t.Fatalf("rewrite failed: %d", code)
	}
	got := h.out.String()
	for _, want := range []string{"Urgency: 2", "Tags:    work", "Due:     2026-10-16 14:00", "Source:  fallback"} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in %q", want, got)
		}
	}
}

func TestTogglesAndErrors(t *testing.T) {
	h := newHarness(t)
	h.run("add", "--no-ai", "water plants")
	id := strings.Fields(h.out.String())[0]

	if code := h.run("done", id); code != ExitOK || !strings.HasPrefix(h.out.String(), "Done ") {
		t.Fatalf("done failed: %d %q", code, h.out.String())
	}
	h.run("--plain", "ls")
	if strings.Contains(h.out.String(), "water plants") {
		t.Fatalf("completed task should be hidden: %q", h.out.String())
	}
	h.run("--plain", "ls", "--all")
	if !strings.Contains(h.out.String(), "water plants") {
		t.Fatalf("--all should include completed task: %q", h.out.String())
	}

	if code := h.run("urgency", id, "3"); code != ExitOK || !strings.Contains(h.out.String(), "Urgency 3") {
		t.Fatalf("urgency failed: %d %q", code, h.out.String())
	}
	if code := h.run("urgency", id, "9"); code != ExitUsage {
		t.Fatalf("expected usage error, got %d", code)
	}
	if code := h.run("show", "ZZZZ"); code != ExitNotFound {
		t.Fatalf("expected not found, got %d", code)
	}
	if code := h.run("rm", id); code != ExitOK {
		t.Fatalf("rm failed: %d", code)
	}
	if code := h.run("pin", id); code != ExitNotFound {
		t.Fatalf("expected not found after rm, got %d", code)
	}
}

func TestAmbiguousPrefix(t *testing.T) {
	h := newHarness(t)
	h.run("add", "--no-ai", "one")
	h.run("add", "--no-ai", "two")
	if code := h.run("show", "tsk_0"); code != ExitConflict {
		t.Fatalf("expected conflict, got %d (%s)", code, h.err.String())
	}
}

func TestSeedAndFocus(t *testing.T) {
	h := newHarness(t)
	if code := h.run("seed"); code != ExitOK || !strings.Contains(h.out.String(), "Seeded 8 tasks") {
		t.Fatalf("seed failed: %d %q", code, h.out.String())
	}
	if code := h.run("focus", "--format", "telegram"); code != ExitOK {
		t.Fatalf("focus failed: %d", code)
	}
	got := h.out.String()
	if !strings.HasPrefix(got, "🎯 Focus") || !strings.Contains(got, "Call insurance to update RX") {
		t.Fatalf("unexpected focus output %q", got)
	}
	if code := h.run("focus", "--n", "0"); code != ExitUsage {
		t.Fatalf("expected usage error for --n 0, got %d", code)
	}
}

func TestJSONExportWritesFile(t *testing.T) {
	h := newHarness(t)
	h.run("add", "--no-ai", "export me")
	if code := h.run("--json", "ls"); code != ExitOK {
		t.Fatalf("ls failed: %d", code)
	}
	matches, _ := filepath.Glob(filepath.Join(h.root, "exports", "tasks-*.json"))
	if len(matches) != 1 {
		t.Fatalf("expected one export file, got %v", matches)
	}
	b, _ := os.ReadFile(matches[0])
	if !strings.Contains(string(b), "export me") || !strings.Contains(string(b), `"score"`) {
		t.Fatalf("unexpected export %s", b)
	}
}

func TestUsageErrors(t *testing.T) {
	h := newHarness(t)
	cases := [][]string{
		{"add"},
		{"add", "--no-ai", "--urgency", "-2", "x"},
		{"add", "--no-ai", "--urgency", "-1", "x"},
		{"add", "--no-ai", "--urgency", "4", "x"},
		{"bogus"},
		{"settings", "set", "color", "blue"},
		{"note", "add", "x"},
		{"--json", "--ndjson", "ls"},
		{"--stdout-json", "ls"},
	}
	for _, args := range cases {
		if code := h.run(args...); code != ExitUsage {
			t.Fatalf("%v: expected usage exit, got %d", args, code)
		}
	}
}

func TestReorderFlags(t *testing.T) {
	got := reorderFlags([]string{"buy", "milk", "--due", "tomorrow", "--pin", "--", "--literal"}, map[string]bool{"--due": true})
	want := []string{"--due", "tomorrow", "--pin", "buy", "milk", "--literal"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestParseDue(t *testing.T) {
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	cases := map[string]string{
		"2026-11-02":           "2026-11-02 00:00",
		"2026-11-02T15:04:00Z": "2026-11-02 15:04",
		"tomorrow 9am":         "2026-10-15 09:00",
		"friday 2pm":           "2026-10-16 14:00",
	}
	for in, want := range cases {
		got, err := parseDue(in, now)
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}
		if got.Format("2006-01-02 15:04") != want {
			t.Fatalf("%q: got %s want %s", in, got.Format("2006-01-02 15:04"), want)
		}
	}
	if _, err := parseDue("whenever", now); err == nil {
		t.Fatalf("expected error for unparseable date")
	}
}
