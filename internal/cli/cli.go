package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/amirbrooks/focuslist/internal/classify"
	"github.com/amirbrooks/focuslist/internal/config"
	"github.com/amirbrooks/focuslist/internal/ranking"
	"github.com/amirbrooks/focuslist/internal/rewrite"
	"github.com/amirbrooks/focuslist/internal/server"
	"github.com/amirbrooks/focuslist/internal/store"
)

// Exit codes
const (
	ExitOK       = 0
	ExitUsage    = 2
	ExitNotFound = 3
	ExitConflict = 4
	ExitInternal = 10
)

var (
	stdout  io.Writer = os.Stdout
	stderr  io.Writer = os.Stderr
	timeNow           = time.Now
)

type GlobalFlags struct {
	Root         string
	JSON         bool
	NDJSON       bool
	Plain        bool
	ASCII        bool
	Quiet        bool
	Verbose      bool
	StdoutJSON   bool
	StdoutNDJSON bool
	ExportDir    string
}

// env bundles what every command needs.
type env struct {
	ws       *store.Workspace
	rewriter *rewrite.Rewriter
	cfg      *config.Config
	gf       GlobalFlags
	logger   *log.Logger
}

func reorderFlags(args []string, takesValue map[string]bool) []string {
	if len(args) == 0 {
		return args
	}
	var flags []string
	var rest []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			if i+1 < len(args) {
				rest = append(rest, args[i+1:]...)
			}
			break
		}
		if strings.HasPrefix(a, "-") && a != "-" {
			flags = append(flags, a)
			if takesValue[a] && !strings.Contains(a, "=") {
				if i+1 < len(args) {
					flags = append(flags, args[i+1])
					i++
				}
			}
			continue
		}
		rest = append(rest, a)
	}
	return append(flags, rest...)
}

func Run(args []string) int {
	gf, rest, err := extractGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return ExitUsage
	}

	if len(rest) == 0 {
		printHelp()
		return ExitUsage
	}

	cmd := rest[0]
	cmdArgs := rest[1:]
	if cmd == "help" || cmd == "--help" || cmd == "-h" {
		printHelp()
		return ExitOK
	}

	cfg, err := config.Load(gf.Root)
	if err != nil {
		fmt.Fprintln(stderr, "focuslist:", err)
		return ExitInternal
	}
	ws, err := store.Open(cfg.Root, cfg.AI)
	if err != nil {
		fmt.Fprintln(stderr, "focuslist:", err)
		return ExitInternal
	}
	if gf.ExportDir == "" {
		gf.ExportDir = filepath.Join(ws.Root, "exports")
	}
	logger := log.New(io.Discard, "", 0)
	if gf.Verbose {
		logger = log.New(stderr, "focuslist: ", log.LstdFlags)
	}
	e := &env{
		ws:       ws,
		rewriter: rewrite.NewRewriter(ws, rewrite.NewOllamaClient(nil), logger),
		cfg:      cfg,
		gf:       gf,
		logger:   logger,
	}

	switch cmd {
	case "init":
		return cmdInit(e, cmdArgs)
	case "add":
		return cmdAdd(e, cmdArgs)
	case "ls", "list":
		return cmdList(e, cmdArgs)
	case "focus":
		return cmdFocus(e, cmdArgs)
	case "show":
		return cmdShow(e, cmdArgs)
	case "pin":
		return cmdToggle(e, "pin", cmdArgs)
	case "done":
		return cmdToggle(e, "done", cmdArgs)
	case "archive":
		return cmdToggle(e, "archive", cmdArgs)
	case "urgency":
		return cmdUrgency(e, cmdArgs)
	case "rm", "delete":
		return cmdRemove(e, cmdArgs)
	case "note":
		return cmdNote(e, cmdArgs)
	case "rewrite":
		return cmdRewrite(e, cmdArgs)
	case "settings":
		return cmdSettings(e, cmdArgs)
	case "seed":
		return cmdSeed(e, cmdArgs)
	case "serve":
		return cmdServe(e, cmdArgs)
	case "ping":
		return cmdPing(e, cmdArgs)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", cmd)
		printHelp()
		return ExitUsage
	}
}

func printHelp() {
	fmt.Fprint(stdout, `focuslist - local-first task list with model-assisted rewriting

Usage:
  focuslist [global flags] <command> [args]

Global flags:
  --root <path>    Store root (default: ~/.focuslist or FOCUSLIST_ROOT)
  --json           Write JSON output to <root>/exports
  --ndjson         Write NDJSON output to <root>/exports
  --stdout-json    Print JSON to stdout instead
  --stdout-ndjson  Print NDJSON to stdout instead
  --export-dir     Override export directory (default: <root>/exports)
  --plain          TSV output
  --ascii          ASCII rendering
  --quiet
  --verbose        Log rewrite fallbacks and repairs to stderr

Commands:
  init
  add "<raw text>" [--no-ai] [--rules <r>] [--pin] [--urgency N] [--due <date>] [--tag <t>...]
  ls [--all] [--tag <t>] [--search <q>]
  focus [--n N] [--format telegram]
  show <id-or-prefix>
  pin <id-or-prefix>
  done <id-or-prefix>
  archive <id-or-prefix>
  urgency <id-or-prefix> <0-3|clear>
  rm <id-or-prefix>
  note add <id-or-prefix> "<text>"
  rewrite "<raw text>" [--rules <r>] [--offline]
  settings show
  settings set <ollamaBaseUrl|ollamaModel|userRules> <value>
  seed
  serve [--addr <host:port>]
  ping

Dates:
  YYYY-MM-DD, RFC3339, or a phrase such as "tomorrow 9am" or "friday 2pm"
`)
}

func extractGlobalFlags(args []string) (GlobalFlags, []string, error) {
	// Allow flags anywhere by scanning and stripping known globals.
	gf := GlobalFlags{}

	out := make([]string, 0, len(args))
	skip := 0

	for i := 0; i < len(args); i++ {
		if skip > 0 {
			skip--
			continue
		}
		a := args[i]
		switch a {
		case "--root":
			if i+1 >= len(args) {
				return gf, nil, errors.New("--root requires a value")
			}
			gf.Root = args[i+1]
			skip = 1
		case "--json":
			gf.JSON = true
		case "--ndjson":
			gf.NDJSON = true
		case "--stdout-json":
			gf.StdoutJSON = true
		case "--stdout-ndjson":
			gf.StdoutNDJSON = true
		case "--export-dir":
			if i+1 >= len(args) {
				return gf, nil, errors.New("--export-dir requires a value")
			}
			gf.ExportDir = args[i+1]
			skip = 1
		case "--plain":
			gf.Plain = true
		case "--ascii":
			gf.ASCII = true
		case "--quiet":
			gf.Quiet = true
		case "--verbose":
			gf.Verbose = true
		default:
			out = append(out, a)
		}
	}

	if gf.JSON && gf.NDJSON {
		return gf, nil, errors.New("--json and --ndjson are mutually exclusive")
	}
	if gf.StdoutJSON && !gf.JSON {
		return gf, nil, errors.New("--stdout-json requires --json")
	}
	if gf.StdoutNDJSON && !gf.NDJSON {
		return gf, nil, errors.New("--stdout-ndjson requires --ndjson")
	}
	return gf, out, nil
}

// fail reports err for cmd and maps it to an exit code.
func fail(cmd string, err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		fmt.Fprintf(stderr, "%s: not found\n", cmd)
		return ExitNotFound
	case errors.Is(err, store.ErrConflict):
		fmt.Fprintf(stderr, "%s: ambiguous id prefix\n", cmd)
		var mc *store.MatchConflictError
		if errors.As(err, &mc) {
			for _, t := range mc.Matches {
				fmt.Fprintf(stderr, "  %s  %s\n", t.ID, t.Title)
			}
		}
		return ExitConflict
	case errors.Is(err, store.ErrInvalid):
		fmt.Fprintf(stderr, "%s: %v\n", cmd, err)
		return ExitUsage
	default:
		fmt.Fprintf(stderr, "%s: %v\n", cmd, err)
		return ExitInternal
	}
}

// emitJSON handles --json for cmd. It reports false when JSON output was
// not requested.
func emitJSON(gf GlobalFlags, cmd, base string, payload any) (int, bool) {
	if !gf.JSON {
		return ExitOK, false
	}
	if gf.StdoutJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(payload)
		return ExitOK, true
	}
	path, err := writeJSONExport(gf, base, payload)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", cmd, err)
		return ExitInternal, true
	}
	if !gf.Quiet {
		fmt.Fprintln(stdout, "Wrote JSON to:", path)
	}
	return ExitOK, true
}

// emitNDJSON handles --ndjson for cmd, one line per item.
func emitNDJSON(gf GlobalFlags, cmd, base string, items []any) (int, bool) {
	if !gf.NDJSON {
		return ExitOK, false
	}
	if gf.StdoutNDJSON {
		for _, item := range items {
			b, _ := json.Marshal(item)
			fmt.Fprintln(stdout, string(b))
		}
		return ExitOK, true
	}
	path, err := writeNDJSONExport(gf, base, items)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", cmd, err)
		return ExitInternal, true
	}
	if !gf.Quiet {
		fmt.Fprintln(stdout, "Wrote NDJSON to:", path)
	}
	return ExitOK, true
}

func cmdInit(e *env, args []string) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if err := e.ws.Init(); err != nil {
		fmt.Fprintln(stderr, "init:", err)
		return ExitInternal
	}
	if !e.gf.Quiet {
		fmt.Fprintln(stdout, "Initialized focuslist store at:", e.ws.Root)
	}
	return ExitOK
}

func cmdAdd(e *env, args []string) int {
	args = reorderFlags(args, map[string]bool{
		"--due":     true,
		"--urgency": true,
		"--tag":     true,
		"--rules":   true,
		"--no-ai":   false,
		"--pin":     false,
	})
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.SetOutput(stderr)
	noAI := fs.Bool("no-ai", false, "Skip the model; use keyword rules only")
	rules := fs.String("rules", "", "User rules for this rewrite (overrides settings)")
	pin := fs.Bool("pin", false, "Pin the task")
	urgency := fs.Int("urgency", 0, "Urgency 0-3 (overrides the rewrite)")
	due := fs.String("due", "", "Due date (overrides the rewrite)")
	tags := multiFlag{}
	fs.Var(&tags, "tag", "Tag (repeatable, overrides the rewrite)")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	raw := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if raw == "" {
		fmt.Fprintln(stderr, "Usage: focuslist add \"<raw text>\" [--no-ai] [--pin] [--urgency N] [--due <date>]")
		return ExitUsage
	}
	urgencySet := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "urgency" {
			urgencySet = true
		}
	})
	if urgencySet && (*urgency < classify.MinUrgency || *urgency > classify.MaxUrgency) {
		fmt.Fprintln(stderr, "add: --urgency must be 0-3")
		return ExitUsage
	}

	now := timeNow()
	var res rewrite.Result
	source := rewrite.SourceFallback
	if *noAI {
		res = rewrite.Offline(raw, now)
	} else {
		out := e.rewriter.Rewrite(context.Background(), raw, *rules)
		res, source = out.Result, out.Source
	}

	in := store.CreateTaskInput{
		RawText: raw,
		Title:   res.Title,
		Tags:    res.Tags,
		Urgency: res.Urgency,
		Due:     res.DueAt,
		Pinned:  *pin,
	}
	if urgencySet {
		in.Urgency = *urgency
	}
	if len(tags.Values) > 0 {
		in.Tags = tags.Values
	}
	if strings.TrimSpace(*due) != "" {
		d, err := parseDue(*due, now)
		if err != nil {
			fmt.Fprintln(stderr, "add:", err)
			return ExitUsage
		}
		in.Due = &d
	}

	task, err := e.ws.CreateTask(in)
	if err != nil {
		return fail("add", err)
	}
	if code, done := emitJSON(e.gf, "add", "task", map[string]any{"task": task, "source": source.String()}); done {
		return code
	}
	if code, done := emitNDJSON(e.gf, "add", "task", []any{task}); done {
		return code
	}
	if e.gf.Quiet {
		fmt.Fprintln(stdout, task.ID)
		return ExitOK
	}
	fmt.Fprintf(stdout, "%s [U%d] %s%s (%s)\n", task.ID, task.Urgency, task.Title, dueLabel(task), source)
	return ExitOK
}

func cmdList(e *env, args []string) int {
	args = reorderFlags(args, map[string]bool{
		"--tag":    true,
		"--search": true,
		"--all":    false,
	})
	fs := flag.NewFlagSet("ls", flag.ContinueOnError)
	fs.SetOutput(stderr)
	tag := fs.String("tag", "", "Filter by tag (single)")
	search := fs.String("search", "", "Search query (title/raw text)")
	all := fs.Bool("all", false, "Include completed and archived tasks")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}

	ranked, err := e.ws.Ranked(store.ListFilter{Tag: *tag, Search: *search, All: *all}, timeNow())
	if err != nil {
		return fail("ls", err)
	}

	if code, done := emitNDJSON(e.gf, "ls", "tasks", scoredItems(ranked)); done {
		return code
	}
	if code, done := emitJSON(e.gf, "ls", "tasks", map[string]any{"tasks": scoredItems(ranked)}); done {
		return code
	}

	if e.gf.Plain {
		fmt.Fprintln(stdout, "ID\tST\tU\tSCORE\tDUE\tTAGS\tTITLE")
		for _, s := range ranked {
			t := s.Item
			fmt.Fprintf(stdout, "%s\t%s\t%d\t%.0f\t%s\t%s\t%s\n",
				t.ID, t.StatusAbbrev(), t.EffectiveUrgency(), s.Score, dueOrDash(t), strings.Join(t.Tags, ","), t.Title)
		}
		return ExitOK
	}

	w := tabwriter.NewWriter(stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tST\tU\tSCORE\tDUE\tTAGS\tTITLE")
	for _, s := range ranked {
		t := s.Item
		fmt.Fprintf(w, "%s\t%s\t%d\t%.0f\t%s\t%s\t%s\n",
			t.IDShort(12), t.StatusAbbrev(), t.EffectiveUrgency(), s.Score, dueOrDash(t), strings.Join(t.Tags, ","), t.Title)
	}
	_ = w.Flush()
	return ExitOK
}

func cmdFocus(e *env, args []string) int {
	args = reorderFlags(args, map[string]bool{
		"--n":      true,
		"--format": true,
	})
	fs := flag.NewFlagSet("focus", flag.ContinueOnError)
	fs.SetOutput(stderr)
	n := fs.Int("n", ranking.DefaultFocusSize, "How many tasks to focus on")
	format := fs.String("format", "", "Output format (telegram)")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if *n < 1 {
		fmt.Fprintln(stderr, "focus: --n must be positive")
		return ExitUsage
	}
	now := timeNow()
	ranked, err := e.ws.Ranked(store.ListFilter{}, now)
	if err != nil {
		return fail("focus", err)
	}
	focus, others := ranking.Focus(ranked, *n)
	payload := map[string]any{"focus": scoredItems(focus), "others": scoredItems(others)}
	if code, done := emitJSON(e.gf, "focus", "focus", payload); done {
		return code
	}
	fmt.Fprintln(stdout, store.RenderFocus(focus, others, now, *format, e.gf.ASCII))
	return ExitOK
}

func cmdShow(e *env, args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, "Usage: focuslist show <id-or-prefix>")
		return ExitUsage
	}
	task, err := e.ws.GetTask(args[0])
	if err != nil {
		return fail("show", err)
	}
	score := ranking.Score(task.RankInput(), timeNow())
	if code, done := emitJSON(e.gf, "show", "task", map[string]any{"task": task, "score": score}); done {
		return code
	}
	fmt.Fprint(stdout, task.RenderHuman())
	fmt.Fprintf(stdout, "Score: %.0f (%s)\n", score, ranking.BandOf(task.Due, timeNow()))
	return ExitOK
}

func cmdToggle(e *env, name string, args []string) int {
	if len(args) < 1 {
		fmt.Fprintf(stderr, "Usage: focuslist %s <id-or-prefix>\n", name)
		return ExitUsage
	}
	var (
		task *store.Task
		err  error
	)
	switch name {
	case "pin":
		task, err = e.ws.TogglePin(args[0])
	case "done":
		task, err = e.ws.ToggleComplete(args[0])
	default:
		task, err = e.ws.ToggleArchive(args[0])
	}
	if err != nil {
		return fail(name, err)
	}
	if code, done := emitJSON(e.gf, name, "task", map[string]any{"task": task}); done {
		return code
	}
	if e.gf.Quiet {
		return ExitOK
	}
	var state string
	switch name {
	case "pin":
		state = onOff(task.Pinned, "Pinned", "Unpinned")
	case "done":
		state = onOff(task.Completed, "Done", "Reopened")
	default:
		state = onOff(task.Archived, "Archived", "Unarchived")
	}
	fmt.Fprintf(stdout, "%s %s\n", state, task.ID)
	return ExitOK
}

func cmdUrgency(e *env, args []string) int {
	if len(args) < 2 {
		fmt.Fprintln(stderr, "Usage: focuslist urgency <id-or-prefix> <0-3|clear>")
		return ExitUsage
	}
	var patch store.TaskPatch
	if v := strings.ToLower(strings.TrimSpace(args[1])); v == "clear" || v == "auto" {
		patch.ClearUserUrgency = true
	} else {
		u, err := strconv.Atoi(v)
		if err != nil || u < classify.MinUrgency || u > classify.MaxUrgency {
			fmt.Fprintf(stderr, "urgency: invalid value %q\n", args[1])
			return ExitUsage
		}
		patch.UserUrgency = &u
	}
	task, err := e.ws.UpdateTask(args[0], patch)
	if err != nil {
		return fail("urgency", err)
	}
	if code, done := emitJSON(e.gf, "urgency", "task", map[string]any{"task": task}); done {
		return code
	}
	if !e.gf.Quiet {
		fmt.Fprintf(stdout, "Urgency %d %s\n", task.EffectiveUrgency(), task.ID)
	}
	return ExitOK
}

func cmdRemove(e *env, args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, "Usage: focuslist rm <id-or-prefix>")
		return ExitUsage
	}
	task, err := e.ws.DeleteTask(args[0])
	if err != nil {
		return fail("rm", err)
	}
	if !e.gf.Quiet {
		fmt.Fprintf(stdout, "Deleted %s\n", task.ID)
	}
	return ExitOK
}

func cmdNote(e *env, args []string) int {
	if len(args) < 3 || args[0] != "add" {
		fmt.Fprintln(stderr, "Usage: focuslist note add <id> \"<text>\"")
		return ExitUsage
	}
	task, err := e.ws.AddNote(args[1], strings.Join(args[2:], " "))
	if err != nil {
		return fail("note", err)
	}
	if code, done := emitJSON(e.gf, "note", "task", map[string]any{"task": task}); done {
		return code
	}
	if !e.gf.Quiet {
		fmt.Fprintf(stdout, "Noted %s\n", task.ID)
	}
	return ExitOK
}

func cmdRewrite(e *env, args []string) int {
	args = reorderFlags(args, map[string]bool{
		"--rules":   true,
		"--offline": false,
	})
	fs := flag.NewFlagSet("rewrite", flag.ContinueOnError)
	fs.SetOutput(stderr)
	rules := fs.String("rules", "", "User rules for this call")
	offline := fs.Bool("offline", false, "Use keyword rules only")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	raw := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if raw == "" {
		fmt.Fprintln(stderr, "Usage: focuslist rewrite \"<raw text>\" [--rules <r>] [--offline]")
		return ExitUsage
	}
	var out rewrite.Outcome
	if *offline {
		out = rewrite.Outcome{Result: rewrite.Offline(raw, timeNow()), Source: rewrite.SourceFallback}
	} else {
		out = e.rewriter.Rewrite(context.Background(), raw, *rules)
	}
	payload := map[string]any{
		"result":   out.Result,
		"source":   out.Source.String(),
		"repaired": out.Repaired,
	}
	if code, done := emitJSON(e.gf, "rewrite", "rewrite", payload); done {
		return code
	}
	r := out.Result
	fmt.Fprintf(stdout, "Title:   %s\n", r.Title)
	fmt.Fprintf(stdout, "Tags:    %s\n", strings.Join(r.Tags, ", "))
	fmt.Fprintf(stdout, "Urgency: %d\n", r.Urgency)
	due := "-"
	if r.DueAt != nil {
		due = store.FormatDue(r.DueAt)
	}
	fmt.Fprintf(stdout, "Due:     %s\n", due)
	source := out.Source.String()
	if out.Repaired {
		source += " (due repaired)"
	}
	fmt.Fprintf(stdout, "Source:  %s\n", source)
	if out.Cause != nil && e.gf.Verbose {
		fmt.Fprintf(stdout, "Cause:   %v\n", out.Cause)
	}
	return ExitOK
}

func cmdSettings(e *env, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "Usage: focuslist settings <show|set> ...")
		return ExitUsage
	}
	ctx := context.Background()
	switch args[0] {
	case "show":
		// handled below
	case "set":
		return cmdSettingsSet(e, args[1:])
	default:
		fmt.Fprintln(stderr, "Usage: focuslist settings <show|set> ...")
		return ExitUsage
	}
	view, err := e.ws.SettingsView(ctx)
	if err != nil {
		return fail("settings show", err)
	}
	payload := map[string]any{"root": e.ws.Root, "settings": view, "timeout_ms": e.cfg.AI.Timeout.Milliseconds()}
	if code, done := emitJSON(e.gf, "settings show", "settings", payload); done {
		return code
	}
	w := tabwriter.NewWriter(stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tVALUE")
	fmt.Fprintf(w, "root\t%s\n", e.ws.Root)
	fmt.Fprintf(w, "ollamaBaseUrl\t%s\n", view.OllamaBaseURL)
	fmt.Fprintf(w, "ollamaModel\t%s\n", view.OllamaModel)
	fmt.Fprintf(w, "userRules\t%s\n", view.UserRules)
	fmt.Fprintf(w, "timeout\t%s\n", e.cfg.AI.Timeout)
	_ = w.Flush()
	return ExitOK
}

func cmdSettingsSet(e *env, args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, "Usage: focuslist settings set <key> <value>")
		return ExitUsage
	}
	key := strings.ToLower(strings.TrimSpace(args[0]))
	value := strings.TrimSpace(strings.Join(args[1:], " "))
	var patch store.SettingsPatch
	switch key {
	case "ollamabaseurl", "ollama_base_url":
		patch.OllamaBaseURL = &value
	case "ollamamodel", "ollama_model":
		patch.OllamaModel = &value
	case "userrules", "user_rules":
		patch.UserRules = &value
	default:
		fmt.Fprintln(stderr, "Unknown settings key:", args[0])
		fmt.Fprintln(stderr, "Allowed keys: ollamaBaseUrl, ollamaModel, userRules")
		return ExitUsage
	}
	if _, err := e.ws.SaveSettings(context.Background(), patch); err != nil {
		return fail("settings set", err)
	}
	if !e.gf.Quiet {
		fmt.Fprintf(stdout, "Updated %s\n", args[0])
	}
	return ExitOK
}

func cmdSeed(e *env, args []string) int {
	n, err := e.ws.Seed(timeNow())
	if err != nil {
		return fail("seed", err)
	}
	if !e.gf.Quiet {
		if n == 0 {
			fmt.Fprintln(stdout, "Store already has tasks; nothing seeded")
		} else {
			fmt.Fprintf(stdout, "Seeded %d tasks\n", n)
		}
	}
	return ExitOK
}

func cmdServe(e *env, args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", e.cfg.Addr, "Listen address")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if err := e.ws.Init(); err != nil {
		fmt.Fprintln(stderr, "serve:", err)
		return ExitInternal
	}
	// The API always logs to stderr.
	logger := log.New(stderr, "focuslist: ", log.LstdFlags)
	rw := rewrite.NewRewriter(e.ws, rewrite.NewOllamaClient(nil), logger)
	if err := server.NewServer(e.ws, rw, logger).Run(*addr); err != nil {
		fmt.Fprintln(stderr, "serve:", err)
		return ExitInternal
	}
	return ExitOK
}

func cmdPing(e *env, args []string) int {
	s, _ := e.ws.Settings(context.Background())
	if err := e.rewriter.Ping(context.Background()); err != nil {
		fmt.Fprintf(stderr, "ping: %s unreachable: %v\n", s.BaseURL, err)
		return ExitInternal
	}
	if !e.gf.Quiet {
		fmt.Fprintf(stdout, "Connected to %s (%s)\n", s.BaseURL, s.Model)
	}
	return ExitOK
}

// parseDue accepts YYYY-MM-DD, RFC3339, or a date phrase.
func parseDue(v string, now time.Time) (time.Time, error) {
	v = strings.TrimSpace(v)
	if t, err := time.ParseInLocation("2006-01-02", v, now.Location()); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	if t, ok := classify.ResolveDue(v, now); ok {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid due date %q", v)
}

type scoredTask struct {
	store.Task
	Score float64 `json:"score"`
}

func scoredItems(ranked []ranking.Scored[store.Task]) []any {
	out := make([]any, 0, len(ranked))
	for _, s := range ranked {
		out = append(out, scoredTask{Task: s.Item, Score: s.Score})
	}
	return out
}

func dueLabel(t *store.Task) string {
	if t.Due == nil {
		return ""
	}
	return " due " + store.FormatDue(t.Due)
}

func dueOrDash(t store.Task) string {
	if t.Due == nil {
		return "-"
	}
	return store.FormatDue(t.Due)
}

func onOff(v bool, on, off string) string {
	if v {
		return on
	}
	return off
}

// multiFlag supports repeated --tag flags.
type multiFlag struct{ Values []string }

func (m *multiFlag) String() string { return strings.Join(m.Values, ",") }
func (m *multiFlag) Set(v string) error {
	m.Values = append(m.Values, v)
	return nil
}

func writeJSONExport(gf GlobalFlags, base string, payload any) (string, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	return writeExportFile(gf.ExportDir, base, "json", data)
}

func writeNDJSONExport(gf GlobalFlags, base string, items []any) (string, error) {
	var b strings.Builder
	for _, item := range items {
		line, err := json.Marshal(item)
		if err != nil {
			return "", err
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	return writeExportFile(gf.ExportDir, base, "ndjson", []byte(b.String()))
}

func writeExportFile(dir, base, ext string, data []byte) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", errors.New("export directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	ts := timeNow().UTC().Format("20060102-150405")
	name := fmt.Sprintf("%s-%s.%s", base, ts, ext)
	path := filepath.Join(dir, name)
	for i := 1; ; i++ {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			break
		}
		name = fmt.Sprintf("%s-%s-%d.%s", base, ts, i, ext)
		path = filepath.Join(dir, name)
	}
	tmp := filepath.Join(dir, fmt.Sprintf(".tmp-%s.%s", base, ext))
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return path, nil
}
