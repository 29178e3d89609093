package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amirbrooks/focuslist/internal/classify"
	"github.com/amirbrooks/focuslist/internal/ranking"
	"github.com/amirbrooks/focuslist/internal/store"
)

// taskView is a task as returned by the API, with its score as of the
// request time.
type taskView struct {
	store.Task
	Score  float64 `json:"score"`
	Source string  `json:"source,omitempty"`
}

func viewOf(s ranking.Scored[store.Task]) taskView {
	return taskView{Task: s.Item, Score: s.Score}
}

func viewsOf(ranked []ranking.Scored[store.Task]) []taskView {
	out := make([]taskView, 0, len(ranked))
	for _, s := range ranked {
		out = append(out, viewOf(s))
	}
	return out
}

func (s *Server) scoreTask(t *store.Task, now time.Time) taskView {
	return taskView{Task: *t, Score: ranking.Score(t.RankInput(), now)}
}

// writeError maps store errors to status codes.
func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrInvalid):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrConflict):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.logger.Printf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// asOf returns the evaluation time, taken from ?asOf= when given.
func (s *Server) asOf(c *gin.Context) (time.Time, bool) {
	v := strings.TrimSpace(c.Query("asOf"))
	if v == "" {
		return s.now(), true
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		badRequest(c, "asOf must be RFC3339")
		return time.Time{}, false
	}
	return t, true
}

func listFilter(c *gin.Context) store.ListFilter {
	all := c.Query("all")
	return store.ListFilter{
		All:    all == "1" || all == "true",
		Tag:    c.Query("tag"),
		Search: c.Query("q"),
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":   true,
		"time": s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleListTasks(c *gin.Context) {
	now, ok := s.asOf(c)
	if !ok {
		return
	}
	ranked, err := s.ws.Ranked(listFilter(c), now)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewsOf(ranked))
}

func (s *Server) handleGetTask(c *gin.Context) {
	t, err := s.ws.GetTask(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.scoreTask(t, s.now()))
}

type createRequest struct {
	RawText   string   `json:"rawText"`
	Title     *string  `json:"title"`
	Tags      []string `json:"tags"`
	Urgency   *int     `json:"urgency"`
	Due       *string  `json:"due"`
	Pinned    bool     `json:"pinned"`
	UserRules string   `json:"userRules"`
}

// handleCreateTask stores a task. Without a title the rewrite pipeline
// fills title, tags, urgency and due; explicit request fields win.
func (s *Server) handleCreateTask(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	raw := strings.TrimSpace(req.RawText)
	if raw == "" {
		badRequest(c, "rawText is required")
		return
	}

	in := store.CreateTaskInput{RawText: raw, Tags: req.Tags, Pinned: req.Pinned}
	var source string
	if req.Title == nil {
		out := s.rewriter.Rewrite(c.Request.Context(), raw, req.UserRules)
		source = out.Source.String()
		in.Title = out.Result.Title
		in.Urgency = out.Result.Urgency
		in.Due = out.Result.DueAt
		if in.Tags == nil {
			in.Tags = out.Result.Tags
		}
	} else {
		in.Title = *req.Title
		in.Urgency = classify.BaseUrgency
	}
	if req.Urgency != nil {
		in.Urgency = *req.Urgency
	}
	if req.Due != nil {
		due, err := parseDue(*req.Due)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		in.Due = due
	}

	t, err := s.ws.CreateTask(in)
	if err != nil {
		s.writeError(c, err)
		return
	}
	view := s.scoreTask(t, s.now())
	view.Source = source
	c.JSON(http.StatusCreated, view)
}

// patchRequest uses raw messages where null means "clear".
type patchRequest struct {
	Title       *string         `json:"title"`
	Tags        *[]string       `json:"tags"`
	Urgency     *int            `json:"urgency"`
	UserUrgency json.RawMessage `json:"userUrgency"`
	Due         json.RawMessage `json:"due"`
	Pinned      *bool           `json:"pinned"`
	Completed   *bool           `json:"completed"`
	Archived    *bool           `json:"archived"`
}

func (r patchRequest) toPatch() (store.TaskPatch, error) {
	p := store.TaskPatch{
		Title:     r.Title,
		Urgency:   r.Urgency,
		Pinned:    r.Pinned,
		Completed: r.Completed,
		Archived:  r.Archived,
	}
	if r.Tags != nil {
		p.SetTags = true
		p.Tags = *r.Tags
	}
	if len(r.UserUrgency) > 0 {
		if isJSONNull(r.UserUrgency) {
			p.ClearUserUrgency = true
		} else {
			var u int
			if err := json.Unmarshal(r.UserUrgency, &u); err != nil {
				return p, fmt.Errorf("userUrgency must be an integer or null")
			}
			p.UserUrgency = &u
		}
	}
	if len(r.Due) > 0 {
		if isJSONNull(r.Due) {
			p.ClearDue = true
		} else {
			var v string
			if err := json.Unmarshal(r.Due, &v); err != nil {
				return p, fmt.Errorf("due must be a date string or null")
			}
			due, err := parseDue(v)
			if err != nil {
				return p, err
			}
			p.Due = due
		}
	}
	return p, nil
}

func (s *Server) handleUpdateTask(c *gin.Context) {
	var req patchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	t, err := s.ws.UpdateTask(c.Param("id"), patch)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.scoreTask(t, s.now()))
}

func (s *Server) handleToggle(toggle func(string) (*store.Task, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, err := toggle(c.Param("id"))
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, s.scoreTask(t, s.now()))
	}
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	t, err := s.ws.DeleteTask(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": t.ID})
}

type rewriteRequest struct {
	RawText   string `json:"rawText"`
	UserRules string `json:"userRules"`
}

func (s *Server) handleRewrite(c *gin.Context) {
	var req rewriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if strings.TrimSpace(req.RawText) == "" {
		badRequest(c, "rawText is required")
		return
	}
	out := s.rewriter.Rewrite(c.Request.Context(), req.RawText, req.UserRules)
	var due any
	if out.Result.Due != "" {
		due = out.Result.Due
	}
	c.Header("X-Rewrite-Source", out.Source.String())
	c.Header("X-Rewrite-Repaired", strconv.FormatBool(out.Repaired))
	c.JSON(http.StatusOK, gin.H{
		"title":   out.Result.Title,
		"tags":    out.Result.Tags,
		"urgency": out.Result.Urgency,
		"due":     due,
	})
}

func (s *Server) handleTestConnection(c *gin.Context) {
	if err := s.rewriter.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusOK, gin.H{"connected": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"connected": true})
}

func (s *Server) handleGetSettings(c *gin.Context) {
	v, err := s.ws.SettingsView(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) handleSaveSettings(c *gin.Context) {
	var patch store.SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err.Error())
		return
	}
	v, err := s.ws.SaveSettings(c.Request.Context(), patch)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) handleFocus(c *gin.Context) {
	now, ok := s.asOf(c)
	if !ok {
		return
	}
	n := ranking.DefaultFocusSize
	if v := c.Query("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			badRequest(c, "n must be a positive integer")
			return
		}
		n = parsed
	}
	ranked, err := s.ws.Ranked(store.ListFilter{}, now)
	if err != nil {
		s.writeError(c, err)
		return
	}
	focus, others := ranking.Focus(ranked, n)
	c.JSON(http.StatusOK, gin.H{
		"focus":  viewsOf(focus),
		"others": viewsOf(others),
	})
}

func (s *Server) handleSeed(c *gin.Context) {
	n, err := s.ws.Seed(s.now())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"created": n})
}

// parseDue accepts YYYY-MM-DD or RFC3339.
func parseDue(v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return &t, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	return nil, fmt.Errorf("%w: due must be YYYY-MM-DD or RFC3339", store.ErrInvalid)
}

func isJSONNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
