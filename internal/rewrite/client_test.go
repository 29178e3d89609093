package rewrite

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestOllamaClientGenerate(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"response": `{"title":"ok"}`, "done": true})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.Client())
	out, err := c.Generate(context.Background(), Settings{BaseURL: srv.URL + "/", Model: "tiny"}, "hello")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out != `{"title":"ok"}` {
		t.Fatalf("unexpected response %q", out)
	}
	if got["model"] != "tiny" || got["prompt"] != "hello" || got["stream"] != false {
		t.Fatalf("unexpected request body %#v", got)
	}
	opts, _ := got["options"].(map[string]any)
	if opts["temperature"] != 0.3 || opts["top_p"] != 0.9 {
		t.Fatalf("unexpected options %#v", opts)
	}
}

func TestOllamaClientNonSuccessStatus(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaClient(nil).Generate(context.Background(), Settings{BaseURL: srv.URL}, "p")
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected status in error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one request, got %d", calls)
	}
}

func TestOllamaClientTimeoutCancelsRequest(t *testing.T) {
	cancelled := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		close(cancelled)
	}))
	defer srv.Close()

	start := time.Now()
	_, err := NewOllamaClient(srv.Client()).Generate(context.Background(), Settings{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, "p")
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("timeout not enforced")
	}
	select {
	case <-cancelled:
	case <-time.After(5 * time.Second):
		t.Fatalf("server never observed cancellation")
	}
}

func TestOllamaClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewOllamaClient(nil).Generate(context.Background(), Settings{BaseURL: url, Timeout: time.Second}, "p")
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("Send resume by Friday", "")
	if !strings.Contains(p, `Task: "Send resume by Friday"`) {
		t.Fatalf("prompt missing task line:\n%s", p)
	}
	if strings.Contains(p, "User rules") {
		t.Fatalf("unexpected rules line:\n%s", p)
	}
	p = BuildPrompt("Buy \"oat\" milk\nand bread", "")
	if !strings.Contains(p, "Task: \"Buy \"oat\" milk\nand bread\"") {
		t.Fatalf("task text should be embedded unescaped:\n%s", p)
	}
	p = BuildPrompt("x", "Tag anything about taxes as finance")
	if !strings.HasSuffix(p, "\n\nUser rules: Tag anything about taxes as finance") {
		t.Fatalf("rules not appended:\n%s", p)
	}
}
