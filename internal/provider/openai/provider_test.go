package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"answerd/internal/generation"
)

// fakeEndpoint emulates /v1/models and a streaming /v1/chat/completions.
type fakeEndpoint struct {
	models []string
	// ok lists models that stream successfully; all others return 500.
	ok    map[string]bool
	delay time.Duration

	mu       sync.Mutex
	attempts []string
	auth     []string
}

func (f *fakeEndpoint) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.auth = append(f.auth, r.Header.Get("Authorization"))
		f.mu.Unlock()
		type model struct {
			ID     string `json:"id"`
			Object string `json:"object"`
		}
		out := struct {
			Object string  `json:"object"`
			Data   []model `json:"data"`
		}{Object: "list"}
		for _, m := range f.models {
			out.Data = append(out.Data, model{ID: m, Object: "model"})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model  string `json:"model"`
			Stream bool   `json:"stream"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.attempts = append(f.attempts, req.Model)
		f.auth = append(f.auth, r.Header.Get("Authorization"))
		f.mu.Unlock()
		if !f.ok[req.Model] {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"message":"model overloaded","type":"server_error"}}`))
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fl := w.(http.Flusher)
		for _, tok := range []string{"Go", " is", " fun", " and", " fast"} {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(f.delay):
			}
			fmt.Fprintf(w, "data: {\"id\":\"c\",\"object\":\"chat.completion.chunk\",\"model\":%q,\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", req.Model, tok)
			fl.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})
	return mux
}

func (f *fakeEndpoint) tried() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.attempts...)
}

func newServer(t *testing.T, f *fakeEndpoint) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return srv
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return c
}

func generate(t *testing.T, p *Provider, onUpdate generation.UpdateFunc) (string, error) {
	t.Helper()
	g, err := p.Start(testCtx(t), nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer g.Close()
	msgs := []generation.Message{{Role: generation.RoleUser, Content: "hi"}}
	return g.Generate(testCtx(t), msgs, generation.DefaultParams(), onUpdate)
}

func TestGenerate_ConfiguredModelStreamsCumulative(t *testing.T) {
	f := &fakeEndpoint{models: []string{"m1"}, ok: map[string]bool{"m1": true}}
	srv := newServer(t, f)
	p := New(Config{BaseURL: srv.URL + "/v1", APIKey: "k", Model: "m1"})
	var updates []string
	text, err := generate(t, p, func(s string) { updates = append(updates, s) })
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "Go is fun and fast" {
		t.Fatalf("text=%q", text)
	}
	for i := 1; i < len(updates); i++ {
		if !strings.HasPrefix(updates[i], updates[i-1]) {
			t.Fatalf("updates not cumulative: %q", updates)
		}
	}
	if got := f.tried(); len(got) != 1 || got[0] != "m1" {
		t.Fatalf("attempts=%v", got)
	}
}

func TestGenerate_RandomModelWhenUnconfigured(t *testing.T) {
	f := &fakeEndpoint{models: []string{"a", "b", "c"}, ok: map[string]bool{"a": true, "b": true, "c": true}}
	srv := newServer(t, f)
	p := New(Config{BaseURL: srv.URL + "/v1"})
	p.intn = func(n int) int { return n - 1 }
	if _, err := generate(t, p, nil); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got := f.tried(); len(got) != 1 || got[0] != "c" {
		t.Fatalf("attempts=%v", got)
	}
}

func TestGenerate_ThreeFailingModelsNoRepeats(t *testing.T) {
	f := &fakeEndpoint{models: []string{"a", "b", "c"}}
	srv := newServer(t, f)
	p := New(Config{BaseURL: srv.URL + "/v1"})
	_, err := generate(t, p, nil)
	if !generation.IsFailure(err, generation.FailureNoModel) {
		t.Fatalf("expected no_model, got %v", err)
	}
	if !strings.Contains(err.Error(), "3 attempts") {
		t.Fatalf("error should name the attempt count: %v", err)
	}
	got := f.tried()
	if len(got) != 3 {
		t.Fatalf("expected exactly 3 attempts, got %v", got)
	}
	seen := map[string]bool{}
	for _, m := range got {
		if seen[m] {
			t.Fatalf("model %q repeated: %v", m, got)
		}
		seen[m] = true
	}
}

func TestGenerate_RetryCeiling(t *testing.T) {
	f := &fakeEndpoint{models: []string{"a", "b", "c", "d", "e", "f", "g"}}
	srv := newServer(t, f)
	p := New(Config{BaseURL: srv.URL + "/v1", Model: "a"})
	_, err := generate(t, p, nil)
	if !generation.IsFailure(err, generation.FailureRetriesExhausted) {
		t.Fatalf("expected retries_exhausted, got %v", err)
	}
	if !strings.Contains(err.Error(), fmt.Sprint(MaxAttempts)) {
		t.Fatalf("error should name the ceiling: %v", err)
	}
	got := f.tried()
	if len(got) != MaxAttempts || got[0] != "a" {
		t.Fatalf("attempts=%v", got)
	}
}

func TestGenerate_RotatesToWorkingModel(t *testing.T) {
	f := &fakeEndpoint{models: []string{"bad", "good"}, ok: map[string]bool{"good": true}}
	srv := newServer(t, f)
	p := New(Config{BaseURL: srv.URL + "/v1", Model: "bad"})
	text, err := generate(t, p, nil)
	if err != nil || text == "" {
		t.Fatalf("text=%q err=%v", text, err)
	}
	if got := f.tried(); len(got) != 2 || got[1] != "good" {
		t.Fatalf("attempts=%v", got)
	}
}

func TestGenerate_NoModelsListed(t *testing.T) {
	srv := newServer(t, &fakeEndpoint{})
	p := New(Config{BaseURL: srv.URL + "/v1"})
	if _, err := generate(t, p, nil); !generation.IsFailure(err, generation.FailureNoModel) {
		t.Fatalf("expected no_model, got %v", err)
	}
}

func TestGenerate_ModelsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"down"}}`, http.StatusBadGateway)
	}))
	defer srv.Close()
	p := New(Config{BaseURL: srv.URL + "/v1"})
	if _, err := generate(t, p, nil); !generation.IsFailure(err, generation.FailureModelsUnavailable) {
		t.Fatalf("expected models_unavailable, got %v", err)
	}
}

func TestGenerate_InterruptBypassesRetry(t *testing.T) {
	f := &fakeEndpoint{models: []string{"a", "b"}, ok: map[string]bool{"a": true, "b": true}, delay: 30 * time.Millisecond}
	srv := newServer(t, f)
	p := New(Config{BaseURL: srv.URL + "/v1", Model: "a"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, _ := p.Start(ctx, nil)
	var once sync.Once
	text, err := g.Generate(ctx, nil, generation.DefaultParams(), func(string) { once.Do(cancel) })
	if !generation.IsInterrupted(err) {
		t.Fatalf("expected interruption, got %v", err)
	}
	if text == "" {
		t.Fatalf("expected partial text")
	}
	if got := f.tried(); len(got) != 1 {
		t.Fatalf("retried after interruption: %v", got)
	}
}

func TestGateway_FreshTokenPerAttempt(t *testing.T) {
	f := &fakeEndpoint{models: []string{"a", "b"}, ok: map[string]bool{"b": true}}
	srv := newServer(t, f)
	var mu sync.Mutex
	n := 0
	ts := TokenFunc(func(context.Context) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("tok-%d", n), nil
	})
	p := NewGateway(Config{BaseURL: srv.URL + "/v1", Model: "a"}, ts)
	if p.Name() != GatewayName {
		t.Fatalf("name=%q", p.Name())
	}
	if _, err := generate(t, p, nil); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	f.mu.Lock()
	auth := append([]string(nil), f.auth...)
	f.mu.Unlock()
	seen := map[string]bool{}
	for _, a := range auth {
		if !strings.HasPrefix(a, "Bearer tok-") {
			t.Fatalf("unexpected auth header %q", a)
		}
		if seen[a] {
			t.Fatalf("token reused: %v", auth)
		}
		seen[a] = true
	}
}

func TestGateway_TokenErrorFails(t *testing.T) {
	srv := newServer(t, &fakeEndpoint{models: []string{"a"}})
	p := NewGateway(Config{BaseURL: srv.URL + "/v1", Model: "a", MaxAttempts: 2}, TokenFunc(func(context.Context) (string, error) {
		return "", fmt.Errorf("issuer down")
	}))
	_, err := generate(t, p, nil)
	if err == nil || generation.IsInterrupted(err) {
		t.Fatalf("expected failure, got %v", err)
	}
}
