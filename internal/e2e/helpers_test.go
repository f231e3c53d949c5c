package e2e

import (
	"bufio"
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
	"answerd/internal/httpapi"
	"answerd/internal/manager"
	"answerd/internal/provider/openai"
	"answerd/internal/search"
	"answerd/pkg/types"
)

// chatBackend is a minimal OpenAI-compatible endpoint. gate, when set,
// holds every stream after its first token until closed.
type chatBackend struct {
	tokens []string
	gate   chan struct{}

	mu      sync.Mutex
	systems []string
}

func (b *chatBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		b.mu.Lock()
		for _, m := range req.Messages {
			if m.Role == "system" {
				b.systems = append(b.systems, m.Content)
			}
		}
		b.mu.Unlock()
		w.Header().Set("Content-Type", "text/event-stream")
		fl := w.(http.Flusher)
		for i, tok := range b.tokens {
			fmt.Fprintf(w, "data: {\"id\":\"c\",\"object\":\"chat.completion.chunk\",\"model\":%q,\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", req.Model, tok)
			fl.Flush()
			if i == 0 && b.gate != nil {
				select {
				case <-b.gate:
				case <-r.Context().Done():
					return
				}
			}
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})
	return mux
}

func (b *chatBackend) lastSystem() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.systems) == 0 {
		return ""
	}
	return b.systems[len(b.systems)-1]
}

// searxng serves a fixed JSON result page.
func searxng(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" || r.URL.Query().Get("format") != "json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"results":[{"title":"Olympus Mons","url":"https://example.org/olympus","content":"The tallest volcano on Mars."}]}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// newStack wires the HTTP API, the manager, SearXNG search and the OpenAI
// provider against fakes.
func newStack(t *testing.T, backend *chatBackend, mcfg manager.ManagerConfig) *httptest.Server {
	t.Helper()
	llm := httptest.NewServer(backend.handler())
	t.Cleanup(llm.Close)
	mcfg.Providers = map[string]generation.Provider{
		openai.Name: openai.New(openai.Config{BaseURL: llm.URL + "/v1", APIKey: "k", Model: "m"}),
	}
	mcfg.DefaultProvider = openai.Name
	mcfg.Searcher = search.NewSearXNG(searxng(t).URL, 0, 2*time.Second)
	mcfg.ThrottleInterval = 5 * time.Millisecond
	m, err := manager.New(mcfg)
	if err != nil {
		t.Fatalf("manager.New: %v", err)
	}
	srv := httptest.NewServer(httpapi.NewMux(m))
	// LIFO: close the server before the manager.
	t.Cleanup(m.Close)
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, ctx context.Context, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	return resp
}

// readLines decodes an NDJSON body.
func readLines(t *testing.T, resp *http.Response) []types.StreamLine {
	t.Helper()
	defer resp.Body.Close()
	var out []types.StreamLine
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		var l types.StreamLine
		if err := json.Unmarshal(sc.Bytes(), &l); err != nil {
			t.Fatalf("bad line %q: %v", sc.Text(), err)
		}
		out = append(out, l)
	}
	return out
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}
