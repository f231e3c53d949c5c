package manager

import (
	"context"
	"sync"
	"testing"
	"time"

	"answerd/internal/generation"
	"answerd/internal/search"
)

// fakeProvider streams chunks; when hold is non-nil each generation blocks on
// it after the first chunk until it is closed or the session is interrupted.
type fakeProvider struct {
	name   string
	chunks []string
	hold   chan struct{}
	genErr error

	mu       sync.Mutex
	messages [][]generation.Message
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Start(ctx context.Context, onProgress func(float64)) (generation.Generator, error) {
	return &fakeGenerator{p: p}, nil
}

func (p *fakeProvider) lastMessages() []generation.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.messages) == 0 {
		return nil
	}
	return p.messages[len(p.messages)-1]
}

type fakeGenerator struct{ p *fakeProvider }

func (g *fakeGenerator) Generate(ctx context.Context, messages []generation.Message, params generation.Params, onUpdate generation.UpdateFunc) (string, error) {
	g.p.mu.Lock()
	g.p.messages = append(g.p.messages, append([]generation.Message(nil), messages...))
	g.p.mu.Unlock()
	text := ""
	for i, c := range g.p.chunks {
		text += c
		onUpdate(text)
		if i == 0 && g.p.hold != nil {
			select {
			case <-g.p.hold:
			case <-ctx.Done():
				return text, generation.Interrupted(ctx.Err())
			}
		}
	}
	return text, g.p.genErr
}

func (g *fakeGenerator) Close() error { return nil }

func newTestManager(t *testing.T, cfg ManagerConfig) *Manager {
	t.Helper()
	if cfg.Providers == nil {
		cfg.Providers = map[string]generation.Provider{"fake": &fakeProvider{name: "fake", chunks: []string{"hello", " world"}}}
		cfg.DefaultProvider = "fake"
	}
	if cfg.ThrottleInterval == 0 {
		cfg.ThrottleInterval = time.Millisecond
	}
	m, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(m.Close)
	return m
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// waitState polls the session until it reaches want.
func waitState(t *testing.T, m *Manager, id string, want generation.State) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		st, err := m.Session(id)
		if err != nil {
			t.Fatalf("Session: %v", err)
		}
		if st.State == string(want) {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	st, _ := m.Session(id)
	t.Fatalf("session %s stuck in %q, want %q", id, st.State, want)
}

func contextWithCancel(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx, cancel
}

// notifyWriter signals first after the first write.
type notifyWriter struct {
	mu    sync.Mutex
	n     int
	first chan struct{}
}

func (w *notifyWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.n++
	if w.n == 1 {
		close(w.first)
	}
	return len(p), nil
}

// searchFunc is a Searcher that calls fn and returns nothing.
type searchFunc func()

func (f searchFunc) Search(ctx context.Context, query string) ([]search.Result, error) {
	f()
	return nil, nil
}
