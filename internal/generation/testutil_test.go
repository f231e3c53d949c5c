package generation

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeProvider streams fixed chunks, optionally pausing between them.
type fakeProvider struct {
	name     string
	loads    bool
	startErr error
	genErr   error
	chunks   []string
	delay    time.Duration

	starts atomic.Int32
	closes atomic.Int32

	mu       sync.Mutex
	messages []Message
}

func (p *fakeProvider) Name() string {
	if p.name == "" {
		return "fake"
	}
	return p.name
}

func (p *fakeProvider) LoadsModel() bool { return p.loads }

func (p *fakeProvider) Start(ctx context.Context, onProgress func(float64)) (Generator, error) {
	p.starts.Add(1)
	if p.loads {
		onProgress(50)
	}
	if p.startErr != nil {
		return nil, p.startErr
	}
	return &fakeGenerator{p: p}, nil
}

type fakeGenerator struct{ p *fakeProvider }

func (g *fakeGenerator) Generate(ctx context.Context, messages []Message, params Params, onUpdate UpdateFunc) (string, error) {
	g.p.mu.Lock()
	g.p.messages = append([]Message(nil), messages...)
	g.p.mu.Unlock()
	text := ""
	for _, c := range g.p.chunks {
		if g.p.delay > 0 {
			select {
			case <-ctx.Done():
				return text, Interrupted(ctx.Err())
			case <-time.After(g.p.delay):
			}
		} else if err := CheckInterrupted(ctx); err != nil {
			return text, err
		}
		text += c
		onUpdate(text)
	}
	if g.p.genErr != nil {
		return text, g.p.genErr
	}
	return text, nil
}

func (g *fakeGenerator) Close() error {
	g.p.closes.Add(1)
	return nil
}

// waitState blocks until tr reaches want or the test context expires.
func waitState(t *testing.T, tr *Tracker, want State) {
	t.Helper()
	ctx := testCtx(t)
	for {
		snap, ch := tr.Watch()
		if snap.State == want {
			return
		}
		select {
		case <-ch:
		case <-ctx.Done():
			t.Fatalf("timed out waiting for state %q; last=%q", want, snap.State)
		}
	}
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return c
}

func containsState(states []State, s State) bool {
	for _, x := range states {
		if x == s {
			return true
		}
	}
	return false
}
