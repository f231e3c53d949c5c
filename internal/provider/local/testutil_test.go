package local

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"answerd/internal/generation"
)

// fakeRuntime hands out fakeEngines or fails.
type fakeRuntime struct {
	name   string
	err    error
	tokens []string
	starts atomic.Int32

	mu      sync.Mutex
	engines []*fakeEngine
}

func (r *fakeRuntime) Name() string { return r.name }

func (r *fakeRuntime) Start(ctx context.Context, modelPath string, onProgress func(float64)) (Engine, error) {
	r.starts.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	onProgress(100)
	e := &fakeEngine{tokens: r.tokens, modelPath: modelPath}
	r.mu.Lock()
	r.engines = append(r.engines, e)
	r.mu.Unlock()
	return e, nil
}

func (r *fakeRuntime) engine(i int) *fakeEngine {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.engines[i]
}

type fakeEngine struct {
	tokens    []string
	modelPath string
	genErr    error
	closes    atomic.Int32
}

func (e *fakeEngine) Generate(ctx context.Context, messages []generation.Message, params generation.Params, onToken func(string) error) (string, error) {
	out := ""
	for _, t := range e.tokens {
		if err := onToken(t); err != nil {
			return out, err
		}
		out += t
	}
	return out, e.genErr
}

func (e *fakeEngine) Close() error {
	e.closes.Add(1)
	return nil
}

var errNoGPU = errors.New("no gpu")

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return c
}
