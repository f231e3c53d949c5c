// Package search is the boundary to the web search collaborator. It does not
// rank anything itself; it starts a search in the background and exposes the
// pending result set as a Future that any number of waiters can share.
package search

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Result is one ranked search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Searcher turns a query into ranked results.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// Future is a single-assignment result set. The first Resolve wins; later
// calls are ignored.
type Future struct {
	once    sync.Once
	done    chan struct{}
	results []Result
}

// NewFuture returns an unresolved Future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolved returns a Future that is already resolved with results.
func Resolved(results []Result) *Future {
	f := NewFuture()
	f.Resolve(results)
	return f
}

// Resolve stores results and wakes every waiter. It reports whether this call
// performed the resolution.
func (f *Future) Resolve(results []Result) bool {
	resolved := false
	f.once.Do(func() {
		f.results = append([]Result(nil), results...)
		close(f.done)
		resolved = true
	})
	return resolved
}

// Done is closed once the Future resolves.
func (f *Future) Done() <-chan struct{} { return f.done }

// Ready reports whether the Future has resolved.
func (f *Future) Ready() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Results returns a copy of the resolved results, or nil before resolution.
func (f *Future) Results() []Result {
	if !f.Ready() {
		return nil
	}
	return append([]Result(nil), f.results...)
}

// Wait blocks until the Future resolves or ctx is done.
func (f *Future) Wait(ctx context.Context) ([]Result, error) {
	select {
	case <-f.done:
		return f.Results(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Start runs the search in the background. A failed search resolves the
// Future with no results; the failure is only logged.
func Start(ctx context.Context, s Searcher, query string) *Future {
	f := NewFuture()
	if s == nil {
		f.Resolve(nil)
		return f
	}
	go func() {
		results, err := s.Search(ctx, query)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("query", query).Msg("search failed")
			results = nil
		}
		f.Resolve(results)
	}()
	return f
}

// Static is a Searcher returning a fixed result set.
type Static []Result

// Search implements Searcher.
func (s Static) Search(ctx context.Context, query string) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]Result(nil), s...), nil
}
