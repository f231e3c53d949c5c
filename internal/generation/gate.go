package generation

import (
	"context"

	"answerd/internal/search"
)

// Gate blocks generation until the concurrently running search resolves. It
// never starts the search itself.
type Gate struct {
	// ResultsToConsider is how many results the prompt uses; 0 disables the dependency.
	ResultsToConsider int
	// Search is the shared in-flight search.
	Search *search.Future
}

// Wait resolves once generation may start. When the search is still pending
// the tracker moves to StateAwaitingSearchResults. A search with no results
// still resolves the gate.
func (g Gate) Wait(ctx context.Context, t *Tracker) ([]search.Result, error) {
	if g.ResultsToConsider <= 0 || g.Search == nil {
		return nil, nil
	}
	if !g.Search.Ready() && t != nil {
		t.set(StateAwaitingSearchResults)
	}
	results, err := g.Search.Wait(ctx)
	if err != nil {
		return nil, Interrupted(err)
	}
	if len(results) > g.ResultsToConsider {
		results = results[:g.ResultsToConsider]
	}
	return results, nil
}
