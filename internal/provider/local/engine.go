package local

import (
	"context"

	"answerd/internal/generation"
)

// Runtime loads a model and returns an Engine bound to it.
type Runtime interface {
	Name() string
	// Start loads modelPath. onProgress receives load progress in 0..100.
	Start(ctx context.Context, modelPath string, onProgress func(pct float64)) (Engine, error)
}

// Engine runs completions against a loaded model.
type Engine interface {
	// Generate streams token fragments to onToken and returns the full text.
	// A non-nil error from onToken stops decoding. Implementations must return
	// when ctx is canceled.
	Generate(ctx context.Context, messages []generation.Message, params generation.Params, onToken func(string) error) (string, error)
	// Close releases the model. Safe to call more than once.
	Close() error
}
