//go:build !llama

package local

import "context"

// llamaBuilt is false in builds without the 'llama' tag.
var llamaBuilt = false

// AcceleratedOptions configures the in-process runtime.
type AcceleratedOptions struct {
	CtxSize   int
	Threads   int
	GPULayers int
}

// acceleratedRuntime refuses to load models when llama support is not built,
// which sends the provider down the CPU fallback path.
type acceleratedRuntime struct{ opts AcceleratedOptions }

// NewAccelerated constructs the accelerated runtime.
func NewAccelerated(opts AcceleratedOptions) Runtime {
	return &acceleratedRuntime{opts: opts}
}

func (r *acceleratedRuntime) Name() string { return "accelerated" }

func (r *acceleratedRuntime) Start(ctx context.Context, modelPath string, onProgress func(float64)) (Engine, error) {
	return nil, ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}
