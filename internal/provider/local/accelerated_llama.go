//go:build llama

package local

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"

	"answerd/internal/generation"
	"answerd/internal/prompt"
)

// llamaBuilt indicates this binary was compiled with in-process llama support.
var llamaBuilt = true

// AcceleratedOptions configures the in-process runtime.
type AcceleratedOptions struct {
	CtxSize   int
	Threads   int
	GPULayers int
}

type acceleratedRuntime struct{ opts AcceleratedOptions }

// NewAccelerated constructs the in-process go-llama.cpp runtime with GPU offload.
func NewAccelerated(opts AcceleratedOptions) Runtime {
	if opts.GPULayers <= 0 {
		opts.GPULayers = 99
	}
	return &acceleratedRuntime{opts: opts}
}

func (r *acceleratedRuntime) Name() string { return "accelerated" }

func (r *acceleratedRuntime) Start(ctx context.Context, modelPath string, onProgress func(float64)) (Engine, error) {
	if strings.TrimSpace(modelPath) == "" {
		return nil, errors.New("model path is empty")
	}
	mo := []llama.ModelOption{llama.SetGPULayers(r.opts.GPULayers), llama.EnableF16Memory}
	if r.opts.CtxSize > 0 {
		mo = append(mo, llama.SetContext(r.opts.CtxSize))
	}
	w := &llamaWorker{
		threads: r.opts.Threads,
		reqs:    make(chan predictRequest),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	loaded := make(chan error, 1)
	go w.loop(modelPath, mo, loaded)
	onProgress(10)
	select {
	case err := <-loaded:
		if err != nil {
			return nil, err
		}
		onProgress(100)
		return w, nil
	case <-ctx.Done():
		// Loading cannot be aborted; the worker frees the model once it is up.
		go w.Close()
		return nil, generation.Interrupted(ctx.Err())
	}
}

type predictRequest struct {
	ctx    context.Context
	prompt string
	opts   []llama.PredictOption
	tokens chan string
	result chan predictResult
}

type predictResult struct {
	text string
	err  error
}

// llamaWorker owns the model on a locked OS thread; callers reach it only
// through channels.
type llamaWorker struct {
	threads int
	reqs    chan predictRequest
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func (w *llamaWorker) loop(modelPath string, mo []llama.ModelOption, loaded chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(w.done)

	m, err := llama.New(modelPath, mo...)
	loaded <- err
	if err != nil {
		return
	}
	defer m.Free()
	for {
		select {
		case <-w.quit:
			return
		case req := <-w.reqs:
			m.SetTokenCallback(func(tok string) bool {
				select {
				case req.tokens <- tok:
					return true
				case <-req.ctx.Done():
					return false
				}
			})
			text, err := m.Predict(req.prompt, req.opts...)
			req.result <- predictResult{text: text, err: err}
		}
	}
}

func (w *llamaWorker) Generate(ctx context.Context, messages []generation.Message, params generation.Params, onToken func(string) error) (string, error) {
	rctx, cancel := context.WithCancel(ctx)
	defer cancel()
	req := predictRequest{
		ctx:    rctx,
		prompt: prompt.ChatML(messages),
		opts:   predictOptions(params, w.threads),
		tokens: make(chan string, 64),
		result: make(chan predictResult, 1),
	}
	select {
	case w.reqs <- req:
	case <-ctx.Done():
		return "", generation.Interrupted(ctx.Err())
	case <-w.done:
		return "", errors.New("llama worker stopped")
	}

	var cbErr error
	forward := func(tok string) {
		if cbErr != nil {
			return
		}
		if err := onToken(tok); err != nil {
			cbErr = err
			cancel()
		}
	}
	for {
		select {
		case tok := <-req.tokens:
			forward(tok)
		case res := <-req.result:
			for drained := false; !drained; {
				select {
				case tok := <-req.tokens:
					forward(tok)
				default:
					drained = true
				}
			}
			switch {
			case ctx.Err() != nil:
				return res.text, generation.Interrupted(ctx.Err())
			case cbErr != nil:
				return res.text, cbErr
			}
			return res.text, res.err
		}
	}
}

// Close stops the worker and frees the model.
func (w *llamaWorker) Close() error {
	w.once.Do(func() {
		close(w.quit)
		<-w.done
	})
	return nil
}

func zn(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func zf(v, def float32) float32 {
	if v > 0 {
		return v
	}
	return def
}

// predictOptions converts sampling params into go-llama.cpp options.
func predictOptions(p generation.Params, threads int) []llama.PredictOption {
	return []llama.PredictOption{
		llama.SetTokens(zn(p.MaxTokens, 512)),
		llama.SetThreads(zn(threads, runtime.NumCPU())),
		llama.SetTopP(zf(p.TopP, llama.DefaultOptions.TopP)),
		llama.SetTemperature(zf(p.Temperature, llama.DefaultOptions.Temperature)),
		llama.SetFrequencyPenalty(p.FrequencyPenalty),
		llama.SetPresencePenalty(p.PresencePenalty),
		llama.SetStopWords(prompt.StopSequences...),
	}
}
