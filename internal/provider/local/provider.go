package local

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"answerd/internal/generation"
	"answerd/internal/registry"
	"answerd/pkg/types"
)

// Name is the provider kind used in configuration.
const Name = "local"

// Config configures the local provider.
type Config struct {
	// Models is the local registry; ModelID selects one (first when empty).
	Models  []types.Model
	ModelID string
	// Accelerate tries Accelerated before CPU.
	Accelerate  bool
	Accelerated Runtime
	CPU         Runtime
	// MaxQueueDepth and MaxWait bound callers waiting for the device.
	MaxQueueDepth int
	MaxWait       time.Duration
}

// Provider runs generation on a local model, preferring the accelerated
// runtime and silently falling back to the CPU runtime when it fails to start.
type Provider struct {
	cfg  Config
	slot *admission
}

// New constructs a local provider.
func New(cfg Config) *Provider {
	return &Provider{cfg: cfg, slot: newAdmission("local", cfg.MaxQueueDepth, cfg.MaxWait)}
}

func (p *Provider) Name() string { return Name }

// LoadsModel reports true: Start loads weights.
func (p *Provider) LoadsModel() bool { return true }

// Models returns the configured registry.
func (p *Provider) Models() []types.Model { return p.cfg.Models }

// Inflight reports the number of loaded engines (0 or 1).
func (p *Provider) Inflight() int { return p.slot.inflight() }

// Start resolves the model, waits for the device and loads an engine.
func (p *Provider) Start(ctx context.Context, onProgress func(float64)) (generation.Generator, error) {
	if onProgress == nil {
		onProgress = func(float64) {}
	}
	m, err := registry.Resolve(p.cfg.Models, p.cfg.ModelID)
	if err != nil {
		return nil, generation.NewProviderError(generation.FailureNoModel, Name, "resolve", err)
	}
	log := zerolog.Ctx(ctx).With().Str("model", m.ID).Logger()
	ctx = log.WithContext(ctx)

	release, err := p.slot.acquire(ctx)
	if err != nil {
		if IsTooBusy(err) {
			return nil, generation.NewProviderError(generation.FailureBusy, Name, "admit", err)
		}
		return nil, generation.Classify(ctx, err)
	}
	eng, err := p.load(ctx, m.Path, onProgress)
	if err != nil {
		release()
		return nil, err
	}
	return &generator{eng: eng, release: release}, nil
}

func (p *Provider) load(ctx context.Context, path string, onProgress func(float64)) (Engine, error) {
	log := zerolog.Ctx(ctx)
	if p.cfg.Accelerate && p.cfg.Accelerated != nil {
		start := time.Now()
		eng, err := p.cfg.Accelerated.Start(ctx, path, onProgress)
		if err == nil {
			log.Info().Str("runtime", p.cfg.Accelerated.Name()).Dur("dur", time.Since(start)).Msg("model loaded")
			return eng, nil
		}
		if ctx.Err() != nil {
			return nil, generation.Interrupted(ctx.Err())
		}
		fallbacksTotal.Inc()
		log.Warn().Err(err).Str("runtime", p.cfg.Accelerated.Name()).Msg("accelerated start failed; using cpu")
		onProgress(0)
	}
	if p.cfg.CPU == nil {
		return nil, generation.NewProviderError(generation.FailureUnavailable, Name, "start", errors.New("no local runtime available"))
	}
	start := time.Now()
	eng, err := p.cfg.CPU.Start(ctx, path, onProgress)
	if err != nil {
		if ctx.Err() != nil {
			return nil, generation.Interrupted(ctx.Err())
		}
		return nil, generation.NewProviderError(generation.FailureUnavailable, Name, "start", err)
	}
	log.Info().Str("runtime", p.cfg.CPU.Name()).Dur("dur", time.Since(start)).Msg("model loaded")
	return eng, nil
}

// generator adapts an Engine's token stream to cumulative updates and
// releases the device on Close.
type generator struct {
	eng     Engine
	release func()
	once    sync.Once
	err     error
}

func (g *generator) Generate(ctx context.Context, messages []generation.Message, params generation.Params, onUpdate generation.UpdateFunc) (string, error) {
	if err := generation.CheckInterrupted(ctx); err != nil {
		return "", err
	}
	var sb strings.Builder
	text, err := g.eng.Generate(ctx, messages, params, func(tok string) error {
		if err := ctx.Err(); err != nil {
			return generation.Interrupted(err)
		}
		if tok == "" {
			return nil
		}
		sb.WriteString(tok)
		if onUpdate != nil {
			onUpdate(sb.String())
		}
		return nil
	})
	if text == "" {
		text = sb.String()
	}
	if err != nil {
		if generation.IsInterrupted(err) {
			return text, err
		}
		if ctx.Err() != nil {
			return text, generation.Interrupted(ctx.Err())
		}
		return text, generation.NewProviderError(generation.FailureTransport, Name, "generate", err)
	}
	return text, nil
}

func (g *generator) Close() error {
	g.once.Do(func() {
		g.err = g.eng.Close()
		g.release()
	})
	return g.err
}
