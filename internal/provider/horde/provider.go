// Package horde implements the distributed provider on AI Horde. Unpinned
// requests race redundant jobs and keep the first one to produce text.
package horde

import (
	"context"
	"errors"
	"fmt"
	"time"

	"answerd/internal/generation"
	"answerd/internal/prompt"
)

// Name is the provider kind used in configuration.
const Name = "horde"

// Config configures the provider.
type Config struct {
	BaseURL     string
	APIKey      string
	ClientAgent string
	// Models and Workers pin the request; either one disables racing.
	Models  []string
	Workers []string
	// PollInterval is the status polling period (1s when 0).
	PollInterval time.Duration
	// Redundancy is the number of jobs raced when unpinned (2 when 0).
	Redundancy       int
	MaxLength        int
	MaxContextLength int
	ConnectTimeout   time.Duration
}

// Provider generates text on AI Horde.
type Provider struct {
	cfg    Config
	client *Client
}

// New constructs the distributed provider.
func New(cfg Config) *Provider {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.Redundancy <= 0 {
		cfg.Redundancy = 2
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = 512
	}
	if cfg.MaxContextLength <= 0 {
		cfg.MaxContextLength = 4096
	}
	if cfg.ClientAgent == "" {
		cfg.ClientAgent = "answerd:1:anonymous"
	}
	return &Provider{cfg: cfg, client: NewClient(cfg.BaseURL, cfg.APIKey, cfg.ClientAgent, cfg.ConnectTimeout)}
}

func (p *Provider) Name() string { return Name }

// Pinned reports whether requests go to a single job.
func (p *Provider) Pinned() bool { return len(p.cfg.Models) > 0 || len(p.cfg.Workers) > 0 }

// Start is a no-op for a remote backend.
func (p *Provider) Start(ctx context.Context, onProgress func(float64)) (generation.Generator, error) {
	if err := generation.CheckInterrupted(ctx); err != nil {
		return nil, err
	}
	return &generator{p: p}, nil
}

func (p *Provider) input(messages []generation.Message, params generation.Params) GenerationInput {
	maxLen := p.cfg.MaxLength
	if params.MaxTokens > 0 && params.MaxTokens < maxLen {
		maxLen = params.MaxTokens
	}
	return GenerationInput{
		Prompt: prompt.ChatML(messages),
		Params: InputParams{
			N:                1,
			MaxContextLength: p.cfg.MaxContextLength,
			MaxLength:        maxLen,
			Temperature:      params.Temperature,
			TopP:             params.TopP,
			MinP:             params.MinP,
			StopSequence:     prompt.StopSequences,
		},
		Models:  p.cfg.Models,
		Workers: p.cfg.Workers,
	}
}

type generator struct{ p *Provider }

func (g *generator) Close() error { return nil }

func (g *generator) Generate(ctx context.Context, messages []generation.Message, params generation.Params, onUpdate generation.UpdateFunc) (string, error) {
	if err := generation.CheckInterrupted(ctx); err != nil {
		return "", err
	}
	if onUpdate == nil {
		onUpdate = func(string) {}
	}
	in := g.p.input(messages, params)
	n := g.p.cfg.Redundancy
	if g.p.Pinned() {
		n = 1
	}
	return g.p.run(ctx, in, n, onUpdate)
}

var errNotPossible = errors.New("no worker can serve this request")

func faulted(op string, err error) error {
	return generation.NewProviderError(generation.FailureFaulted, Name, op, err)
}

func startFailed(n int, err error) error {
	return generation.NewProviderError(generation.FailureTransport, Name, "submit",
		fmt.Errorf("all %d jobs failed to start: %w", n, err))
}
