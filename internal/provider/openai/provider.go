// Package openai implements the single-endpoint provider against any
// OpenAI-compatible chat completions API, rotating through untried models
// when a model errors.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"answerd/internal/generation"
)

// MaxAttempts bounds model rotation within one Generate call.
const MaxAttempts = 5

// Name is the provider kind used in configuration; GatewayName is the
// internal-gateway variant.
const (
	Name        = "openai"
	GatewayName = "internal"
)

// TokenSource issues bearer tokens. Token is called once per attempt.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// Config configures the provider.
type Config struct {
	// BaseURL is the API root including the version segment, e.g.
	// https://api.openai.com/v1. Empty selects the go-openai default.
	BaseURL string
	APIKey  string
	// Model is tried first; empty picks a random listed model.
	Model       string
	MaxAttempts int
	HTTPClient  *http.Client
}

// Provider streams chat completions with model rotation retry.
type Provider struct {
	name   string
	cfg    Config
	tokens TokenSource

	mu   sync.Mutex
	intn func(n int) int
}

// New constructs the single-endpoint provider.
func New(cfg Config) *Provider {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = MaxAttempts
	}
	return &Provider{name: Name, cfg: cfg, intn: rand.IntN}
}

// NewGateway constructs the internal-gateway variant: identical behaviour
// with a fresh bearer token from ts on every attempt.
func NewGateway(cfg Config, ts TokenSource) *Provider {
	p := New(cfg)
	p.name = GatewayName
	p.tokens = ts
	return p
}

func (p *Provider) Name() string { return p.name }

// Start is a no-op for a remote endpoint.
func (p *Provider) Start(ctx context.Context, onProgress func(float64)) (generation.Generator, error) {
	if err := generation.CheckInterrupted(ctx); err != nil {
		return nil, err
	}
	return &generator{p: p}, nil
}

// Models lists the models the endpoint offers.
func (p *Provider) Models(ctx context.Context) ([]string, error) {
	c, err := p.client(ctx)
	if err != nil {
		return nil, err
	}
	list, err := c.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		if m.ID != "" {
			ids = append(ids, m.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (p *Provider) client(ctx context.Context) (*openai.Client, error) {
	key := p.cfg.APIKey
	if p.tokens != nil {
		tok, err := p.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch token: %w", err)
		}
		key = tok
	}
	cfg := openai.DefaultConfig(key)
	if p.cfg.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(p.cfg.BaseURL, "/")
	}
	if p.cfg.HTTPClient != nil {
		cfg.HTTPClient = p.cfg.HTTPClient
	}
	return openai.NewClientWithConfig(cfg), nil
}

// pick returns a random model not in tried, or "" when none is left.
func (p *Provider) pick(models []string, tried map[string]bool) string {
	var left []string
	for _, m := range models {
		if !tried[m] {
			left = append(left, m)
		}
	}
	if len(left) == 0 {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return left[p.intn(len(left))]
}

type generator struct{ p *Provider }

func (g *generator) Close() error { return nil }

func (g *generator) Generate(ctx context.Context, messages []generation.Message, params generation.Params, onUpdate generation.UpdateFunc) (string, error) {
	p := g.p
	log := zerolog.Ctx(ctx)
	tried := make(map[string]bool)
	var models []string
	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		if err := generation.CheckInterrupted(ctx); err != nil {
			return "", err
		}
		model := p.cfg.Model
		if attempt > 1 || model == "" {
			if models == nil {
				list, err := p.Models(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return "", generation.Interrupted(ctx.Err())
					}
					return "", generation.NewProviderError(generation.FailureModelsUnavailable, p.name, "list models", err)
				}
				models = list
			}
			model = p.pick(models, tried)
			if model == "" {
				if attempt == 1 {
					return "", generation.NewProviderError(generation.FailureNoModel, p.name, "pick model", errors.New("endpoint offers no models"))
				}
				return "", generation.NewProviderError(generation.FailureNoModel, p.name, "pick model",
					fmt.Errorf("no untried model left after %d attempts: %w", attempt-1, lastErr))
			}
		}
		tried[model] = true

		text, err := p.stream(ctx, model, messages, params, onUpdate)
		if err == nil {
			attemptsTotal.WithLabelValues(p.name, "success").Inc()
			log.Debug().Str("model", model).Int("attempt", attempt).Msg("completion done")
			return text, nil
		}
		if ctx.Err() != nil || generation.IsInterrupted(err) {
			attemptsTotal.WithLabelValues(p.name, "interrupted").Inc()
			return text, generation.Interrupted(ctx.Err())
		}
		attemptsTotal.WithLabelValues(p.name, "error").Inc()
		log.Warn().Err(err).Str("model", model).Int("attempt", attempt).Msg("model failed; rotating")
		lastErr = err
	}
	return "", generation.NewProviderError(generation.FailureRetriesExhausted, p.name, "generate",
		fmt.Errorf("gave up after %d attempts: %w", p.cfg.MaxAttempts, lastErr))
}

func (p *Provider) stream(ctx context.Context, model string, messages []generation.Message, params generation.Params, onUpdate generation.UpdateFunc) (string, error) {
	c, err := p.client(ctx)
	if err != nil {
		return "", err
	}
	msgs := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		msgs[i] = openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	}
	req := openai.ChatCompletionRequest{
		Model:            model,
		Messages:         msgs,
		Stream:           true,
		MaxTokens:        params.MaxTokens,
		Temperature:      params.Temperature,
		TopP:             params.TopP,
		FrequencyPenalty: params.FrequencyPenalty,
		PresencePenalty:  params.PresencePenalty,
	}
	stream, err := c.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return sb.String(), err
		}
		if err := ctx.Err(); err != nil {
			return sb.String(), generation.Interrupted(err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if frag := resp.Choices[0].Delta.Content; frag != "" {
			sb.WriteString(frag)
			if onUpdate != nil {
				onUpdate(sb.String())
			}
		}
	}
}
