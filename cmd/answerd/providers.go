package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"answerd/internal/common/fsutil"
	"answerd/internal/config"
	"answerd/internal/generation"
	"answerd/internal/manager"
	"answerd/internal/provider/horde"
	"answerd/internal/provider/local"
	"answerd/internal/provider/openai"
	"answerd/internal/registry"
	"answerd/internal/search"
	"answerd/pkg/types"
)

// buildProviders constructs every configured provider. The local provider is
// always present; remote ones only when their section is filled in.
func buildProviders(cfg config.Config, log zerolog.Logger) (map[string]generation.Provider, []types.Model) {
	models, err := registry.LoadDir(cfg.Local.ModelsDir)
	if err != nil {
		log.Warn().Err(err).Str("dir", cfg.Local.ModelsDir).Msg("no local models")
	}
	lc := cfg.Local
	providers := map[string]generation.Provider{
		local.Name: local.New(local.Config{
			Models:     models,
			ModelID:    lc.Model,
			Accelerate: lc.Accelerate,
			Accelerated: local.NewAccelerated(local.AcceleratedOptions{
				CtxSize:   lc.CtxSize,
				Threads:   lc.Threads,
				GPULayers: lc.GPULayers,
			}),
			CPU: local.NewCPU(local.ServerOptions{
				Bin:            lc.ServerBin,
				PortStart:      lc.PortStart,
				PortEnd:        lc.PortEnd,
				CtxSize:        lc.CtxSize,
				Threads:        lc.Threads,
				ExtraArgs:      lc.ServerExtraArgs,
				ReadyTimeout:   ms(lc.ReadyTimeoutMS),
				RequestTimeout: ms(lc.RequestTimeoutMS),
			}),
			MaxQueueDepth: lc.MaxQueueDepth,
			MaxWait:       ms(lc.MaxWaitMS),
		}),
	}
	if cfg.OpenAI.Enabled() {
		providers[openai.Name] = openai.New(openaiConfig(cfg.OpenAI))
	}
	if cfg.Internal.Enabled() {
		providers[openai.GatewayName] = openai.NewGateway(openaiConfig(cfg.Internal), tokenSource(cfg.Internal))
	}
	if cfg.Horde.Enabled {
		h := cfg.Horde
		providers[horde.Name] = horde.New(horde.Config{
			BaseURL:          h.BaseURL,
			APIKey:           h.APIKey,
			ClientAgent:      h.ClientAgent,
			Models:           h.Models,
			Workers:          h.Workers,
			PollInterval:     ms(h.PollMS),
			Redundancy:       h.Redundancy,
			MaxLength:        h.MaxLength,
			MaxContextLength: h.MaxContextLength,
		})
	}
	return providers, models
}

func openaiConfig(c config.OpenAI) openai.Config {
	return openai.Config{BaseURL: c.BaseURL, APIKey: c.APIKey, Model: c.Model, MaxAttempts: c.MaxAttempts}
}

// tokenSource re-reads the token file on every attempt so rotated
// credentials are picked up; without a file the static key is used.
func tokenSource(c config.OpenAI) openai.TokenSource {
	return openai.TokenFunc(func(ctx context.Context) (string, error) {
		if c.TokenFile == "" {
			if c.APIKey == "" {
				return "", fmt.Errorf("internal gateway: no token_file or api_key configured")
			}
			return c.APIKey, nil
		}
		p, err := fsutil.ExpandHome(c.TokenFile)
		if err != nil {
			return "", err
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	})
}

// newManager wires providers, search and generation settings into a Manager.
func newManager(cfg config.Config, log zerolog.Logger, consent generation.DownloadConsent) (*manager.Manager, error) {
	providers, models := buildProviders(cfg, log)
	var searcher search.Searcher
	if cfg.Search.URL != "" {
		searcher = search.NewSearXNG(cfg.Search.URL, 0, ms(cfg.Search.TimeoutMS))
	}
	results := cfg.Search.ResultsToConsider
	if results == 0 {
		// 0 means "no search" in config; the manager treats 0 as unset.
		results = -1
	}
	g := cfg.Generation
	return manager.New(manager.ManagerConfig{
		Providers:         providers,
		DefaultProvider:   g.DefaultProvider,
		Searcher:          searcher,
		ResultsToConsider: results,
		SystemPrompt:      g.SystemPrompt,
		Params: generation.Params{
			Temperature:      g.Temperature,
			TopP:             g.TopP,
			MinP:             g.MinP,
			FrequencyPenalty: g.FrequencyPenalty,
			PresencePenalty:  g.PresencePenalty,
			MaxTokens:        g.MaxTokens,
		},
		ThrottleInterval: ms(g.ThrottleMS),
		MaxSessions:      g.MaxSessions,
		MaxQueueDepth:    g.MaxQueueDepth,
		MaxWait:          ms(g.MaxWaitMS),
		Retain:           g.Retain,
		Consent:          consent,
		Models:           models,
	})
}
