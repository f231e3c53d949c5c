package config

import (
	"fmt"
	"strings"
)

// Provider kinds accepted in generation.default_provider.
var providerKinds = []string{"local", "openai", "internal", "horde"}

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by Default() values.
type Config struct {
	Server     Server     `json:"server" yaml:"server" toml:"server"`
	Search     Search     `json:"search" yaml:"search" toml:"search"`
	Generation Generation `json:"generation" yaml:"generation" toml:"generation"`
	Local      Local      `json:"local" yaml:"local" toml:"local"`
	OpenAI     OpenAI     `json:"openai" yaml:"openai" toml:"openai"`
	Internal   OpenAI     `json:"internal" yaml:"internal" toml:"internal"`
	Horde      Horde      `json:"horde" yaml:"horde" toml:"horde"`
}

// Server configures the HTTP API.
type Server struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr"`
	// CORSOrigins enables CORS for the listed origins; empty disables it.
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	LogLevel    string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogJSON     bool     `json:"log_json" yaml:"log_json" toml:"log_json"`
}

// Search configures the SearXNG collaborator.
type Search struct {
	// URL of a SearXNG instance; empty disables search.
	URL string `json:"url" yaml:"url" toml:"url"`
	// ResultsToConsider is the default number of results fed to the prompt.
	// Negative disables search by default.
	ResultsToConsider int `json:"results_to_consider" yaml:"results_to_consider" toml:"results_to_consider"`
	TimeoutMS         int `json:"timeout_ms" yaml:"timeout_ms" toml:"timeout_ms"`
}

// Generation configures sessions.
type Generation struct {
	DefaultProvider string `json:"default_provider" yaml:"default_provider" toml:"default_provider"`
	// SystemPrompt is a text/template with .Date, .Results and .NoResults.
	SystemPrompt     string  `json:"system_prompt" yaml:"system_prompt" toml:"system_prompt"`
	Temperature      float32 `json:"temperature" yaml:"temperature" toml:"temperature"`
	TopP             float32 `json:"top_p" yaml:"top_p" toml:"top_p"`
	MinP             float32 `json:"min_p" yaml:"min_p" toml:"min_p"`
	FrequencyPenalty float32 `json:"frequency_penalty" yaml:"frequency_penalty" toml:"frequency_penalty"`
	PresencePenalty  float32 `json:"presence_penalty" yaml:"presence_penalty" toml:"presence_penalty"`
	MaxTokens        int     `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
	ThrottleMS       int     `json:"throttle_ms" yaml:"throttle_ms" toml:"throttle_ms"`
	MaxSessions      int     `json:"max_sessions" yaml:"max_sessions" toml:"max_sessions"`
	MaxQueueDepth    int     `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	MaxWaitMS        int     `json:"max_wait_ms" yaml:"max_wait_ms" toml:"max_wait_ms"`
	Retain           int     `json:"retain" yaml:"retain" toml:"retain"`
}

// Local configures the on-device provider.
type Local struct {
	ModelsDir string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	Model     string `json:"model" yaml:"model" toml:"model"`
	// Accelerate tries the in-process GPU runtime before llama-server.
	Accelerate bool `json:"accelerate" yaml:"accelerate" toml:"accelerate"`
	GPULayers  int  `json:"gpu_layers" yaml:"gpu_layers" toml:"gpu_layers"`
	CtxSize    int  `json:"ctx_size" yaml:"ctx_size" toml:"ctx_size"`
	Threads    int  `json:"threads" yaml:"threads" toml:"threads"`
	// ServerBin is the llama-server executable used by the CPU runtime.
	ServerBin        string   `json:"server_bin" yaml:"server_bin" toml:"server_bin"`
	ServerExtraArgs  []string `json:"server_extra_args" yaml:"server_extra_args" toml:"server_extra_args"`
	PortStart        int      `json:"port_start" yaml:"port_start" toml:"port_start"`
	PortEnd          int      `json:"port_end" yaml:"port_end" toml:"port_end"`
	ReadyTimeoutMS   int      `json:"ready_timeout_ms" yaml:"ready_timeout_ms" toml:"ready_timeout_ms"`
	RequestTimeoutMS int      `json:"request_timeout_ms" yaml:"request_timeout_ms" toml:"request_timeout_ms"`
	MaxQueueDepth    int      `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	MaxWaitMS        int      `json:"max_wait_ms" yaml:"max_wait_ms" toml:"max_wait_ms"`
}

// OpenAI configures an OpenAI-compatible endpoint. The internal gateway uses
// the same shape; its bearer token is re-read from TokenFile per attempt.
type OpenAI struct {
	BaseURL     string `json:"base_url" yaml:"base_url" toml:"base_url"`
	APIKey      string `json:"api_key" yaml:"api_key" toml:"api_key"`
	TokenFile   string `json:"token_file" yaml:"token_file" toml:"token_file"`
	Model       string `json:"model" yaml:"model" toml:"model"`
	MaxAttempts int    `json:"max_attempts" yaml:"max_attempts" toml:"max_attempts"`
}

// Enabled reports whether the section configures an endpoint.
func (o OpenAI) Enabled() bool { return strings.TrimSpace(o.BaseURL) != "" }

// Horde configures the AI Horde provider.
type Horde struct {
	Enabled          bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	BaseURL          string   `json:"base_url" yaml:"base_url" toml:"base_url"`
	APIKey           string   `json:"api_key" yaml:"api_key" toml:"api_key"`
	ClientAgent      string   `json:"client_agent" yaml:"client_agent" toml:"client_agent"`
	Models           []string `json:"models" yaml:"models" toml:"models"`
	Workers          []string `json:"workers" yaml:"workers" toml:"workers"`
	PollMS           int      `json:"poll_ms" yaml:"poll_ms" toml:"poll_ms"`
	Redundancy       int      `json:"redundancy" yaml:"redundancy" toml:"redundancy"`
	MaxLength        int      `json:"max_length" yaml:"max_length" toml:"max_length"`
	MaxContextLength int      `json:"max_context_length" yaml:"max_context_length" toml:"max_context_length"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: Server{Addr: ":8080", LogLevel: "info"},
		Search: Search{ResultsToConsider: 6, TimeoutMS: 10000},
		Generation: Generation{
			DefaultProvider:  "local",
			Temperature:      0.35,
			TopP:             0.95,
			MinP:             0.1,
			FrequencyPenalty: 0.5,
			PresencePenalty:  0.3,
			MaxTokens:        2048,
			ThrottleMS:       83,
			MaxSessions:      4,
			MaxQueueDepth:    32,
			MaxWaitMS:        30000,
			Retain:           64,
		},
		Local: Local{
			ModelsDir:        "~/models/llm",
			Accelerate:       true,
			ServerBin:        "llama-server",
			CtxSize:          4096,
			PortStart:        31000,
			PortEnd:          31999,
			ReadyTimeoutMS:   120000,
			RequestTimeoutMS: 300000,
			MaxQueueDepth:    8,
			MaxWaitMS:        60000,
		},
		OpenAI:   OpenAI{MaxAttempts: 5},
		Internal: OpenAI{MaxAttempts: 5},
		Horde:    Horde{PollMS: 1000, Redundancy: 2, MaxLength: 512, MaxContextLength: 4096},
	}
}

// Validate checks provider kinds and numeric ranges.
func (c Config) Validate() error {
	if !validKind(c.Generation.DefaultProvider) {
		return fmt.Errorf("generation.default_provider: unknown provider %q (want one of %s)",
			c.Generation.DefaultProvider, strings.Join(providerKinds, ", "))
	}
	switch c.Generation.DefaultProvider {
	case "openai":
		if !c.OpenAI.Enabled() {
			return fmt.Errorf("default provider openai requires openai.base_url")
		}
	case "internal":
		if !c.Internal.Enabled() {
			return fmt.Errorf("default provider internal requires internal.base_url")
		}
	case "horde":
		if !c.Horde.Enabled {
			return fmt.Errorf("default provider horde requires horde.enabled")
		}
	}
	g := c.Generation
	if g.Temperature < 0 || g.TopP < 0 || g.TopP > 1 || g.MinP < 0 || g.MinP > 1 {
		return fmt.Errorf("generation: sampling parameters out of range")
	}
	for name, v := range map[string]int{
		"generation.max_tokens":      g.MaxTokens,
		"generation.throttle_ms":     g.ThrottleMS,
		"generation.max_sessions":    g.MaxSessions,
		"generation.max_queue_depth": g.MaxQueueDepth,
		"generation.max_wait_ms":     g.MaxWaitMS,
		"generation.retain":          g.Retain,
		"openai.max_attempts":        c.OpenAI.MaxAttempts,
		"internal.max_attempts":      c.Internal.MaxAttempts,
		"horde.redundancy":           c.Horde.Redundancy,
		"local.port_start":           c.Local.PortStart,
		"local.port_end":             c.Local.PortEnd,
	} {
		if v < 0 {
			return fmt.Errorf("%s must be >= 0, got %d", name, v)
		}
	}
	if c.Local.PortStart > 0 && c.Local.PortEnd > 0 && c.Local.PortEnd < c.Local.PortStart {
		return fmt.Errorf("local.port_end (%d) < local.port_start (%d)", c.Local.PortEnd, c.Local.PortStart)
	}
	if c.OpenAI.MaxAttempts > 5 || c.Internal.MaxAttempts > 5 {
		return fmt.Errorf("max_attempts must not exceed 5")
	}
	return nil
}

func validKind(k string) bool {
	for _, v := range providerKinds {
		if v == k {
			return true
		}
	}
	return false
}
