package manager

import (
	"time"

	"answerd/internal/generation"
	"answerd/internal/search"
	"answerd/pkg/types"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultMaxSessions       = 4
	defaultMaxQueueDepth     = 32
	defaultMaxWait           = 30 * time.Second
	defaultRetain            = 64
	defaultResultsToConsider = 6
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	// Providers by kind (local, openai, internal, horde).
	Providers       map[string]generation.Provider
	DefaultProvider string
	// Searcher runs the web search for each query; nil disables search.
	Searcher search.Searcher
	// ResultsToConsider is the default result count fed to the prompt. Negative
	// disables search by default; 0 selects the package default.
	ResultsToConsider int
	// SystemPrompt is a text/template; empty selects the built-in prompt.
	SystemPrompt     string
	Params           generation.Params
	ThrottleInterval time.Duration
	// MaxSessions bounds concurrently running sessions; MaxQueueDepth and
	// MaxWait bound callers waiting for a slot.
	MaxSessions   int
	MaxQueueDepth int
	MaxWait       time.Duration
	// Retain is how many finished sessions stay queryable.
	Retain int
	// Consent gates model loading for providers that load weights.
	Consent generation.DownloadConsent
	// Models is the local registry exposed by ListModels.
	Models    []types.Model
	Publisher generation.EventPublisher
}

func (c *ManagerConfig) applyDefaults() {
	if c.MaxSessions <= 0 {
		c.MaxSessions = defaultMaxSessions
	}
	if c.MaxQueueDepth <= 0 {
		c.MaxQueueDepth = defaultMaxQueueDepth
	}
	if c.MaxQueueDepth < c.MaxSessions {
		c.MaxQueueDepth = c.MaxSessions
	}
	if c.MaxWait <= 0 {
		c.MaxWait = defaultMaxWait
	}
	if c.Retain <= 0 {
		c.Retain = defaultRetain
	}
	if c.ResultsToConsider == 0 {
		c.ResultsToConsider = defaultResultsToConsider
	}
	if c.ResultsToConsider < 0 {
		c.ResultsToConsider = 0
	}
	if c.Params == (generation.Params{}) {
		c.Params = generation.DefaultParams()
	}
	if c.Publisher == nil {
		c.Publisher = generation.NoopPublisher{}
	}
}
