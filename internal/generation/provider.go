package generation

import "context"

// Role is the speaker of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation. Providers receive a slice they must
// not mutate.
type Message struct {
	Role    Role
	Content string
}

// Params are sampling parameters. Passed by value; never changed mid-stream.
type Params struct {
	Temperature      float32
	TopP             float32
	MinP             float32
	FrequencyPenalty float32
	PresencePenalty  float32
	MaxTokens        int
}

// DefaultParams returns the sampling defaults used when nothing is configured.
func DefaultParams() Params {
	return Params{
		Temperature:      0.35,
		TopP:             0.95,
		MinP:             0.1,
		FrequencyPenalty: 0.5,
		PresencePenalty:  0.3,
		MaxTokens:        2048,
	}
}

// UpdateFunc receives the cumulative text generated so far.
type UpdateFunc func(text string)

// Provider is one inference backend. Start prepares it (loading a model where
// needed) and returns a Generator owned exclusively by the caller.
type Provider interface {
	Name() string
	// Start readies the backend. onProgress receives load progress in 0..100
	// and may be called from any goroutine.
	Start(ctx context.Context, onProgress func(pct float64)) (Generator, error)
}

// Generator streams one completion.
type Generator interface {
	// Generate streams the completion of messages, calling onUpdate with the
	// cumulative text after every content-bearing chunk, and returns the final
	// text. ctx is the session's cancellation token: once it is done the
	// implementation tears down its transport and returns an error for which
	// IsInterrupted is true.
	Generate(ctx context.Context, messages []Message, params Params, onUpdate UpdateFunc) (string, error)
	// Close releases the backend. It must be safe to call on every exit path.
	Close() error
}

// ModelLoader is implemented by providers whose Start loads model weights.
type ModelLoader interface {
	LoadsModel() bool
}

// DownloadConsent decides whether a first-time model download may proceed.
type DownloadConsent interface {
	Allow(ctx context.Context) (bool, error)
}

// ConsentFunc adapts a function to DownloadConsent.
type ConsentFunc func(ctx context.Context) (bool, error)

func (f ConsentFunc) Allow(ctx context.Context) (bool, error) { return f(ctx) }
