package types

// Message is one turn of a conversation as sent over the HTTP API.
type Message struct {
	// Speaker role: user, assistant or system.
	// example: user
	Role string `json:"role" example:"user"`
	// Message text.
	// example: What is the tallest mountain on Mars?
	Content string `json:"content" example:"What is the tallest mountain on Mars?"`
}

// GenerateRequest starts a generation session.
type GenerateRequest struct {
	// Query to answer. A web search for it runs concurrently with model preparation.
	// Optional when Messages carries a follow-up conversation.
	// example: What is the tallest mountain on Mars?
	Query string `json:"query,omitempty" example:"What is the tallest mountain on Mars?"`
	// Prior conversation (oldest first). Used for follow-up chat.
	Messages []Message `json:"messages,omitempty"`
	// Provider kind override: local, openai, internal or horde. Empty uses the server default.
	// example: horde
	Provider string `json:"provider,omitempty" example:"horde"`
	// Number of search results to feed the model. Nil uses the server default; 0 disables search.
	// example: 6
	ResultsToConsider *int `json:"results_to_consider,omitempty" example:"6"`
}

// SessionCreated is returned by POST /sessions.
type SessionCreated struct {
	// Session identifier.
	// example: 6f1c2d1e-5e0b-4a55-9c57-0a4b8e6e2f10
	ID string `json:"id" example:"6f1c2d1e-5e0b-4a55-9c57-0a4b8e6e2f10"`
}

// SessionStatus is a snapshot of one session as exposed to a UI.
type SessionStatus struct {
	// Session identifier.
	ID string `json:"id"`
	// Provider serving the session.
	// example: openai
	Provider string `json:"provider" example:"openai"`
	// Generation state (idle, loadingModel, awaitingSearchResults, preparingToGenerate,
	// generating, interrupted, failed, completed, ...).
	// example: generating
	State string `json:"state" example:"generating"`
	// Throttled cumulative response text.
	Response string `json:"response"`
	// Model loading progress, 0-100.
	// example: 42
	Progress float64 `json:"progress" example:"42"`
	// Failure message when State is failed.
	Error string `json:"error,omitempty"`
	// Creation time (unix seconds).
	CreatedUnix int64 `json:"created_unix"`
}

// StreamLine is one NDJSON line of a session stream.
type StreamLine struct {
	State    string  `json:"state"`
	Text     string  `json:"text"`
	Progress float64 `json:"progress,omitempty"`
	Error    string  `json:"error,omitempty"`
	Done     bool    `json:"done,omitempty"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// List of available local models.
	Models []Model `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Default provider kind.
	// example: local
	DefaultProvider string `json:"default_provider" example:"local"`
	// Configured provider kinds.
	Providers []string `json:"providers"`
	// Sessions currently retained by the server, newest first.
	Sessions []SessionStatus `json:"sessions"`
	// Sessions that have not reached a terminal state.
	// example: 1
	Active int `json:"active" example:"1"`
	// Sessions waiting for a generation slot plus those running.
	// example: 1
	Inflight int `json:"inflight" example:"1"`
	// Maximum concurrently running sessions.
	// example: 4
	MaxSessions int `json:"max_sessions" example:"4"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
	// Total number of sessions started.
	// example: 12
	SessionsTotal uint64 `json:"sessions_total" example:"12"`
	// Total number of retained sessions evicted.
	// example: 5
	EvictionsTotal uint64 `json:"evictions_total" example:"5"`
}
