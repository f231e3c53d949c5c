package manager

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"answerd/internal/generation"
	"answerd/internal/search"
	"answerd/pkg/types"
)

// entry is a session tracked by the manager.
type entry struct {
	s        *generation.Session
	provider string
	cancel   context.CancelFunc
	done     chan struct{}
	// set before done is closed
	text     string
	err      error
	finished time.Time
}

// Start admits and launches a session for req. The session runs detached from
// ctx (it keeps ctx's logger but not its cancellation); use Interrupt to stop
// it. Returns tooBusy when no slot frees up within MaxWait.
func (m *Manager) Start(ctx context.Context, req types.GenerateRequest) (*generation.Session, error) {
	query := strings.TrimSpace(req.Query)
	history := make([]generation.Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		role := generation.Role(strings.ToLower(strings.TrimSpace(msg.Role)))
		switch role {
		case generation.RoleUser, generation.RoleAssistant, generation.RoleSystem:
		default:
			return nil, invalidRequestError{msg: "invalid message role: " + msg.Role}
		}
		history = append(history, generation.Message{Role: role, Content: msg.Content})
	}
	if query == "" && len(history) == 0 {
		return nil, invalidRequestError{msg: "query or messages required"}
	}
	kind := req.Provider
	if kind == "" {
		kind = m.cfg.DefaultProvider
	}
	p, ok := m.cfg.Providers[kind]
	if !ok {
		return nil, providerNotFoundError{kind: kind}
	}
	n := m.cfg.ResultsToConsider
	if req.ResultsToConsider != nil {
		n = *req.ResultsToConsider
		if n < 0 {
			return nil, invalidRequestError{msg: "results_to_consider must be >= 0"}
		}
	}

	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return nil, closedError{}
	}
	release, err := m.beginSession(ctx)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	gate := generation.Gate{ResultsToConsider: n}
	if n > 0 && query != "" && m.cfg.Searcher != nil {
		gate.Search = search.Start(runCtx, m.cfg.Searcher, query)
	} else {
		gate.ResultsToConsider = 0
	}
	s := generation.NewSession(generation.SessionConfig{
		ID:               id,
		Provider:         p,
		Gate:             gate,
		Consent:          m.cfg.Consent,
		Compose:          m.builder.Compose(history, query),
		Params:           m.cfg.Params,
		ThrottleInterval: m.cfg.ThrottleInterval,
		Publisher:        m.cfg.Publisher,
	})
	e := &entry{s: s, provider: kind, cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		cancel()
		release()
		return nil, closedError{}
	}
	m.sessions[id] = e
	m.wg.Add(1)
	m.mu.Unlock()
	m.sessionsTotal.Add(1)

	go m.run(runCtx, e, release)
	zerolog.Ctx(ctx).Info().Str("session", id).Str("provider", kind).Int("results", gate.ResultsToConsider).Int("history", len(history)).Msg("session started")
	return s, nil
}

func (m *Manager) run(ctx context.Context, e *entry, release func()) {
	defer m.wg.Done()
	defer release()
	defer e.cancel()
	text, err := e.s.Run(ctx)
	m.mu.Lock()
	e.text, e.err, e.finished = text, err, time.Now()
	m.mu.Unlock()
	close(e.done)
	m.evict()
}

// Session returns a snapshot of a session.
func (m *Manager) Session(id string) (types.SessionStatus, error) {
	e, err := m.lookup(id)
	if err != nil {
		return types.SessionStatus{}, err
	}
	return statusOf(e), nil
}

// Interrupt interrupts a session. Interrupting a finished session is a no-op.
func (m *Manager) Interrupt(id string) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	e.s.Interrupt()
	return nil
}

// Wait blocks until the session has finished running and returns its text
// and outcome error.
func (m *Manager) Wait(ctx context.Context, id string) (string, error) {
	e, err := m.lookup(id)
	if err != nil {
		return "", err
	}
	select {
	case <-e.done:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return e.text, e.err
}

func (m *Manager) lookup(id string) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e := m.sessions[id]
	if e == nil {
		return nil, sessionNotFoundError{id: id}
	}
	return e, nil
}

func statusOf(e *entry) types.SessionStatus {
	snap := e.s.Snapshot()
	return types.SessionStatus{
		ID:          e.s.ID(),
		Provider:    e.provider,
		State:       string(snap.State),
		Response:    snap.Response,
		Progress:    snap.Progress,
		Error:       snap.Err,
		CreatedUnix: e.s.CreatedAt().Unix(),
	}
}
