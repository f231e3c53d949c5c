package manager

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"answerd/internal/prompt"
	"answerd/pkg/types"
)

// Manager owns generation sessions.
type Manager struct {
	cfg     ManagerConfig
	builder *prompt.Builder

	mu       sync.RWMutex
	sessions map[string]*entry
	closed   bool

	runCh   chan struct{} // buffered: run slots
	queueCh chan struct{} // buffered: queue slots
	wg      sync.WaitGroup

	startTime      time.Time
	sessionsTotal  atomic.Uint64
	evictionsTotal atomic.Uint64
}

// New constructs a Manager from ManagerConfig.
func New(cfg ManagerConfig) (*Manager, error) {
	cfg.applyDefaults()
	b, err := prompt.NewBuilder(cfg.SystemPrompt)
	if err != nil {
		return nil, err
	}
	return &Manager{
		cfg:       cfg,
		builder:   b,
		sessions:  make(map[string]*entry),
		runCh:     make(chan struct{}, cfg.MaxSessions),
		queueCh:   make(chan struct{}, cfg.MaxQueueDepth),
		startTime: time.Now(),
	}, nil
}

// Ready reports whether the manager accepts sessions.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false
	}
	_, ok := m.cfg.Providers[m.cfg.DefaultProvider]
	return ok
}

// ListModels returns a copy of the local registry.
func (m *Manager) ListModels() []types.Model {
	out := make([]types.Model, len(m.cfg.Models))
	copy(out, m.cfg.Models)
	return out
}

// Providers returns the configured provider kinds, sorted.
func (m *Manager) Providers() []string {
	out := make([]string, 0, len(m.cfg.Providers))
	for k := range m.cfg.Providers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Close stops accepting sessions, interrupts running ones and waits for them.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	running := make([]*entry, 0, len(m.sessions))
	for _, e := range m.sessions {
		running = append(running, e)
	}
	m.mu.Unlock()
	for _, e := range running {
		e.s.Interrupt()
		e.cancel()
	}
	m.wg.Wait()
}
