package manager

import (
	"sort"
	"time"

	"answerd/pkg/types"
)

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	resp := types.StatusResponse{
		DefaultProvider: m.cfg.DefaultProvider,
		Providers:       m.Providers(),
		Sessions:        make([]types.SessionStatus, 0, len(entries)),
		Inflight:        len(m.queueCh),
		MaxSessions:     cap(m.runCh),
		UptimeSeconds:   int64(time.Since(m.startTime).Seconds()),
		ServerTimeUnix:  time.Now().Unix(),
		SessionsTotal:   m.sessionsTotal.Load(),
		EvictionsTotal:  m.evictionsTotal.Load(),
	}
	for _, e := range entries {
		st := statusOf(e)
		if !e.s.Snapshot().State.Terminal() {
			resp.Active++
		}
		resp.Sessions = append(resp.Sessions, st)
	}
	sort.Slice(resp.Sessions, func(i, j int) bool {
		return resp.Sessions[i].CreatedUnix > resp.Sessions[j].CreatedUnix
	})
	return resp
}
