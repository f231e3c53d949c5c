package manager

import "sort"

// evict drops the oldest finished sessions beyond the retention limit.
// Running sessions are never evicted.
func (m *Manager) evict() {
	m.mu.Lock()
	defer m.mu.Unlock()
	var finished []*entry
	for _, e := range m.sessions {
		if !e.finished.IsZero() {
			finished = append(finished, e)
		}
	}
	over := len(finished) - m.cfg.Retain
	if over <= 0 {
		return
	}
	sort.Slice(finished, func(i, j int) bool { return finished[i].finished.Before(finished[j].finished) })
	for _, e := range finished[:over] {
		delete(m.sessions, e.s.ID())
		m.evictionsTotal.Add(1)
	}
}
