package generation

import "sync"

// MemoryPublisher stores events in-memory for tests and debugging endpoints.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

func (p *MemoryPublisher) Publish(e Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// States returns the "to" field of every state event in publish order.
func (p *MemoryPublisher) States() []State {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []State
	for _, e := range p.events {
		if e.Name != "state" {
			continue
		}
		if s, ok := e.Fields["to"].(State); ok {
			out = append(out, s)
		}
	}
	return out
}
