package events

import (
	"context"
	"sync"
)

// MemoryBus delivers events synchronously within the process, in publish order.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string]map[*memorySub]struct{}
	closed bool
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string]map[*memorySub]struct{})}
}

type memorySub struct {
	bus     *MemoryBus
	subject string
	h       Handler
}

func (s *memorySub) Unsubscribe() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if set, ok := s.bus.subs[s.subject]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(s.bus.subs, s.subject)
		}
	}
	return nil
}

func (b *MemoryBus) Publish(_ context.Context, subject string, v any) error {
	data, err := encode(subject, v)
	if err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil
	}
	for s := range b.subs[subject] {
		s.h(subject, data)
	}
	return nil
}

func (b *MemoryBus) Subscribe(subject string, h Handler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := &memorySub{bus: b, subject: subject, h: h}
	set, ok := b.subs[subject]
	if !ok {
		set = make(map[*memorySub]struct{})
		b.subs[subject] = set
	}
	set[s] = struct{}{}
	return s, nil
}

// Subscribers returns how many handlers are registered for subject.
func (b *MemoryBus) Subscribers(subject string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[subject])
}

func (b *MemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = make(map[string]map[*memorySub]struct{})
}
