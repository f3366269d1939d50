package sim

import "sync"

// Signal is a minimal synchronous event source. Notify invokes every
// registered listener on the calling goroutine, in registration order is not
// guaranteed. Listen returns a cancel func that must be called on teardown
// so listeners do not leak across sessions.
type Signal[T any] struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]func(T)
}

// Listen registers fn and returns its unsubscribe func. The returned func is
// idempotent.
func (s *Signal[T]) Listen(fn func(T)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listeners == nil {
		s.listeners = make(map[int]func(T))
	}
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Notify calls every registered listener with v, synchronously.
func (s *Signal[T]) Notify(v T) {
	s.mu.Lock()
	fns := make([]func(T), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// ComponentChange identifies one component mutation on one entity.
type ComponentChange struct {
	Entity    *Entity
	Component Component
}

// Selection is the local build-tool state (what the user is about to place).
type Selection struct {
	Code     string
	Variant  string
	Rotation int
}

// Events is the bundle of change notifications the simulation engine raises.
// All notifications fire synchronously, in the same call that performed the
// mutation.
type Events struct {
	EntityAdded      Signal[*Entity]
	EntityRemoved    Signal[*Entity]
	ComponentChanged Signal[ComponentChange]
	UpgradeUnlocked  Signal[string]
	SelectionChanged Signal[Selection]
}
