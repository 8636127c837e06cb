package channel

import "sync"

// Slot is a mutex-guarded cell that holds a value or nothing. The zero
// value is an empty, ready-to-use slot. A Slot must not be copied.
type Slot[T any] struct {
	mu    sync.Mutex
	val   T
	set   bool
	ready chan struct{}
}

func (s *Slot[T]) readyLocked() chan struct{} {
	if s.ready == nil {
		s.ready = make(chan struct{})
	}
	return s.ready
}

// Load returns the held value and whether the slot is populated.
func (s *Slot[T]) Load() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.val, s.set
}

// Loaded reports whether the slot is populated.
func (s *Slot[T]) Loaded() bool {
	_, ok := s.Load()
	return ok
}

// Store populates the slot, replacing any previous value.
func (s *Slot[T]) Store(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.val = v
	if !s.set {
		s.set = true
		close(s.readyLocked())
	}
}

// Clear empties the slot. Channels returned by Ready before the call stay
// closed; later calls to Ready return a fresh channel.
func (s *Slot[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	s.val = zero
	if s.set {
		s.set = false
		s.ready = nil
	}
}

// Ready returns a channel that is closed once the slot is populated.
func (s *Slot[T]) Ready() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readyLocked()
}
