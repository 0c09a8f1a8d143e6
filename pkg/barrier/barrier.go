// Package barrier tracks outstanding round-trip tokens and signals once
// all of them have been answered.
//
// A Set is created holding an initial token so that the completion signal
// cannot fire before the caller has had a chance to issue follow-up
// requests. Tokens are added with Track as follow-up requests go out and
// removed with Complete as their answers arrive. The first Complete that
// leaves the set empty invokes the completion callback exactly once.
//
// A Set is not safe for concurrent use; it is meant to be driven from a
// single dispatch goroutine.
package barrier

// Set is a pending set of tokens of type T.
type Set[T comparable] struct {
	pending map[T]struct{}
	onEmpty func()
	fired   bool
}

// New returns a Set holding initial. onEmpty may be nil.
func New[T comparable](initial T, onEmpty func()) *Set[T] {
	return &Set[T]{
		pending: map[T]struct{}{initial: {}},
		onEmpty: onEmpty,
	}
}

// Track adds tok to the set. It reports false if tok was already pending
// or the set has already drained.
func (s *Set[T]) Track(tok T) bool {
	if s.fired {
		return false
	}
	if _, ok := s.pending[tok]; ok {
		return false
	}
	s.pending[tok] = struct{}{}
	return true
}

// Complete removes tok from the set and reports whether it was pending.
// Unknown tokens are ignored. When the removal empties the set the
// completion callback runs before Complete returns.
func (s *Set[T]) Complete(tok T) bool {
	if _, ok := s.pending[tok]; !ok {
		return false
	}
	delete(s.pending, tok)

	if len(s.pending) == 0 && !s.fired {
		s.fired = true
		if s.onEmpty != nil {
			s.onEmpty()
		}
	}
	return true
}

// Len returns the number of pending tokens.
func (s *Set[T]) Len() int {
	return len(s.pending)
}

// Has reports whether tok is pending.
func (s *Set[T]) Has(tok T) bool {
	_, ok := s.pending[tok]
	return ok
}

// Done reports whether the set has drained.
func (s *Set[T]) Done() bool {
	return s.fired
}

// Pending returns the pending tokens in no particular order.
func (s *Set[T]) Pending() []T {
	out := make([]T, 0, len(s.pending))
	for tok := range s.pending {
		out = append(out, tok)
	}
	return out
}
