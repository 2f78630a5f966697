package live

// sequencer releases results in sequence order. Results that arrive ahead
// of a gap are held until every earlier sequence number has been delivered.
// It is not safe for concurrent use.
type sequencer[T any] struct {
	next    int64
	pending map[int64]T
}

func newSequencer[T any]() *sequencer[T] {
	return &sequencer[T]{pending: make(map[int64]T)}
}

// Done records the result of seq and returns the results that are now
// deliverable, in order.
func (s *sequencer[T]) Done(seq int64, v T) []T {
	if seq < s.next {
		return nil
	}
	s.pending[seq] = v
	var out []T
	for {
		r, ok := s.pending[s.next]
		if !ok {
			return out
		}
		delete(s.pending, s.next)
		out = append(out, r)
		s.next++
	}
}

// Pending returns how many results are held back.
func (s *sequencer[T]) Pending() int { return len(s.pending) }
