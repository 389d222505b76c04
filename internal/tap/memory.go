package tap

import "sync"

// MemorySink keeps the most recent diagnostics in a fixed-size ring.
type MemorySink struct {
	mu    sync.Mutex
	ring  []Diagnostic
	next  int
	full  bool
	total uint64
	kinds map[Kind]uint64
}

// NewMemorySink creates a ring holding up to size records.
func NewMemorySink(size int) *MemorySink {
	if size < 1 {
		size = 1
	}
	return &MemorySink{
		ring:  make([]Diagnostic, size),
		kinds: make(map[Kind]uint64),
	}
}

// Record implements Sink.Record
func (s *MemorySink) Record(d Diagnostic) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ring[s.next] = d
	s.next = (s.next + 1) % len(s.ring)
	if s.next == 0 {
		s.full = true
	}
	s.total++
	s.kinds[d.Kind]++
}

// Recent returns up to n records, oldest first. n <= 0 returns everything held.
func (s *MemorySink) Recent(n int) []Diagnostic {
	s.mu.Lock()
	defer s.mu.Unlock()

	held := s.next
	if s.full {
		held = len(s.ring)
	}
	if n <= 0 || n > held {
		n = held
	}
	out := make([]Diagnostic, 0, n)
	start := (s.next - n + len(s.ring)) % len(s.ring)
	for i := 0; i < n; i++ {
		out = append(out, s.ring[(start+i)%len(s.ring)])
	}
	return out
}

// Total returns how many records were ever recorded.
func (s *MemorySink) Total() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Count returns how many records of kind were ever recorded.
func (s *MemorySink) Count(kind Kind) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kinds[kind]
}
