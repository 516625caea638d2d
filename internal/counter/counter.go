package counter

import "sync/atomic"

// Counter names, one per rejection reason plus totals.
const (
	Events    = "events"
	Account   = "unknown_account"
	Format    = "format_errors"
	CRC       = "crc_errors"
	Code      = "code_errors"
	Timestamp = "timestamp_errors"
	UserCode  = "user_code_errors"
	Valid     = "valid_events"
)

var names = []string{Events, Account, Format, CRC, Code, Timestamp, UserCode, Valid}

// Set is a fixed set of named monotonic counters. The map is built once
// and never written afterwards, so increments only touch the atomics and
// the Set is safe to share across every connection of a server.
type Set struct {
	counters map[string]*atomic.Int64
}

func NewSet() *Set {
	m := make(map[string]*atomic.Int64, len(names))
	for _, n := range names {
		m[n] = &atomic.Int64{}
	}
	return &Set{counters: m}
}

func (s *Set) Increment(name string) {
	if c, ok := s.counters[name]; ok {
		c.Add(1)
	}
}

func (s *Set) Get(name string) int64 {
	if c, ok := s.counters[name]; ok {
		return c.Load()
	}
	return 0
}

func (s *Set) Snapshot() map[string]int64 {
	out := make(map[string]int64, len(s.counters))
	for n, c := range s.counters {
		out[n] = c.Load()
	}
	return out
}
