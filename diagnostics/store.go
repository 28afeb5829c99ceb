package diagnostics

import (
	"sync"

	"otgw-go/x/timex"
)

// Reading is the current state of one diagnostic slot.
type Reading struct {
	Value    float32
	TSMillis int64
	Valid    bool
}

// Store holds the latest Reading for every Key. Rows are created once at
// construction with Valid=false and are never evicted: a DID that never
// responds simply stays invalid forever, it doesn't disappear.
type Store struct {
	mu   sync.RWMutex
	rows map[Key]Reading
}

func NewStore() *Store {
	s := &Store{rows: make(map[Key]Reading, len(AllKeys))}
	for _, k := range AllKeys {
		s.rows[k] = Reading{}
	}
	return s
}

// Apply decodes a diagnostic response and updates the affected rows. It is
// a no-op for any DID this store doesn't track.
func (s *Store) Apply(did uint8, dv uint16) {
	updates := Decode(did, dv)
	if len(updates) == 0 {
		return
	}
	now := timex.NowMs()
	s.mu.Lock()
	for _, u := range updates {
		s.rows[u.key] = Reading{Value: u.value, TSMillis: now, Valid: u.valid}
	}
	s.mu.Unlock()
}

// Get returns a snapshot of one key's reading.
func (s *Store) Get(k Key) Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rows[k]
}

// Snapshot returns a consistent copy of every tracked key.
func (s *Store) Snapshot() map[Key]Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Key]Reading, len(s.rows))
	for k, v := range s.rows {
		out[k] = v
	}
	return out
}
