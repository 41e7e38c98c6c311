package storage

import (
	"sync/atomic"

	"ad-delivery-engine/internal/engine"
)

// Snapshot is a lock-free, read-optimized holder of the currently
// eligible campaign list. Readers see a consistent immutable slice;
// Replace swaps the whole list and bumps the version so consumers can
// detect list changes cheaply.
type Snapshot struct {
	v       atomic.Value // []engine.Campaign
	version atomic.Uint64
}

func NewSnapshot() *Snapshot {
	s := &Snapshot{}
	s.v.Store([]engine.Campaign(nil))
	return s
}

// Campaigns returns the stored list. Callers must not mutate it.
func (s *Snapshot) Campaigns() []engine.Campaign {
	cs, _ := s.v.Load().([]engine.Campaign)
	return cs
}

// Version increments on every Replace.
func (s *Snapshot) Version() uint64 { return s.version.Load() }

// Replace atomically swaps in the new list.
func (s *Snapshot) Replace(cs []engine.Campaign) {
	s.v.Store(cs)
	s.version.Add(1)
}
