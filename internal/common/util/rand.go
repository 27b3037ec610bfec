package util

import (
	"math/rand"
	"sync"
)

// LockedSource is a rand.Source guarded by a mutex so it can back a
// rand.Rand shared between goroutines.
type LockedSource struct {
	mu  sync.Mutex
	src rand.Source
}

func (s *LockedSource) Int63() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Int63()
}

func (s *LockedSource) Seed(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src.Seed(seed)
}

// NewThreadsafeRand returns a *rand.Rand that is safe to share across
// multiple goroutines.
func NewThreadsafeRand(seed int64) *rand.Rand {
	return rand.New(&LockedSource{src: rand.NewSource(seed)})
}
