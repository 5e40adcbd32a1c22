package geobase

import (
	"hash/fnv"
	"sync"
)

// StripedLocks spreads per-key locking over a fixed set of mutexes.
// The same key always maps to the same stripe; unrelated keys rarely contend.
type StripedLocks struct {
	stripes []sync.RWMutex
	count   uint32
}

// NewStripedLocks creates a lock set with stripeCount stripes (32 when <= 0)
func NewStripedLocks(stripeCount int) *StripedLocks {
	if stripeCount <= 0 {
		stripeCount = 32
	}
	return &StripedLocks{
		stripes: make([]sync.RWMutex, stripeCount),
		count:   uint32(stripeCount),
	}
}

// Lock takes the exclusive lock for key and returns its release function
//
//	unlock := locks.Lock(key)
//	defer unlock()
func (sl *StripedLocks) Lock(key string) func() {
	m := &sl.stripes[sl.stripe(key)]
	m.Lock()
	return m.Unlock
}

// RLock takes the shared lock for key and returns its release function
func (sl *StripedLocks) RLock(key string) func() {
	m := &sl.stripes[sl.stripe(key)]
	m.RLock()
	return m.RUnlock
}

// stripe hashes key with FNV-1a
func (sl *StripedLocks) stripe(key string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(key))
	return h.Sum32() % sl.count
}
