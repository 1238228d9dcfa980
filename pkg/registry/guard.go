package registry

import "sync"

// WriteGuard provides per-key mutual exclusion between the registry's two
// writers (catalogsync and discovery). Both writers touch provider_models
// rows; without this, a slow catalog sync and a fast discovery sweep for
// the same provider could interleave upserts and leave a torn read.
type WriteGuard struct {
	mu    sync.Mutex
	inUse map[string]bool
}

// NewWriteGuard creates an empty guard.
func NewWriteGuard() *WriteGuard {
	return &WriteGuard{inUse: make(map[string]bool)}
}

// TryAcquire attempts to lock key for the calling writer. Returns false
// immediately if another writer already holds it — callers should skip
// this cycle's run for that key rather than block.
func (g *WriteGuard) TryAcquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.inUse[key] {
		return false
	}
	g.inUse[key] = true
	return true
}

// Release frees key for the next writer.
func (g *WriteGuard) Release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inUse, key)
}
