package derive

import (
	"sync"
	"sync/atomic"
)

// watcherIDCounter is the source of unique ids for watcher entries.
var watcherIDCounter uint64

func nextWatcherID() uint64 {
	return atomic.AddUint64(&watcherIDCounter, 1)
}

type watcherEntry struct {
	id uint64
	fn func(key string, v any)
}

// watcherRegistry holds per-key and graph-wide change listeners.
// Dispatch copies the entry lists before invoking callbacks, so a
// watcher may unsubscribe itself or re-enter Push.
type watcherRegistry struct {
	mu     sync.RWMutex
	byKey  map[string][]watcherEntry
	global []watcherEntry
}

func newWatcherRegistry() *watcherRegistry {
	return &watcherRegistry{byKey: make(map[string][]watcherEntry)}
}

func (r *watcherRegistry) watch(key string, fn func(v any)) func() {
	entry := watcherEntry{
		id: nextWatcherID(),
		fn: func(_ string, v any) { fn(v) },
	}

	r.mu.Lock()
	r.byKey[key] = append(r.byKey[key], entry)
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.byKey[key] = removeEntry(r.byKey[key], entry.id)
		if len(r.byKey[key]) == 0 {
			delete(r.byKey, key)
		}
	}
}

func (r *watcherRegistry) watchAll(fn func(key string, v any)) func() {
	entry := watcherEntry{id: nextWatcherID(), fn: fn}

	r.mu.Lock()
	r.global = append(r.global, entry)
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.global = removeEntry(r.global, entry.id)
	}
}

// dispatch fires the per-key watchers for key in registration order,
// then the global watchers.
func (r *watcherRegistry) dispatch(key string, v any) {
	r.mu.RLock()
	keyed := make([]watcherEntry, len(r.byKey[key]))
	copy(keyed, r.byKey[key])
	global := make([]watcherEntry, len(r.global))
	copy(global, r.global)
	r.mu.RUnlock()

	for _, entry := range keyed {
		entry.fn(key, v)
	}
	for _, entry := range global {
		entry.fn(key, v)
	}
}

// removeEntry removes the entry with the given id, preserving order.
// Removal by id makes the returned unregistration closures idempotent:
// a second call finds nothing and is a no-op.
func removeEntry(entries []watcherEntry, id uint64) []watcherEntry {
	for i, entry := range entries {
		if entry.id == id {
			return append(entries[:i], entries[i+1:]...)
		}
	}
	return entries
}

// Watch registers a callback invoked after every successful
// (re)computation of key. It returns an unregistration closure;
// calling the closure twice is safe, the second call is a no-op.
func (g *Graph) Watch(key string, fn func(v any)) func() {
	return g.watchers.watch(key, fn)
}

// WatchAll registers a graph-wide callback invoked after every change.
// Per-key watchers for a changed key fire before global watchers for
// that same change; no other ordering is guaranteed.
func (g *Graph) WatchAll(fn func(key string, v any)) func() {
	return g.watchers.watchAll(fn)
}
