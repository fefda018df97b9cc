package derive

import (
	"sort"
	"sync/atomic"

	"go.uber.org/zap"
)

// Mode selects the propagation algorithm used by a push.
type Mode uint8

const (
	// Fast is breadth-first and unchecked: dependents are re-enqueued
	// unconditionally and a deriver may observe a partially-updated
	// upstream. Cheap and approximate; use with acyclic, shallow
	// graphs where recomputation is inexpensive.
	Fast Mode = iota

	// Accurate is two-phase: the full transitive closure of affected
	// keys is computed first, then keys recompute only once all of
	// their inputs have reached their final value for the batch.
	// Dependency cycles are resolved deterministically.
	Accurate
)

func (m Mode) String() string {
	switch m {
	case Fast:
		return "fast"
	case Accurate:
		return "accurate"
	default:
		return "unknown"
	}
}

// processMode is the process-wide default propagation mode.
var processMode atomic.Uint32

func init() {
	processMode.Store(uint32(Accurate))
}

// SetDefaultMode sets the process-wide default propagation mode used
// by pushes that do not specify one.
func SetDefaultMode(m Mode) {
	processMode.Store(uint32(m))
}

// DefaultMode returns the process-wide default propagation mode.
func DefaultMode() Mode {
	return Mode(processMode.Load())
}

// Push atomically applies a batch of raw values into the state mapping
// and propagates recomputation using the default mode. It returns the
// deriver keys that were (re)computed, in computation order.
//
// Unknown keys are treated as plain data and always written. Push is
// the sole external write path; mutating the state mapping any other
// way is undefined behavior for derived keys.
func (g *Graph) Push(batch Batch) []string {
	return g.push(batch, g.defaultMode(), nil)
}

// PushMode is Push with an explicit propagation mode.
func (g *Graph) PushMode(batch Batch, mode Mode) []string {
	return g.push(batch, mode, nil)
}

// push runs one propagation pass, wrapped by the graph's extensions.
// skipWrite marks batch keys whose value already lives at its owner
// (mirrored slots reporting an external change) and must not be
// written back.
func (g *Graph) push(batch Batch, mode Mode, skipWrite map[string]bool) []string {
	op := &Operation{Kind: OpPush, Mode: mode, Graph: g}

	next := g.wrapExtensions(func() (any, error) {
		return g.runPush(batch, mode, skipWrite), nil
	}, op)

	result, err := next()
	if err != nil {
		g.logger.Warn("push extension error", zap.Error(err))
	}
	keys, _ := result.([]string)
	return keys
}

func (g *Graph) runPush(batch Batch, mode Mode, skipWrite map[string]bool) []string {
	if mode == Fast {
		return g.pushFast(batch, skipWrite)
	}
	return g.pushAccurate(batch, skipWrite)
}

// pushFast is the breadth-first, unchecked algorithm. Every dequeued
// key recomputes against the current state and its dependents are
// enqueued regardless of whether they were already processed. No
// protection against redundant recomputation or infinite requeueing
// in cyclic graphs.
func (g *Graph) pushFast(batch Batch, skipWrite map[string]bool) []string {
	g.applyBatch(batch, skipWrite)

	queue := sortedKeys(batch)
	var done []string

	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]

		if g.computeOne(key, batch) {
			done = append(done, key)
		}
		queue = append(queue, g.index[key]...)
	}

	return done
}

// pushAccurate is the two-phase, fixed-point algorithm: closure, batch
// apply, stabilization passes, then the deterministic cycle fallback
// when a pass makes no progress.
func (g *Graph) pushAccurate(batch Batch, skipWrite map[string]bool) []string {
	// Closure phase: transitive set of keys needing recomputation.
	pending := newOrderedSet()
	queue := sortedKeys(batch)
	for _, key := range queue {
		pending.add(key)
	}
	for i := 0; i < len(queue); i++ {
		for _, dep := range g.index[queue[i]] {
			if pending.add(dep) {
				queue = append(queue, dep)
			}
		}
	}

	g.applyBatch(batch, skipWrite)

	var done []string

	// Stabilization: a key is eligible once none of its params are
	// still pending, i.e. all of its inputs hold their final value
	// for this batch.
	for pending.len() > 0 {
		progress := false
		for _, key := range pending.snapshot() {
			if !g.eligible(key, pending) {
				continue
			}
			if g.computeOne(key, batch) {
				done = append(done, key)
			}
			pending.remove(key)
			progress = true
		}
		if progress {
			continue
		}

		// Cycle fallback: the remaining keys form mutual dependency
		// cycles. Recompute each exactly once in tie-break order;
		// members may observe each other's previous value.
		remaining := pending.snapshot()
		sort.Slice(remaining, func(i, j int) bool {
			return g.cycleSortKey(remaining[i]) < g.cycleSortKey(remaining[j])
		})
		g.logger.Debug("resolving dependency cycle", zap.Strings("keys", remaining))

		for _, key := range remaining {
			if g.computeOne(key, batch) {
				done = append(done, key)
			}
			pending.remove(key)
		}
	}

	return done
}

func (g *Graph) eligible(key string, pending *orderedSet) bool {
	d := g.derivers[key]
	if d == nil {
		return true
	}
	for _, param := range d.params {
		if param == key {
			// Self-dependency never stabilizes; left to the cycle
			// fallback.
			return false
		}
		if pending.has(param) {
			return false
		}
	}
	return true
}

func (g *Graph) cycleSortKey(key string) string {
	if d := g.derivers[key]; d != nil {
		return d.sortKey()
	}
	return key
}

// computeOne recomputes a single key against the current state and
// dispatches its change notification. It reports whether the key was
// actually (re)computed.
//
// A key without a deriver is inert data: it was already written by the
// batch apply step, so only its notification fires. A request deriver
// whose key is present in the batch is the arrival of a previously
// requested result: notify only, never re-invoke. Otherwise a request
// is invoked; a nil thunk means it declined and nothing further
// happens for the key in this pass.
func (g *Graph) computeOne(key string, batch Batch) bool {
	d := g.derivers[key]
	if d == nil {
		g.notify(key)
		return false
	}

	if d.request != nil {
		if _, arrived := batch[key]; arrived {
			g.notify(key)
			return true
		}
		thunk := d.request(g.State(), g)
		if thunk == nil {
			return false
		}
		g.dispatchRequest(key, thunk)
		return false
	}

	v := d.compute(g.State(), g)
	g.write(key, v)
	g.notify(key)
	return true
}

// notify dispatches the change notification for key: per-key watchers
// first (registration order), then global watchers, then extensions.
func (g *Graph) notify(key string) {
	v := g.read(key)
	g.watchers.dispatch(key, v)
	g.notifyChangeExtensions(key, v)
}

// applyBatch writes the raw batch values into the state mapping in
// sorted key order, before any propagation runs.
func (g *Graph) applyBatch(batch Batch, skipWrite map[string]bool) {
	for _, key := range sortedKeys(batch) {
		if skipWrite[key] {
			continue
		}
		g.write(key, batch[key])
	}
}

// sortedKeys returns the batch's keys in lexicographic order. Map
// iteration order is unspecified; sorting keeps the seed order of a
// push deterministic.
func sortedKeys(batch Batch) []string {
	keys := make([]string, 0, len(batch))
	for key := range batch {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// orderedSet is a set that preserves insertion order, used for the
// closure and pending sets of accurate mode.
type orderedSet struct {
	members map[string]struct{}
	keys    []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{members: make(map[string]struct{})}
}

// add inserts key and reports whether it was not already present.
func (s *orderedSet) add(key string) bool {
	if _, ok := s.members[key]; ok {
		return false
	}
	s.members[key] = struct{}{}
	s.keys = append(s.keys, key)
	return true
}

func (s *orderedSet) has(key string) bool {
	_, ok := s.members[key]
	return ok
}

func (s *orderedSet) remove(key string) {
	delete(s.members, key)
}

func (s *orderedSet) len() int {
	return len(s.members)
}

// snapshot returns the live members in insertion order.
func (s *orderedSet) snapshot() []string {
	out := make([]string, 0, len(s.members))
	for _, key := range s.keys {
		if _, ok := s.members[key]; ok {
			out = append(out, key)
		}
	}
	return out
}
