package derive

import "sync"

// Property is a composable get/set/watch view onto one conceptual
// value, independent of where that value is stored. Handles do not own
// the underlying value; they forward reads and writes to whichever
// owner actually stores it. A Property registered on a graph via
// WithProperty becomes a mirrored slot in the state mapping.
//
// There are four variants, composed by delegation: Var (owned value),
// Bound (external getter/setter), Wrap (read/write transform) and
// Navigate (focus into one member of a composite value).
type Property interface {
	// Value returns the current value.
	Value() any

	// SetValue mutates the value at its owner and notifies watchers.
	SetValue(v any)

	// Watch subscribes to changes. The returned closure unregisters
	// the callback; calling it twice is a no-op.
	Watch(fn func(v any)) func()
}

// propWatchers is the watcher list shared by Var and Bound.
type propWatchers struct {
	mu      sync.RWMutex
	entries []watcherEntry
}

func (w *propWatchers) watch(fn func(v any)) func() {
	entry := watcherEntry{
		id: nextWatcherID(),
		fn: func(_ string, v any) { fn(v) },
	}

	w.mu.Lock()
	w.entries = append(w.entries, entry)
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.entries = removeEntry(w.entries, entry.id)
	}
}

func (w *propWatchers) fire(v any) {
	w.mu.RLock()
	entries := make([]watcherEntry, len(w.entries))
	copy(entries, w.entries)
	w.mu.RUnlock()

	for _, entry := range entries {
		entry.fn("", v)
	}
}

// Var is a Property that owns its value.
type Var struct {
	mu       sync.RWMutex
	value    any
	watchers propWatchers
}

// NewVar creates an owned property holding initial.
func NewVar(initial any) *Var {
	return &Var{value: initial}
}

func (p *Var) Value() any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

func (p *Var) SetValue(v any) {
	p.mu.Lock()
	p.value = v
	p.mu.Unlock()
	p.watchers.fire(v)
}

func (p *Var) Watch(fn func(v any)) func() {
	return p.watchers.watch(fn)
}

// Bound is a Property backed by externally-owned state through a
// getter/setter pair. The external owner must call Notify after
// mutating the state behind the graph's back; SetValue notifies on its
// own.
type Bound struct {
	get      func() any
	set      func(v any)
	watchers propWatchers
}

// NewBound creates a property delegating to get and set. A nil set
// makes the property read-only: writes are dropped without
// notification.
func NewBound(get func() any, set func(v any)) *Bound {
	return &Bound{get: get, set: set}
}

func (p *Bound) Value() any {
	return p.get()
}

func (p *Bound) SetValue(v any) {
	if p.set == nil {
		return
	}
	p.set(v)
	p.watchers.fire(p.get())
}

// Notify reports an external mutation to all watchers.
func (p *Bound) Notify() {
	p.watchers.fire(p.get())
}

func (p *Bound) Watch(fn func(v any)) func() {
	return p.watchers.watch(fn)
}

// wrappedProperty applies a read/write transform around another
// property, forwarding change notification through the transform.
type wrappedProperty struct {
	inner Property
	get   func(any) any
	set   func(any) any
}

// Wrap returns a handle applying get on reads and set on writes of p.
// A nil get or set leaves that direction untransformed.
func Wrap(p Property, get func(any) any, set func(any) any) Property {
	return &wrappedProperty{inner: p, get: get, set: set}
}

func (p *wrappedProperty) Value() any {
	v := p.inner.Value()
	if p.get != nil {
		v = p.get(v)
	}
	return v
}

func (p *wrappedProperty) SetValue(v any) {
	if p.set != nil {
		v = p.set(v)
	}
	p.inner.SetValue(v)
}

func (p *wrappedProperty) Watch(fn func(v any)) func() {
	return p.inner.Watch(func(v any) {
		if p.get != nil {
			v = p.get(v)
		}
		fn(v)
	})
}

// navigatedProperty focuses on one member of a composite value held as
// a map[string]any. Reads index into the map; writes produce a copy
// with the member replaced and store the copy at the owner, leaving
// the original map untouched.
type navigatedProperty struct {
	inner  Property
	subkey string
}

// Navigate returns a handle focused on subkey of p's composite value.
func Navigate(p Property, subkey string) Property {
	return &navigatedProperty{inner: p, subkey: subkey}
}

func (p *navigatedProperty) Value() any {
	m, _ := p.inner.Value().(map[string]any)
	if m == nil {
		return nil
	}
	return m[p.subkey]
}

func (p *navigatedProperty) SetValue(v any) {
	m, _ := p.inner.Value().(map[string]any)
	next := make(map[string]any, len(m)+1)
	for k, val := range m {
		next[k] = val
	}
	next[p.subkey] = v
	p.inner.SetValue(next)
}

func (p *navigatedProperty) Watch(fn func(v any)) func() {
	return p.inner.Watch(func(v any) {
		m, _ := v.(map[string]any)
		if m == nil {
			fn(nil)
			return
		}
		fn(m[p.subkey])
	})
}
