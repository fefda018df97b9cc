package derive

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// slotKind tags how a key's value is stored.
type slotKind uint8

const (
	// slotOwned values live in the graph's own state mapping.
	slotOwned slotKind = iota
	// slotMirrored values live in an external Property; reads and
	// writes delegate to it.
	slotMirrored
)

type slot struct {
	kind  slotKind
	value any      // owned only
	prop  Property // mirrored only

	// muted suppresses the mirror's change callback while the graph
	// itself is writing through the property, so a push does not echo
	// into a second push.
	muted atomic.Bool
}

// Graph is a reactive derivation graph: a state mapping from property
// keys to values, a set of derivers and requests computed from them,
// and the machinery that propagates recomputation when values change.
//
// All registration happens at construction through options; the
// dependency index is immutable for the graph's lifetime. Push is the
// sole external write path.
type Graph struct {
	slotMu sync.RWMutex
	slots  map[string]*slot

	derivers map[string]*Deriver
	order    []string
	index    map[string][]string

	watchers   *watcherRegistry
	extensions []Extension

	mode    Mode
	modeSet bool

	logger *zap.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	requests sync.WaitGroup
	sem      *semaphore.Weighted
}

type graphConfig struct {
	defaults   Batch
	derivers   []*Deriver
	mirrors    []mirrorDecl
	mode       Mode
	modeSet    bool
	logger     *zap.Logger
	extensions []Extension
	reqLimit   int64
	ctx        context.Context
}

type mirrorDecl struct {
	key  string
	prop Property
}

// GraphOption is a modifier for graph construction.
type GraphOption func(*graphConfig)

// WithDefaults declares initial raw values; they are applied and
// propagated by an initial push before NewGraph returns.
func WithDefaults(defaults Batch) GraphOption {
	return func(c *graphConfig) {
		for key, v := range defaults {
			c.defaults[key] = v
		}
	}
}

// WithDefault declares a single initial raw value.
func WithDefault(key string, v any) GraphOption {
	return func(c *graphConfig) {
		c.defaults[key] = v
	}
}

// WithDeriver declares a synchronous deriver for key. Unless Params is
// given, the dependency keys are inferred by probing fn once.
func WithDeriver(key string, fn ComputeFunc, opts ...DeriverOption) GraphOption {
	return func(c *graphConfig) {
		d := &Deriver{key: key, compute: fn}
		for _, opt := range opts {
			opt(d)
		}
		c.derivers = append(c.derivers, d)
	}
}

// WithRequest declares an asynchronous deriver for key. Its params are
// the keys whose change triggers a new invocation; the value it
// resolves arrives as a later push of {key: value}.
func WithRequest(key string, fn RequestFunc, opts ...DeriverOption) GraphOption {
	return func(c *graphConfig) {
		d := &Deriver{key: key, request: fn}
		for _, opt := range opts {
			opt(d)
		}
		c.derivers = append(c.derivers, d)
	}
}

// WithProperty registers an externally-owned Property as the storage
// for key. The graph mirrors its value and re-pushes the key's
// dependents whenever the property reports a change.
func WithProperty(key string, prop Property) GraphOption {
	return func(c *graphConfig) {
		c.mirrors = append(c.mirrors, mirrorDecl{key: key, prop: prop})
	}
}

// WithDefaultMode overrides the process-wide default propagation mode
// for this graph.
func WithDefaultMode(mode Mode) GraphOption {
	return func(c *graphConfig) {
		c.mode = mode
		c.modeSet = true
	}
}

// WithLogger sets the graph's logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) GraphOption {
	return func(c *graphConfig) {
		c.logger = logger
	}
}

// WithExtension registers an extension on the graph.
func WithExtension(ext Extension) GraphOption {
	return func(c *graphConfig) {
		c.extensions = append(c.extensions, ext)
	}
}

// WithRequestLimit bounds the number of concurrently running
// asynchronous requests. Zero or negative means unbounded.
func WithRequestLimit(n int64) GraphOption {
	return func(c *graphConfig) {
		c.reqLimit = n
	}
}

// WithContext sets the base context passed to request thunks. Dispose
// cancels it. Defaults to context.Background().
func WithContext(ctx context.Context) GraphOption {
	return func(c *graphConfig) {
		c.ctx = ctx
	}
}

// NewGraph builds a graph from declarations of defaults, derivers,
// requests and mirrored properties. Dependency extraction and index
// construction happen here; a probe failure makes construction fail
// and the graph must not be used. Before returning, the defaults are
// pushed so derived values are populated.
func NewGraph(opts ...GraphOption) (*Graph, error) {
	cfg := &graphConfig{
		defaults: make(Batch),
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(cfg.ctx)
	g := &Graph{
		slots:    make(map[string]*slot),
		derivers: make(map[string]*Deriver, len(cfg.derivers)),
		index:    make(map[string][]string),
		watchers: newWatcherRegistry(),
		mode:     cfg.mode,
		modeSet:  cfg.modeSet,
		logger:   cfg.logger,
		ctx:      ctx,
		cancel:   cancel,
	}
	if cfg.reqLimit > 0 {
		g.sem = semaphore.NewWeighted(cfg.reqLimit)
	}

	for _, d := range cfg.derivers {
		if _, dup := g.derivers[d.key]; dup {
			cancel()
			return nil, fmt.Errorf("duplicate deriver for key %q", d.key)
		}
		if err := g.resolveParams(d); err != nil {
			cancel()
			return nil, err
		}
		g.derivers[d.key] = d
		g.order = append(g.order, d.key)
	}

	g.index = buildIndex(g.order, g.derivers)

	for key := range cfg.defaults {
		g.slots[key] = &slot{kind: slotOwned}
	}
	for _, m := range cfg.mirrors {
		if _, dup := g.slots[m.key]; dup {
			cancel()
			return nil, fmt.Errorf("key %q declared both as default and as mirrored property", m.key)
		}
		g.slots[m.key] = &slot{kind: slotMirrored, prop: m.prop}
	}

	g.extensions = append(g.extensions, cfg.extensions...)
	sort.SliceStable(g.extensions, func(i, j int) bool {
		return g.extensions[i].Order() < g.extensions[j].Order()
	})
	for _, ext := range g.extensions {
		if err := ext.Init(g); err != nil {
			cancel()
			return nil, fmt.Errorf("initializing extension %s: %w", ext.Name(), err)
		}
	}

	for _, m := range cfg.mirrors {
		g.subscribeMirror(m.key)
	}

	if len(cfg.defaults) > 0 {
		g.Push(cfg.defaults)
	}

	return g, nil
}

// subscribeMirror bridges an external property's change reports into
// the graph: the key's watchers fire and its dependents re-push.
func (g *Graph) subscribeMirror(key string) {
	g.slotMu.RLock()
	s := g.slots[key]
	g.slotMu.RUnlock()

	s.prop.Watch(func(v any) {
		if s.muted.Load() {
			return
		}
		// Value already lives at the external owner; skip the write
		// and only propagate.
		g.push(Batch{key: v}, g.defaultMode(), map[string]bool{key: true})
	})
}

// State returns the live read view over the graph's values.
func (g *Graph) State() State {
	return graphState{g: g}
}

// Get returns the current value of key, or nil if it was never
// written.
func (g *Graph) Get(key string) any {
	return g.read(key)
}

// Keys returns every key currently present in the state mapping,
// sorted lexicographically.
func (g *Graph) Keys() []string {
	g.slotMu.RLock()
	keys := make([]string, 0, len(g.slots))
	for key := range g.slots {
		keys = append(keys, key)
	}
	g.slotMu.RUnlock()

	sort.Strings(keys)
	return keys
}

// Deriver returns the registered deriver for key, if any.
func (g *Graph) Deriver(key string) (*Deriver, bool) {
	d, ok := g.derivers[key]
	return d, ok
}

// Logger returns the graph's logger.
func (g *Graph) Logger() *zap.Logger {
	return g.logger
}

func (g *Graph) read(key string) any {
	g.slotMu.RLock()
	s := g.slots[key]
	var v any
	mirrored := false
	if s != nil {
		if s.kind == slotOwned {
			v = s.value
		} else {
			mirrored = true
		}
	}
	g.slotMu.RUnlock()

	if mirrored {
		// Property getters run outside the slot lock; they may call
		// arbitrary external code.
		return s.prop.Value()
	}
	return v
}

func (g *Graph) write(key string, v any) {
	g.slotMu.Lock()
	s := g.slots[key]
	if s == nil {
		// Unknown keys are plain data: always accepted and written.
		g.slots[key] = &slot{kind: slotOwned, value: v}
		g.slotMu.Unlock()
		return
	}
	if s.kind == slotOwned {
		s.value = v
		g.slotMu.Unlock()
		return
	}
	g.slotMu.Unlock()

	s.muted.Store(true)
	s.prop.SetValue(v)
	s.muted.Store(false)
}

// defaultMode returns the graph's mode if configured, else the
// process-wide default.
func (g *Graph) defaultMode() Mode {
	if g.modeSet {
		return g.mode
	}
	return DefaultMode()
}

// Dispose cancels the graph's base context, waits for outstanding
// asynchronous requests to drain, and disposes extensions.
func (g *Graph) Dispose() error {
	g.cancel()
	g.requests.Wait()

	for _, ext := range g.extensions {
		if err := ext.Dispose(g); err != nil {
			return fmt.Errorf("disposing extension %s: %w", ext.Name(), err)
		}
	}
	return nil
}
