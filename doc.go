// Package derive provides a keyed reactive derivation graph for Go.
//
// # Overview
//
// Derive organizes state around three core concepts:
//
//  1. Properties: named values in a single state mapping
//  2. Derivers: pure or asynchronous functions of other properties
//  3. Pushes: atomic batch writes that propagate recomputation
//
// # Basic Usage
//
// Declare defaults and derivers, then push values:
//
//	g, err := derive.NewGraph(
//	    derive.WithDefaults(derive.Batch{"celsius": 0}),
//	    derive.WithDeriver("fahrenheit", func(s derive.State, g *derive.Graph) any {
//	        return derive.Value[int](s, "celsius")*9/5 + 32
//	    }),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	g.Push(derive.Batch{"celsius": 100})
//	fmt.Println(g.Get("fahrenheit")) // 212
//
// Dependencies are inferred by probing the deriver once with an
// instrumented State whose reads return nil. Derivers that cannot
// survive the probe (type assertions on concrete values, branching on
// real data) declare their dependencies explicitly:
//
//	derive.WithDeriver("total", computeTotal, derive.Params("price", "qty"))
//
// # Propagation Modes
//
// Push propagates in one of two modes:
//
//	// Fast: breadth-first and unchecked; cheap, may recompute
//	// redundantly and must not be used with cyclic graphs.
//	g.PushMode(batch, derive.Fast)
//
//	// Accurate: computes the transitive closure first, then
//	// recomputes each key once all of its inputs are final.
//	// Dependency cycles resolve deterministically in tie-break order.
//	g.PushMode(batch, derive.Accurate)
//
// The process-wide default is Accurate; override it with
// derive.SetDefaultMode, per graph with derive.WithDefaultMode, or per
// call with PushMode.
//
// # Watchers
//
// Subscribe to changes per key or graph-wide; both return an
// idempotent unregistration closure:
//
//	stop := g.Watch("fahrenheit", func(v any) {
//	    fmt.Println("now", v)
//	})
//	defer stop()
//
//	g.WatchAll(func(key string, v any) { ... })
//
// # Requests
//
// A request is an asynchronous deriver: invoking it returns a pending
// computation whose result arrives as a later push of {key: value}.
// Failures are caught and logged; the property keeps its prior value.
//
//	search := derive.Throttle(func(s derive.State, g *derive.Graph) derive.Thunk {
//	    query := derive.Value[string](s, "query")
//	    return func(ctx context.Context) (any, error) {
//	        return backend.Search(ctx, query)
//	    }
//	})
//
//	g, _ := derive.NewGraph(
//	    derive.WithRequest("results", search, derive.Params("query")),
//	)
//
// Throttle guarantees at most one outstanding computation per wrapped
// request; while one is in flight, new invocations are dropped.
//
// # Properties
//
// A Property is a composable get/set/watch handle onto one value,
// independent of where it is stored:
//
//	temp := derive.NewVar(21)
//	rounded := derive.Wrap(temp, roundOnRead, nil)
//	settings := derive.NewVar(map[string]any{"theme": "dark"})
//	theme := derive.Navigate(settings, "theme")
//
// Registering a Property on a graph mirrors externally-owned state
// into the state mapping:
//
//	g, _ := derive.NewGraph(
//	    derive.WithProperty("temp", temp),
//	    derive.WithDeriver("display", renderTemp, derive.Params("temp")),
//	)
//	temp.SetValue(25) // re-pushes "display"
//
// # Extensions
//
// Extensions hook into pushes and request settlements for
// cross-cutting concerns:
//
//	type timing struct{ derive.BaseExtension }
//
//	func (e *timing) Wrap(ctx context.Context, next func() (any, error), op *derive.Operation) (any, error) {
//	    start := time.Now()
//	    result, err := next()
//	    log.Printf("%s took %v", op.Kind, time.Since(start))
//	    return result, err
//	}
//
//	g, _ := derive.NewGraph(derive.WithExtension(&timing{
//	    BaseExtension: derive.NewBaseExtension("timing"),
//	}))
//
// The extensions subpackage ships logging (zap), metrics (prometheus)
// and graph debugging extensions.
package derive
