package derive

import "context"

// Extension provides hooks into the propagation lifecycle
type Extension interface {
	// Name returns the extension's name
	Name() string

	// Order determines extension execution order (lower = earlier)
	Order() int

	// Init is called when the extension is registered to a graph,
	// before the initial defaults push
	Init(g *Graph) error

	// Wrap intercepts operations (push, request settlement)
	Wrap(ctx context.Context, next func() (any, error), op *Operation) (any, error)

	// OnChange is called after every change notification
	OnChange(key string, value any, g *Graph)

	// OnRequestError handles failures of asynchronous requests
	OnRequestError(err error, key string, g *Graph)

	// Dispose is called when the graph is disposed
	Dispose(g *Graph) error
}

// BaseExtension provides default implementations for Extension methods
type BaseExtension struct {
	name string
}

// NewBaseExtension creates a new base extension with the given name
func NewBaseExtension(name string) BaseExtension {
	return BaseExtension{name: name}
}

func (e *BaseExtension) Name() string {
	return e.name
}

func (e *BaseExtension) Order() int {
	return 100
}

func (e *BaseExtension) Init(g *Graph) error {
	return nil
}

func (e *BaseExtension) Wrap(ctx context.Context, next func() (any, error), op *Operation) (any, error) {
	return next()
}

func (e *BaseExtension) OnChange(key string, value any, g *Graph) {
}

func (e *BaseExtension) OnRequestError(err error, key string, g *Graph) {
}

func (e *BaseExtension) Dispose(g *Graph) error {
	return nil
}

// Operation describes what operation is happening
type Operation struct {
	Kind  OperationKind
	Key   string // request key for OpRequest, empty for OpPush
	Mode  Mode   // propagation mode for OpPush
	Graph *Graph
}

// OperationKind represents the type of operation
type OperationKind string

const (
	// OpPush indicates a batch push with propagation
	OpPush OperationKind = "push"
	// OpRequest indicates the settlement of an asynchronous request
	OpRequest OperationKind = "request"
)

// wrapExtensions chains the graph's extensions around next in reverse
// order, so the last registered extension wraps first.
func (g *Graph) wrapExtensions(next func() (any, error), op *Operation) func() (any, error) {
	for i := len(g.extensions) - 1; i >= 0; i-- {
		ext := g.extensions[i]
		currentNext := next
		next = func() (any, error) {
			return ext.Wrap(g.ctx, currentNext, op)
		}
	}
	return next
}

func (g *Graph) notifyChangeExtensions(key string, value any) {
	for _, ext := range g.extensions {
		ext.OnChange(key, value, g)
	}
}

func (g *Graph) notifyRequestErrorExtensions(err error, key string) {
	for _, ext := range g.extensions {
		ext.OnRequestError(err, key, g)
	}
}
