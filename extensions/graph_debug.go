package extensions

import (
	"context"
	"log/slog"
	"sort"

	"github.com/m1gwings/treedrawer/tree"

	derive "github.com/derive-fn/derive-go"
)

// GraphDebugExtension logs a rendering of the dependency index when a
// graph is constructed, and failed requests as they are dropped.
//
// Usage:
//
//	// Structured JSON logging
//	ext := extensions.NewGraphDebugExtension(slog.NewJSONHandler(os.Stdout, nil))
//
//	// Silent (for testing)
//	ext := extensions.NewGraphDebugExtension(extensions.NewSilentHandler())
type GraphDebugExtension struct {
	derive.BaseExtension
	logger *slog.Logger
}

// NewGraphDebugExtension creates a new graph debug extension logging
// through the given slog.Handler.
func NewGraphDebugExtension(logHandler slog.Handler) *GraphDebugExtension {
	return &GraphDebugExtension{
		BaseExtension: derive.NewBaseExtension("graph-debug"),
		logger:        slog.New(logHandler),
	}
}

// Init renders the freshly built dependency index.
func (e *GraphDebugExtension) Init(g *derive.Graph) error {
	e.logger.Info("dependency index",
		"tree", RenderIndex(g.ExportIndex()),
	)
	return nil
}

func (e *GraphDebugExtension) Wrap(ctx context.Context, next func() (any, error), op *derive.Operation) (any, error) {
	result, err := next()
	if err != nil && op.Kind == derive.OpRequest {
		e.logger.Error("request settlement failed",
			"key", op.Key,
			"error", err.Error(),
		)
	}
	return result, err
}

func (e *GraphDebugExtension) OnRequestError(err error, key string, g *derive.Graph) {
	e.logger.Error("request dropped",
		"key", key,
		"error", err.Error(),
	)
}

// RenderIndex draws the dependency index as a tree: each key with
// dependents becomes a child of the root, its direct dependents
// below it. Keys are sorted for a stable rendering.
func RenderIndex(index map[string][]string) string {
	root := tree.NewTree(tree.NodeString("graph"))

	keys := make([]string, 0, len(index))
	for key := range index {
		if len(index[key]) > 0 {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	if len(keys) == 0 {
		return "(no dependencies registered)"
	}

	for _, key := range keys {
		node := root.AddChild(tree.NodeString(key))
		for _, dep := range index[key] {
			node.AddChild(tree.NodeString(dep))
		}
	}

	return root.String()
}

// SilentHandler is a slog.Handler that discards all log output.
// Useful for testing when you don't want log output.
type SilentHandler struct{}

// NewSilentHandler creates a new silent log handler.
func NewSilentHandler() *SilentHandler {
	return &SilentHandler{}
}

func (h *SilentHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return false
}

func (h *SilentHandler) Handle(ctx context.Context, record slog.Record) error {
	return nil
}

func (h *SilentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h
}

func (h *SilentHandler) WithGroup(name string) slog.Handler {
	return h
}
