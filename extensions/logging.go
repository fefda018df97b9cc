package extensions

import (
	"context"
	"time"

	"go.uber.org/zap"

	derive "github.com/derive-fn/derive-go"
)

// LoggingExtension logs pushes and request settlements through a zap
// logger.
type LoggingExtension struct {
	derive.BaseExtension
	logger *zap.Logger
}

// NewLoggingExtension creates a new logging extension.
func NewLoggingExtension(logger *zap.Logger) *LoggingExtension {
	return &LoggingExtension{
		BaseExtension: derive.NewBaseExtension("logging"),
		logger:        logger,
	}
}

func (e *LoggingExtension) Wrap(ctx context.Context, next func() (any, error), op *derive.Operation) (any, error) {
	start := time.Now()
	result, err := next()
	duration := time.Since(start)

	switch op.Kind {
	case derive.OpPush:
		updated, _ := result.([]string)
		e.logger.Debug("push completed",
			zap.String("mode", op.Mode.String()),
			zap.Strings("updated", updated),
			zap.Duration("duration", duration),
		)
	case derive.OpRequest:
		if err != nil {
			e.logger.Warn("request settled with error",
				zap.String("key", op.Key),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
		} else {
			e.logger.Debug("request settled",
				zap.String("key", op.Key),
				zap.Duration("duration", duration),
			)
		}
	}

	return result, err
}

func (e *LoggingExtension) OnRequestError(err error, key string, g *derive.Graph) {
	e.logger.Warn("request dropped",
		zap.String("key", key),
		zap.Error(err),
	)
}
