package extensions

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	deferred "github.com/deferred-fn/deferred-go"
)

// LoggingExtension logs the invocation and dispatch lifecycle.
//
// Usage:
//
//	// Structured JSON logging
//	ext := extensions.NewLoggingExtension(slog.NewJSONHandler(os.Stdout, nil))
//
//	// Silent (for testing)
//	ext := extensions.NewLoggingExtension(extensions.NewSilentHandler())
type LoggingExtension struct {
	deferred.BaseExtension
	logger *slog.Logger
}

// NewLoggingExtension creates a new logging extension writing to the given
// slog handler.
func NewLoggingExtension(logHandler slog.Handler) *LoggingExtension {
	return &LoggingExtension{
		BaseExtension: deferred.NewBaseExtension("logging"),
		logger:        slog.New(logHandler),
	}
}

// WrapInvoke logs each frame invocation with a generated invocation id.
func (e *LoggingExtension) WrapInvoke(next func() (any, error), fr *deferred.Frame) (any, error) {
	id := uuid.NewString()
	start := time.Now()

	e.logger.Debug("frame invocation starting",
		"invocation", id,
		"frame", frameName(fr),
		"location", fr.Location(),
	)

	result, err := next()

	duration := time.Since(start)
	if err != nil {
		e.logger.Debug("frame invocation raised",
			"invocation", id,
			"frame", frameName(fr),
			"duration", duration,
			"error", err.Error(),
		)
	} else {
		e.logger.Debug("frame invocation completed",
			"invocation", id,
			"frame", frameName(fr),
			"duration", duration,
		)
	}

	return result, err
}

// OnDispatch logs an error entering the ancestor-chain walk.
func (e *LoggingExtension) OnDispatch(err error, fr *deferred.Frame, trace string) {
	e.logger.Info("dispatching error",
		"frame", frameName(fr),
		"error", err.Error(),
	)
}

// OnHandled logs a handler concluding dispatch.
func (e *LoggingExtension) OnHandled(fr *deferred.Frame, err error) {
	e.logger.Info("error handled",
		"frame", frameName(fr),
		"error", err.Error(),
	)
}

// OnEscape logs an error leaving the chain unmanaged, with its trace.
func (e *LoggingExtension) OnEscape(err error, trace string) {
	e.logger.Error("error escaped unmanaged",
		"error", err.Error(),
		"trace", trace,
	)
}

func frameName(fr *deferred.Frame) string {
	if name := fr.Name(); name != "" {
		return name
	}
	return deferred.AnonymousFrame
}
