package deferred

import (
	"errors"
	"log/slog"
)

// Loop is a minimal cooperative event loop for embedding the engine in tests
// and examples. It models the host's behavior: callbacks registered now are
// invoked later, from the loop's own top level, where no frame is active.
// Real embeddings drive the engine from their own loop instead.
//
// A loop runs on a single goroutine; its scope inherits that ownership.
type Loop struct {
	scope  *Scope
	logger *slog.Logger
	tasks  []loopTask
	tick   uint64
	seq    uint64
}

type loopTask struct {
	seq uint64
	due uint64
	run func() (any, error)
}

// LoopOption is a modifier for loops
type LoopOption func(*Loop)

// WithLogger sets the logger used to report errors that reach the loop's
// top level.
func WithLogger(logger *slog.Logger) LoopOption {
	return func(l *Loop) {
		l.logger = logger
	}
}

// NewLoop creates a loop driving the given scope.
func NewLoop(scope *Scope, opts ...LoopOption) *Loop {
	l := &Loop{
		scope:  scope,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Scope returns the scope this loop drives.
func (l *Loop) Scope() *Scope {
	return l.scope
}

// Post schedules a callback for the current tick.
func (l *Loop) Post(cb *Callback, args ...any) {
	l.schedule(l.tick, func() (any, error) {
		return cb.Invoke(args...)
	})
}

// PostFunc schedules a bare function, the way host APIs accept unmanaged
// callbacks.
func (l *Loop) PostFunc(fn func() (any, error)) {
	l.schedule(l.tick, fn)
}

// After schedules a callback a number of ticks in the future, a stand-in for
// host timers.
func (l *Loop) After(ticks uint64, cb *Callback, args ...any) {
	l.schedule(l.tick+ticks, func() (any, error) {
		return cb.Invoke(args...)
	})
}

func (l *Loop) schedule(due uint64, run func() (any, error)) {
	l.seq++
	l.tasks = append(l.tasks, loopTask{seq: l.seq, due: due, run: run})
}

// Len returns the number of pending tasks.
func (l *Loop) Len() int {
	return len(l.tasks)
}

// Run drains the queue, advancing the tick when no task is due. Errors that
// reach the loop top level are logged, never swallowed: a chain with no
// terminal handler still leaves a visible record.
func (l *Loop) Run() {
	for len(l.tasks) > 0 {
		idx := l.nextReady()
		if idx < 0 {
			l.tick = l.earliestDue()
			continue
		}

		task := l.tasks[idx]
		l.tasks = append(l.tasks[:idx], l.tasks[idx+1:]...)

		if _, err := task.run(); err != nil {
			l.report(err)
		}
	}
}

// nextReady picks the due task scheduled earliest, preserving post order
// within a tick.
func (l *Loop) nextReady() int {
	best := -1
	for i, task := range l.tasks {
		if task.due > l.tick {
			continue
		}
		if best < 0 || task.seq < l.tasks[best].seq {
			best = i
		}
	}
	return best
}

func (l *Loop) earliestDue() uint64 {
	min := l.tasks[0].due
	for _, task := range l.tasks[1:] {
		if task.due < min {
			min = task.due
		}
	}
	return min
}

func (l *Loop) report(err error) {
	var escape *EscapeError
	if errors.As(err, &escape) {
		l.logger.Error("unhandled error at loop top level",
			"error", escape.Err.Error(),
			"trace", escape.Trace,
		)
		return
	}
	l.logger.Error("error at loop top level", "error", err.Error())
}
