package deferred

import (
	"fmt"
	"runtime"
)

// Work is the unit of code a frame wraps. Arguments and results pass through
// the environment install/restore cycle unchanged.
type Work func(args ...any) (any, error)

// Handler is a frame's error handler. It receives the error that escaped a
// descendant's work together with the trace built at the first dispatch.
// A nil error return concludes dispatch with the handler's result; a non-nil
// error means the handler itself raised, and dispatch retries at the next
// ancestor with that error.
type Handler func(err error, trace string) (any, error)

// Frame captures a snapshot of an intended dynamic environment: an optional
// error handler, zero or more binding declarations, a non-owning parent link,
// and the wrapped work. Frames are immutable after construction and form a
// tree via parent links, because many callbacks may be constructed while the
// same frame is active.
type Frame struct {
	scope    *Scope
	name     string
	handler  Handler
	bindings []*bindingCell
	parent   *Frame
	work     Work
	location string

	// live counts installer brackets for this frame currently on the call
	// path; ancestors with live > 0 keep their registry slots as-is.
	live int
}

// Name returns the frame's display name, or "" for an anonymous frame.
func (f *Frame) Name() string {
	return f.name
}

// Parent returns the frame this one was constructed under, or nil for a root.
func (f *Frame) Parent() *Frame {
	return f.parent
}

// Location returns the file:line where the frame was constructed.
func (f *Frame) Location() string {
	return f.location
}

// Lookup reads a binding declared by this frame or one of its ancestors.
// For a frame currently on the call path it reads the live registry slot;
// otherwise it reads the value captured when the frame last restored.
func (f *Frame) Lookup(id string) (any, bool) {
	for fr := f; fr != nil; fr = fr.parent {
		for _, cell := range fr.bindings {
			if cell.id != id {
				continue
			}
			if fr.live > 0 {
				return fr.scope.Get(id)
			}
			return cell.value, cell.set
		}
	}
	return nil, false
}

// Depth returns the number of ancestors above f, the environment depth marker.
func Depth(f *Frame) int {
	n := 0
	for fr := f; fr != nil; fr = fr.parent {
		n++
	}
	return n
}

// Callback is the opaque callable returned by frame construction. Each Invoke
// runs the full environment install/restore cycle for the frame.
type Callback struct {
	frame *Frame
}

// Invoke runs the wrapped work under the frame's dynamic environment,
// passing arguments and results through unchanged.
func (c *Callback) Invoke(args ...any) (any, error) {
	return c.frame.scope.invoke(c.frame, args)
}

// Frame returns the frame backing this callback.
func (c *Callback) Frame() *Frame {
	return c.frame
}

// IsManaged reports whether v is a callback produced by this package.
// Libraries use it to avoid double-wrapping.
func IsManaged(v any) bool {
	_, ok := v.(*Callback)
	return ok
}

// FrameOption is a modifier for frame construction
type FrameOption func(*frameConfig)

type frameConfig struct {
	name     string
	handler  Handler
	bindings []string
	within   *Frame
	scope    *Scope
}

// WithName sets the frame's display name, used only in traces.
func WithName(name string) FrameOption {
	return func(cfg *frameConfig) {
		cfg.name = name
	}
}

// WithHandler sets the frame's error handler.
func WithHandler(h Handler) FrameOption {
	return func(cfg *frameConfig) {
		cfg.handler = h
	}
}

// WithBindings declares dynamic binding slots for the frame. Identifiers must
// be fully qualified (contain a dot-separated namespace); construction panics
// otherwise. Values are written by the work via the registry, not declared
// here.
func WithBindings(ids ...string) FrameOption {
	return func(cfg *frameConfig) {
		cfg.bindings = append(cfg.bindings, ids...)
	}
}

// Within overrides the captured parent: the new frame runs as a transient
// child of fr, layering its own handler and bindings on top of fr's full
// environment.
func Within(fr *Frame) FrameOption {
	return func(cfg *frameConfig) {
		cfg.within = fr
	}
}

// OnScope constructs the frame against an explicit scope instead of the
// process-wide default.
func OnScope(s *Scope) FrameOption {
	return func(cfg *frameConfig) {
		cfg.scope = s
	}
}

// New constructs a frame around work and returns its callback. The parent is
// the scope's active frame at this instant unless overridden with Within.
// Construction never executes work; only Invoke does.
func New(work Work, opts ...FrameOption) *Callback {
	return newCallback(work, opts)
}

// Wrap turns an arbitrary callback into one that preserves the current
// dynamic environment. Sugar for New with no handler or bindings.
func Wrap(work Work) *Callback {
	return newCallback(work, nil)
}

// Run constructs a frame and invokes it synchronously once, with no
// arguments. Used to establish a root environment around otherwise
// synchronous setup code.
func Run(work Work, opts ...FrameOption) (any, error) {
	cb := newCallback(work, opts)
	return cb.Invoke()
}

// WithLocal runs work immediately under a frame declaring the single binding
// id. The slot's value is restored when work returns.
func WithLocal(id string, work Work) (any, error) {
	cb := newCallback(work, []FrameOption{WithBindings(id)})
	return cb.Invoke()
}

// newCallback is the shared constructor. All exported constructors call it
// directly so the captured source location lands on user code.
func newCallback(work Work, opts []FrameOption) *Callback {
	if work == nil {
		panic("deferred: frame work must not be nil")
	}

	cfg := &frameConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	scope := cfg.scope
	if cfg.within != nil {
		if scope != nil && scope != cfg.within.scope {
			panic("deferred: Within frame belongs to a different scope")
		}
		scope = cfg.within.scope
	}
	if scope == nil {
		scope = Default()
	}

	parent := cfg.within
	if parent == nil {
		parent = scope.Active()
	}

	cells := make([]*bindingCell, 0, len(cfg.bindings))
	for _, id := range cfg.bindings {
		if !qualified(id) {
			panic(fmt.Sprintf("deferred: binding identifier %q is not fully qualified", id))
		}
		cells = append(cells, &bindingCell{id: id})
	}

	f := &Frame{
		scope:    scope,
		name:     cfg.name,
		handler:  cfg.handler,
		bindings: cells,
		parent:   parent,
		work:     work,
		location: callerLocation(3),
	}

	return &Callback{frame: f}
}

// callerLocation formats the construction site as file:line.
func callerLocation(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", file, line)
}
