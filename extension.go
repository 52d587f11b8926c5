package deferred

// Extension provides hooks into the invocation and dispatch lifecycle
type Extension interface {
	// Name returns the extension's name
	Name() string

	// Order determines extension execution order (lower = earlier)
	Order() int

	// Init is called when the extension is registered on a scope
	Init(scope *Scope) error

	// WrapInvoke intercepts the execution of a frame's work
	WrapInvoke(next func() (any, error), fr *Frame) (any, error)

	// OnDispatch observes an error entering dispatch, with the built trace
	OnDispatch(err error, fr *Frame, trace string)

	// OnHandled observes a handler concluding dispatch for an error
	OnHandled(fr *Frame, err error)

	// OnEscape observes an error leaving the frame chain unmanaged.
	// Escapes must stay observable even when nothing upstream reports them.
	OnEscape(err error, trace string)

	// Dispose is called when the scope is disposed
	Dispose(scope *Scope) error
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

func (e *BaseExtension) Init(scope *Scope) error {
	return nil
}

func (e *BaseExtension) WrapInvoke(next func() (any, error), fr *Frame) (any, error) {
	return next()
}

func (e *BaseExtension) OnDispatch(err error, fr *Frame, trace string) {
}

func (e *BaseExtension) OnHandled(fr *Frame, err error) {
}

func (e *BaseExtension) OnEscape(err error, trace string) {
}

func (e *BaseExtension) Dispose(scope *Scope) error {
	return nil
}
