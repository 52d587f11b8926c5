package deferred

import "runtime/debug"

// dispatch walks the frame tree, not the physical call stack, looking for a
// handler for an error that escaped f's work. By the time a deferred callback
// fails, the frame that should handle the error may have returned long ago;
// only the captured parent links still connect the faulting frame to its
// logical ancestors.
//
// The trace is built once, before the walk, and reused across handler
// retries. A handler that itself raises moves the walk to the next ancestor
// with the new error. An exhausted chain re-raises into the ambient context
// as an EscapeError.
func (s *Scope) dispatch(f *Frame, cause error) (any, error) {
	trace := buildTrace(f)

	for _, ext := range s.extensions {
		ext.OnDispatch(cause, f, trace)
	}

	current := cause
	for candidate := f; candidate != nil; candidate = candidate.parent {
		if candidate.handler == nil {
			continue
		}

		result, herr := s.runHandler(candidate, current, trace)
		if herr == nil {
			for _, ext := range s.extensions {
				ext.OnHandled(candidate, current)
			}
			return result, nil
		}
		current = herr
	}

	escape := &EscapeError{Err: current, Trace: trace}
	for _, ext := range s.extensions {
		ext.OnEscape(current, trace)
	}
	return nil, escape
}

// runHandler invokes a frame's handler with the active pointer at the
// handler-owning frame, so frames constructed inside a handler parent there.
// The faulting frame's own bindings are already restored; the candidate's
// ancestor bindings stay as installed by the invocation. A handler panic
// counts as the handler raising.
func (s *Scope) runHandler(candidate *Frame, cause error, trace string) (result any, err error) {
	prev := s.active
	s.active = candidate
	defer func() {
		s.active = prev
		if r := recover(); r != nil {
			result = nil
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	return candidate.handler(cause, trace)
}
