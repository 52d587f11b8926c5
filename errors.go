package deferred

import "fmt"

// EscapeError wraps an error for which no ancestor handler remained: the
// error re-raises into whatever dynamic environment is active outside the
// engine, typically an event loop's top-level boundary. The trace built at
// first dispatch rides along for the ambient reporter.
type EscapeError struct {
	Err   error
	Trace string
}

func (e *EscapeError) Error() string {
	return fmt.Sprintf("unhandled error escaped frame chain: %v", e.Err)
}

func (e *EscapeError) Unwrap() error {
	return e.Err
}

// PanicError converts a panic inside a frame's work or handler into an error
// value so dispatch sees every raise the same way.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in frame: %v", e.Value)
}
