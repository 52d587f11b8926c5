// Package deferred propagates dynamic environments into deferred callbacks.
//
// # Overview
//
// Callback-style asynchronous code loses its dynamic environment: by the time
// an event loop invokes a callback, the error handlers and dynamically-scoped
// variable bindings that were in effect when the callback was registered are
// long gone from the physical call stack. This package captures that
// environment at construction time and transparently re-establishes it at
// invocation time, however unrelated the invoking call stack is.
//
// Three concepts carry the design:
//
//  1. Frames: immutable snapshots of an intended dynamic environment (an
//     optional error handler, declared binding slots, and a parent link)
//     wrapped around a unit of work.
//  2. Scopes: per-event-loop owners of the active-frame pointer and the
//     binding slot registry.
//  3. Dispatch: the ancestor-chain walk that delivers an escaped error to the
//     nearest handler, retrying at the next ancestor when a handler itself
//     raises.
//
// # Basic Usage
//
// Wrap a callback before handing it to the host's loop:
//
//	cb := deferred.New(func(args ...any) (any, error) {
//	    return handleReply(args[0])
//	}, deferred.WithName("reply"), deferred.WithHandler(func(err error, trace string) (any, error) {
//	    log.Printf("reply failed: %v\n%s", err, trace)
//	    return nil, nil
//	}))
//
//	registerTimer(100*time.Millisecond, func() { cb.Invoke(payload) })
//
// When the timer fires, the work runs as if the registering frame were still
// on the stack: its bindings are installed, and an error raised by the work
// reaches the handler above, not the timer's call site.
//
// # Dynamic Bindings
//
// Frames declare binding slots by fully-qualified identifier; work assigns
// them through the registry:
//
//	cb := deferred.New(work, deferred.WithBindings("myapp.request_id"))
//
//	// inside work:
//	deferred.Set("myapp.request_id", id)
//
// Installation and restoration are symmetric on every exit path: after any
// invocation, success or failure, each declared slot holds its pre-invocation
// value again. The values written by work persist in the frame and are
// reinstalled when a descendant callback runs later.
//
// Typed access goes through slots:
//
//	requestID := deferred.NewSlot[string]("myapp.request_id")
//	requestID.Set(scope, id)
//	id, ok := requestID.Get(scope)
//
// # Frame Trees
//
// Frames form a tree, not a stack: any number of callbacks may be constructed
// while one frame is active, and each captures that frame as its parent. The
// siblings stay independently live, and dispatch for one never disturbs the
// pending state of another. Parent links are non-owning; a frame is reclaimed
// once nothing holds its callback and no reachable descendant needs it.
//
// # Error Dispatch
//
// An error escaping a frame's work, whether an error return or a recovered
// panic, walks the frame tree via parent links. The first ancestor with a handler
// runs it; a handler returning nil concludes dispatch with the handler's
// result, and a handler returning an error moves the walk up with the new
// error. The trace is built once and reused across retries. If the chain
// exhausts, the error re-raises into the ambient context as an *EscapeError,
// carrying the trace.
//
// # Scopes and Threading
//
// The engine is single-threaded and cooperative. One Scope belongs to one
// event-loop goroutine; the package-level Default scope serves single-loop
// processes. A process hosting several independent loops creates a Scope per
// loop and constructs frames with OnScope.
//
// # Extensions
//
// Extensions observe and intercept the lifecycle: wrapping work execution,
// and watching dispatch, handling, and unmanaged escapes. See the extensions
// subpackage for a slog-backed logger and a frame-tree dump.
package deferred
