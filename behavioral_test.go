package deferred

import (
	"errors"
	"testing"
)

// TestBehavioral_EnvironmentReentry checks that a callback constructed while
// a binding and handler were active re-enters that environment when invoked
// later from a bare context.
func TestBehavioral_EnvironmentReentry(t *testing.T) {
	scope := NewScope()

	var later *Callback
	var observed any
	handled := false

	_, err := Run(func(args ...any) (any, error) {
		scope.Set("test.x", 2)
		later = New(func(args ...any) (any, error) {
			observed, _ = scope.Get("test.x")
			return nil, errors.New("deferred failure")
		}, OnScope(scope))
		return nil, nil
	}, WithName("R"), WithBindings("test.x"), OnScope(scope), WithHandler(func(err error, trace string) (any, error) {
		handled = true
		return nil, nil
	}))
	if err != nil {
		t.Fatalf("Failed to establish the root environment: %v", err)
	}

	// The ambient context moved on: X is 1 and no handler is active.
	scope.Set("test.x", 1)

	if _, err := later.Invoke(); err != nil {
		t.Fatalf("Expected the captured handler to claim the error, got %v", err)
	}

	if observed != 2 {
		t.Errorf("Expected the deferred work to observe X=2, got %v", observed)
	}
	if !handled {
		t.Error("Expected the error delivered to the captured handler, not the ambient context")
	}
	if val, _ := scope.Get("test.x"); val != 1 {
		t.Errorf("Expected the ambient value restored to 1, got %v", val)
	}
}

// TestBehavioral_SiblingBranching checks the spaghetti-stack case: two
// callbacks branching from one root stay independently live.
func TestBehavioral_SiblingBranching(t *testing.T) {
	scope := NewScope()

	var first, second *Callback
	handledCount := 0

	_, err := Run(func(args ...any) (any, error) {
		scope.Set("test.shared", "from-root")
		first = New(func(args ...any) (any, error) {
			val, _ := scope.Get("test.shared")
			return val, errors.New("first fails")
		}, WithName("first"), OnScope(scope))
		second = New(func(args ...any) (any, error) {
			val, _ := scope.Get("test.shared")
			return val, nil
		}, WithName("second"), OnScope(scope))
		return nil, nil
	}, WithName("R"), WithBindings("test.shared"), OnScope(scope), WithHandler(func(err error, trace string) (any, error) {
		handledCount++
		return nil, nil
	}))
	if err != nil {
		t.Fatalf("Failed to establish the root environment: %v", err)
	}

	if _, err := first.Invoke(); err != nil {
		t.Fatalf("Expected the root handler to claim the first error, got %v", err)
	}
	if handledCount != 1 {
		t.Fatalf("Expected exactly one dispatch, got %d", handledCount)
	}

	// The sibling's pending environment is untouched by the dispatch.
	result, err := second.Invoke()
	if err != nil {
		t.Fatalf("Failed to invoke the sibling: %v", err)
	}
	if result != "from-root" {
		t.Errorf("Expected the sibling to observe the root binding, got %v", result)
	}
}

// TestBehavioral_LocalHiddenFromOwnCatch checks that a frame's own bindings
// are restored before its own handler runs.
func TestBehavioral_LocalHiddenFromOwnCatch(t *testing.T) {
	scope := NewScope()
	scope.Set("test.v", "outer")

	var handlerSaw any

	cb := New(func(args ...any) (any, error) {
		scope.Set("test.v", "inner")
		return nil, errors.New("boom")
	}, WithBindings("test.v"), OnScope(scope), WithHandler(func(err error, trace string) (any, error) {
		handlerSaw, _ = scope.Get("test.v")
		return nil, nil
	}))

	if _, err := cb.Invoke(); err != nil {
		t.Fatalf("Expected the frame's own handler to conclude dispatch, got %v", err)
	}

	if handlerSaw != "outer" {
		t.Errorf("Expected the handler to observe the pre-frame value, got %v", handlerSaw)
	}
}

// TestBehavioral_BindingSymmetry checks that any invocation, success or
// failure, leaves every declared slot at its pre-invocation value.
func TestBehavioral_BindingSymmetry(t *testing.T) {
	scope := NewScope()
	ids := []string{"test.a", "test.b", "test.c"}
	for i, id := range ids {
		scope.Set(id, i)
	}

	fail := false
	cb := New(func(args ...any) (any, error) {
		for _, id := range ids {
			scope.Set(id, "scribbled")
		}
		if fail {
			return nil, errors.New("boom")
		}
		return nil, nil
	}, WithBindings(ids...), OnScope(scope))

	for _, fail = range []bool{false, true} {
		_, _ = cb.Invoke()
		for i, id := range ids {
			if val, _ := scope.Get(id); val != i {
				t.Errorf("fail=%v: expected %s restored to %d, got %v", fail, id, i, val)
			}
		}
	}
}

// TestBehavioral_IdempotentConstruction checks the library-interop predicate.
func TestBehavioral_IdempotentConstruction(t *testing.T) {
	fn := func(args ...any) (any, error) { return nil, nil }

	if !IsManaged(New(fn, OnScope(NewScope()))) {
		t.Error("Expected is-managed to hold for a constructed callback")
	}
	if IsManaged(fn) {
		t.Error("Expected is-managed to fail for an unwrapped callable")
	}
}
