package deferred

import "runtime/debug"

// undoEntry records one installed binding for LIFO restoration.
type undoEntry struct {
	cell *bindingCell
	prev any
	had  bool
}

// invoke runs one environment install/restore cycle for frame f.
//
// The bracket: set the active pointer to f, install the dormant suffix of
// f's ancestor chain root-first, install f's own bindings, run the work,
// restore f's own bindings, dispatch if the work raised, then unwind the
// ancestor installs and the active pointer. Restoration runs under defer on
// every exit path, including a panic inside a handler during dispatch.
func (s *Scope) invoke(f *Frame, args []any) (result any, err error) {
	prev := s.active
	s.active = f
	defer func() {
		s.active = prev
	}()

	// Ancestors still physically on the call path keep their live slots;
	// only the dormant suffix is reinstalled. Liveness is upward-closed
	// along the chain, so the walk stops at the first live frame.
	chain := dormantAncestors(f)
	var outer []undoEntry
	for _, a := range chain {
		s.install(a, true, &outer)
		a.live++
	}
	defer func() {
		for _, a := range chain {
			a.live--
		}
		s.restore(outer)
	}()

	var own []undoEntry
	s.install(f, false, &own)
	f.live++

	ownRestored := false
	restoreOwn := func() {
		if ownRestored {
			return
		}
		ownRestored = true
		f.live--
		s.restore(own)
	}
	defer restoreOwn()

	result, err = s.runWork(f, args)

	// Own bindings come out before any handler runs: a frame's locals are
	// never visible to its own catch.
	restoreOwn()

	if err != nil {
		result, err = s.dispatch(f, err)
	}

	return result, err
}

// runWork executes the wrapped work through the scope's extension chain,
// converting a panic into a PanicError so dispatch sees every raise the
// same way.
func (s *Scope) runWork(f *Frame, args []any) (any, error) {
	next := func() (result any, err error) {
		defer func() {
			if r := recover(); r != nil {
				result = nil
				err = &PanicError{Value: r, Stack: debug.Stack()}
			}
		}()
		return f.work(args...)
	}

	// Apply extensions in reverse order (last registered wraps first)
	for i := len(s.extensions) - 1; i >= 0; i-- {
		ext := s.extensions[i]
		currentNext := next
		next = func() (any, error) {
			return ext.WrapInvoke(currentNext, f)
		}
	}

	return next()
}

// install pushes the registry's current value for each of f's declared
// identifiers onto the undo list. Installing the frame as an ancestor writes
// the cell's captured value back into the slot, re-establishing the
// environment user code last wrote. Installing the frame's own bindings
// leaves the slot untouched: the prior value stays until the work writes.
func (s *Scope) install(f *Frame, asAncestor bool, undo *[]undoEntry) {
	for _, cell := range f.bindings {
		prevVal, had := s.slots[cell.id]
		*undo = append(*undo, undoEntry{cell: cell, prev: prevVal, had: had})
		if asAncestor && cell.set {
			s.slots[cell.id] = cell.value
		}
	}
}

// restore pops undo entries in reverse of installation order. Each slot's
// current value is captured back into its cell before the pre-installation
// value returns to the registry, so the environment survives for later
// re-entry by descendants.
func (s *Scope) restore(undo []undoEntry) {
	for i := len(undo) - 1; i >= 0; i-- {
		e := undo[i]
		if cur, ok := s.slots[e.cell.id]; ok {
			e.cell.value = cur
			e.cell.set = true
		} else {
			e.cell.value = nil
			e.cell.set = false
		}
		if e.had {
			s.slots[e.cell.id] = e.prev
		} else {
			delete(s.slots, e.cell.id)
		}
	}
}

// dormantAncestors collects f's ancestors that are not on the current call
// path, ordered root-first so deeper frames shadow shallower ones.
func dormantAncestors(f *Frame) []*Frame {
	var chain []*Frame
	for a := f.parent; a != nil && a.live == 0; a = a.parent {
		chain = append(chain, a)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}
