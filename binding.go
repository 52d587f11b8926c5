package deferred

import "strings"

// bindingCell is a frame's persistent value cell for one declared identifier.
// The cell starts unassigned; the installer captures the registry slot's
// value into it whenever the frame restores, so a later invocation of a
// descendant reinstalls the value user code last wrote.
type bindingCell struct {
	id    string
	value any
	set   bool
}

// qualified reports whether id carries a namespace. Identifiers share one
// registry per scope, so unrelated components must not collide.
func qualified(id string) bool {
	if strings.ContainsAny(id, " \t\n") {
		return false
	}
	parts := strings.Split(id, ".")
	if len(parts) < 2 {
		return false
	}
	for _, part := range parts {
		if part == "" {
			return false
		}
	}
	return true
}

// Slot is a type-safe key for a dynamic binding slot
type Slot[T any] struct {
	id string
}

// NewSlot creates a typed slot for a fully-qualified identifier.
// It panics if the identifier is not qualified, matching frame construction.
func NewSlot[T any](id string) Slot[T] {
	if !qualified(id) {
		panic("deferred: slot identifier " + id + " is not fully qualified")
	}
	return Slot[T]{id: id}
}

// ID returns the slot's identifier, for use with WithBindings.
func (s Slot[T]) ID() string {
	return s.id
}

// Get retrieves the slot's current value from a scope's registry.
func (s Slot[T]) Get(scope *Scope) (T, bool) {
	val, ok := scope.Get(s.id)
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := val.(T)
	if !ok {
		var zero T
		return zero, false
	}
	return typed, true
}

// GetOrDefault retrieves the slot's value or returns a default.
func (s Slot[T]) GetOrDefault(scope *Scope, defaultVal T) T {
	if val, ok := s.Get(scope); ok {
		return val
	}
	return defaultVal
}

// MustGet retrieves the slot's value or panics if unbound.
func (s Slot[T]) MustGet(scope *Scope) T {
	val, ok := s.Get(scope)
	if !ok {
		panic("deferred: slot " + s.id + " is not bound")
	}
	return val
}

// Set writes the slot's registry value on a scope.
func (s Slot[T]) Set(scope *Scope, val T) {
	scope.Set(s.id, val)
}
