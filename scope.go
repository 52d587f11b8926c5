package deferred

import (
	"fmt"
	"sort"
)

// Scope owns the mutable state of one logical event loop: the active-frame
// pointer and the binding slot registry. Both are touched only inside an
// installer bracket and by user code running within it, so a scope carries no
// locking: it belongs to the single goroutine driving its loop. A process
// hosting several independent loops gives each loop its own scope.
type Scope struct {
	active     *Frame
	slots      map[string]any
	extensions []Extension
}

// ScopeOption is a modifier for scopes
type ScopeOption func(*Scope)

// WithExtension returns an option that registers an extension on a scope
func WithExtension(ext Extension) ScopeOption {
	return func(s *Scope) {
		if err := s.UseExtension(ext); err != nil {
			panic(err)
		}
	}
}

// NewScope creates a new scope with optional configuration
func NewScope(opts ...ScopeOption) *Scope {
	s := &Scope{
		slots:      make(map[string]any),
		extensions: []Extension{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// defaultScope serves single-loop processes, the common embedding.
var defaultScope = NewScope()

// Default returns the process-wide scope.
func Default() *Scope {
	return defaultScope
}

// Active returns the frame whose environment is currently installed, or nil
// at rest (between callbacks, at the loop top level).
func (s *Scope) Active() *Frame {
	return s.active
}

// Get reads the registry slot for a fully-qualified identifier.
func (s *Scope) Get(id string) (any, bool) {
	val, ok := s.slots[id]
	return val, ok
}

// Set writes the registry slot for a fully-qualified identifier. Writes made
// inside an installer bracket are captured into the declaring frame's cell
// when the bracket restores.
func (s *Scope) Set(id string, val any) {
	s.slots[id] = val
}

// Get reads a registry slot on the default scope.
func Get(id string) (any, bool) {
	return defaultScope.Get(id)
}

// Set writes a registry slot on the default scope.
func Set(id string, val any) {
	defaultScope.Set(id, val)
}

// UseExtension registers an extension on the scope
func (s *Scope) UseExtension(ext Extension) error {
	s.extensions = append(s.extensions, ext)
	sort.SliceStable(s.extensions, func(i, j int) bool {
		return s.extensions[i].Order() < s.extensions[j].Order()
	})

	return ext.Init(s)
}

// Dispose shuts down the scope's extensions.
func (s *Scope) Dispose() error {
	for _, ext := range s.extensions {
		if err := ext.Dispose(s); err != nil {
			return fmt.Errorf("disposing extension %s: %w", ext.Name(), err)
		}
	}
	return nil
}
