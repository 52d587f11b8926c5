package extensions

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m1gwings/treedrawer/tree"

	deferred "github.com/deferred-fn/deferred-go"
)

// TreeDumpExtension records the frame tree as invocations pass through it
// and renders the tree when an error escapes unmanaged. Frames only carry
// non-owning parent links, so the child index exists here, scoped to what
// the extension has observed, and never extends a frame's lifetime beyond
// the extension's own.
type TreeDumpExtension struct {
	deferred.BaseExtension
	logger *slog.Logger

	seen     map[*deferred.Frame]bool
	children map[*deferred.Frame][]*deferred.Frame
	roots    []*deferred.Frame
}

// NewTreeDumpExtension creates a new tree dump extension writing to the
// given slog handler.
func NewTreeDumpExtension(logHandler slog.Handler) *TreeDumpExtension {
	return &TreeDumpExtension{
		BaseExtension: deferred.NewBaseExtension("tree-dump"),
		logger:        slog.New(logHandler),
		seen:          make(map[*deferred.Frame]bool),
		children:      make(map[*deferred.Frame][]*deferred.Frame),
	}
}

// WrapInvoke records the invoked frame and its ancestor chain.
func (e *TreeDumpExtension) WrapInvoke(next func() (any, error), fr *deferred.Frame) (any, error) {
	e.record(fr)
	return next()
}

// OnEscape renders the observed frame tree alongside the escape.
func (e *TreeDumpExtension) OnEscape(err error, trace string) {
	e.logger.Error("error escaped unmanaged",
		"error", err.Error(),
		"frame_tree", e.Render(),
	)
}

// Dispose drops the observed tree.
func (e *TreeDumpExtension) Dispose(scope *deferred.Scope) error {
	e.seen = make(map[*deferred.Frame]bool)
	e.children = make(map[*deferred.Frame][]*deferred.Frame)
	e.roots = nil
	return nil
}

func (e *TreeDumpExtension) record(fr *deferred.Frame) {
	for f := fr; f != nil && !e.seen[f]; f = f.Parent() {
		e.seen[f] = true
		if parent := f.Parent(); parent != nil {
			e.children[parent] = append(e.children[parent], f)
		} else {
			e.roots = append(e.roots, f)
		}
	}
}

// Render draws every observed root's subtree.
func (e *TreeDumpExtension) Render() string {
	if len(e.roots) == 0 {
		return "(no frames observed)"
	}

	out := ""
	for _, root := range e.roots {
		t := tree.NewTree(tree.NodeString(frameLabel(root)))
		e.draw(t, root)
		out += t.String()
	}
	return out
}

func (e *TreeDumpExtension) draw(t *tree.Tree, fr *deferred.Frame) {
	for i, child := range e.children[fr] {
		t.AddChild(tree.NodeString(frameLabel(child)))
		sub, err := t.Child(i)
		if err != nil {
			continue
		}
		e.draw(sub, child)
	}
}

func frameLabel(fr *deferred.Frame) string {
	return fmt.Sprintf("%s (%s)", frameName(fr), fr.Location())
}

// SilentHandler is a slog.Handler that discards all log output
// Useful for testing when you don't want log output
type SilentHandler struct{}

// NewSilentHandler creates a new silent log handler
func NewSilentHandler() *SilentHandler {
	return &SilentHandler{}
}

func (h *SilentHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return false
}

func (h *SilentHandler) Handle(ctx context.Context, record slog.Record) error {
	return nil
}

func (h *SilentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h
}

func (h *SilentHandler) WithGroup(name string) slog.Handler {
	return h
}
