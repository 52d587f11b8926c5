package deferred

import "strings"

// AnonymousFrame is the display name used in traces for unnamed frames.
const AnonymousFrame = "ANONYMOUS FRAME"

// traceHeader is the fixed first line of every trace.
const traceHeader = "error trace (innermost first):"

// buildTrace renders the faulting frame's ancestor chain, one line per frame,
// most deeply nested first. The format is fixed: a header line, then
// "<file:line> - <name>" per frame, with AnonymousFrame standing in for
// unnamed frames.
func buildTrace(f *Frame) string {
	var sb strings.Builder
	sb.WriteString(traceHeader)
	for fr := f; fr != nil; fr = fr.parent {
		name := fr.name
		if name == "" {
			name = AnonymousFrame
		}
		sb.WriteString("\n")
		sb.WriteString(fr.location)
		sb.WriteString(" - ")
		sb.WriteString(name)
	}
	return sb.String()
}
