// Package stacktrace shortens panic stacks to the frames of this module.
package stacktrace

import "strings"

// InternalPaths returns the "internal/...go:line" locations found in a
// runtime/debug stack, innermost first.
func InternalPaths(stack []byte) []string {
	var paths []string
	for line := range strings.Lines(string(stack)) {
		line = strings.TrimSpace(line)

		dot := strings.Index(line, ".go:")
		at := strings.Index(line, "/internal/")
		if dot == -1 || at == -1 || at > dot {
			continue
		}

		loc := line[at+1:]
		if sp := strings.IndexByte(loc, ' '); sp != -1 {
			loc = loc[:sp]
		}
		paths = append(paths, loc)
	}
	return paths
}
