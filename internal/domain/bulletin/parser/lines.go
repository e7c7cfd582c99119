// Package parser rebuilds price tables from the text layer of a price bulletin.
//
// PDF text extraction flattens the bulletin's tables into lines with irregular
// whitespace. The parser recovers table type, column schema and rows from that
// stream using textual heuristics only: header prefixes, runs of two or more
// spaces as column separators, a catalog of known market names, and boundary
// markers such as "Source:" and "Note:".
//
// Parsing is pure. A Parser holds only read-only configuration and can be used
// from several goroutines at once.
package parser

import "strings"

// Lines splits raw text into trimmed, non-empty lines, preserving order.
func Lines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		lines = append(lines, l)
	}
	return lines
}
