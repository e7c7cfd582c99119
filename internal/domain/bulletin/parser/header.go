package parser

import (
	"regexp"
	"strings"
)

const (
	marketPrefix    = "MARKET"
	commodityPrefix = "COMMODITIES"
)

var (
	columnSeparator = regexp.MustCompile(`\s{2,}`)
	marketLabel     = regexp.MustCompile(`(?i)market`)
	boundaryMarker  = regexp.MustCompile(`(?i)^(source:|note:|\*)`)
)

// Header is a detected table header line.
type Header struct {
	Index  int       // position of the header in the line sequence
	Type   TableType // layout selected by the header prefix
	Labels []string  // every column label, including the leading row-type label
}

// Schema returns the column labels after the row-type column.
func (h Header) Schema() []string {
	if len(h.Labels) < 2 {
		return nil
	}
	return h.Labels[1:]
}

// SplitColumns splits a line on runs of two or more whitespace characters.
// When that yields fewer than two cells it falls back to splitting on any
// whitespace run.
func SplitColumns(line string) []string {
	cols := splitNonEmpty(columnSeparator.Split(line, -1))
	if len(cols) < 2 {
		return strings.Fields(line)
	}
	return cols
}

func splitNonEmpty(parts []string) []string {
	cols := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			cols = append(cols, p)
		}
	}
	return cols
}

// IsMarketHeader reports whether the line opens a market-based table.
func IsMarketHeader(line string) bool {
	return strings.HasPrefix(strings.ToUpper(line), marketPrefix)
}

// IsCommodityHeader reports whether the line opens a commodity-based table.
func IsCommodityHeader(line string) bool {
	return strings.HasPrefix(strings.ToUpper(line), commodityPrefix)
}

// IsHeaderLine reports whether the line carries either header prefix,
// regardless of whether its column schema is well formed.
func IsHeaderLine(line string) bool {
	return IsMarketHeader(line) || IsCommodityHeader(line)
}

// IsBoundary reports whether the line ends the data region of a table:
// a source citation, a note, a footnote starting with "*", or a new header.
func IsBoundary(line string) bool {
	return boundaryMarker.MatchString(line) || IsHeaderLine(line)
}

// ClassifyHeader classifies a single line. ok is false when the line is not a
// header, has no column schema, or is a market header whose schema itself
// mentions "market" (a mis-split header).
func ClassifyHeader(line string) (typ TableType, labels []string, ok bool) {
	switch {
	case IsMarketHeader(line):
		typ = TableMarket
	case IsCommodityHeader(line):
		typ = TableCommodity
	default:
		return "", nil, false
	}

	labels = SplitColumns(line)
	if len(labels) < 2 {
		return "", nil, false
	}

	if typ == TableMarket {
		for _, l := range labels[1:] {
			if marketLabel.MatchString(l) {
				return "", nil, false
			}
		}
	}
	return typ, labels, true
}

// FindHeader scans forward from start and returns the first well-formed header.
func FindHeader(lines []string, start int) (Header, bool) {
	for i := max(start, 0); i < len(lines); i++ {
		typ, labels, ok := ClassifyHeader(lines[i])
		if !ok {
			continue
		}
		return Header{Index: i, Type: typ, Labels: labels}, true
	}
	return Header{}, false
}
