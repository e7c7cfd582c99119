package parser

import (
	"cmp"
	"regexp"
	"slices"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cloudflare/ahocorasick"
)

var (
	// priceToken is one cell of a known-market run: a price, a price range or
	// an explicit "not available".
	priceToken = regexp.MustCompile(`(?i)^\s*(\d+\.\d+(?:\s*-\s*\d+\.\d+)?|not\s+available)`)
	// citySuffix captures "/ City" directly after a market name, stopping at
	// the first price cell.
	citySuffix = regexp.MustCompile(`(?i)^\s*/\s*([^\d/]*?)\s*(?:\d|not\s+available|$)`)
	hasLetter  = regexp.MustCompile(`\pL`)
)

// SplitMarketLabel splits "Market / City" on the first slash.
func SplitMarketLabel(label string) (market, city string) {
	market, city, _ = strings.Cut(label, "/")
	return strings.TrimSpace(market), strings.TrimSpace(city)
}

// pricesFor maps raw cells positionally onto commodities, truncating extra
// cells and padding missing ones with null ranges.
func pricesFor(commodities []string, cells []string) []PriceRange {
	prices := make([]PriceRange, len(commodities))
	for i, c := range commodities {
		prices[i].Commodity = c
		if i < len(cells) {
			prices[i].Low, prices[i].High = ParsePrice(cells[i])
		}
	}
	return prices
}

func alignedRow(cols []string, commodities []string) MarketRow {
	market, city := SplitMarketLabel(cols[0])
	return MarketRow{
		Market: market,
		City:   city,
		Prices: pricesFor(commodities, cols[1:]),
	}
}

type placedRow struct {
	line   int
	offset int
	row    MarketRow
}

// extractMarketRows recovers rows for a market table body.
//
// Lines whose column count matches the header are read positionally. The
// remaining lines are joined into one blob and searched for known market
// names followed by a run of price cells. Lines that no known market covered
// are read positionally as a last resort, truncated or padded.
func extractMarketRows(commodities []string, body []string, known []string) []MarketRow {
	var (
		placed []placedRow
		loose  []int
	)
	for i, line := range body {
		cols := SplitColumns(line)
		if len(cols) >= 2 && len(cols)-1 == len(commodities) {
			placed = append(placed, placedRow{line: i, row: alignedRow(cols, commodities)})
			continue
		}
		loose = append(loose, i)
	}

	if len(loose) > 0 {
		b := newBlob(body, loose)
		covered := make(map[int]bool)
		for _, m := range matchKnownMarkets(b.text, known, len(commodities)) {
			for _, li := range b.linesBetween(m.start, m.end) {
				covered[li] = true
			}
			placed = append(placed, placedRow{
				line:   b.lineAt(m.start),
				offset: m.start,
				row:    MarketRow{Market: m.name, City: m.city, Prices: pricesFor(commodities, m.cells)},
			})
		}

		for _, i := range loose {
			if covered[i] {
				continue
			}
			cols := SplitColumns(body[i])
			if len(cols) < 2 || !hasLetter.MatchString(cols[0]) {
				continue
			}
			placed = append(placed, placedRow{line: i, row: alignedRow(cols, commodities)})
		}
	}

	slices.SortStableFunc(placed, func(a, b placedRow) int {
		return cmp.Or(cmp.Compare(a.line, b.line), cmp.Compare(a.offset, b.offset))
	})

	rows := make([]MarketRow, 0, len(placed))
	for _, p := range placed {
		rows = append(rows, p.row)
	}
	return rows
}

// blob is the concatenation of non-aligned body lines with the start offset
// of each line, so matches can be traced back to the lines they consumed.
type blob struct {
	text   string
	lines  []int
	starts []int
	ends   []int
}

func newBlob(body []string, indices []int) blob {
	var sb strings.Builder
	b := blob{lines: indices}
	for k, i := range indices {
		if k > 0 {
			sb.WriteByte(' ')
		}
		b.starts = append(b.starts, sb.Len())
		sb.WriteString(body[i])
		b.ends = append(b.ends, sb.Len())
	}
	b.text = sb.String()
	return b
}

// lineAt returns the body line index containing offset.
func (b blob) lineAt(offset int) int {
	k := sort.Search(len(b.starts), func(k int) bool { return b.starts[k] > offset }) - 1
	return b.lines[max(k, 0)]
}

func (b blob) linesBetween(start, end int) []int {
	var out []int
	for k := range b.lines {
		if b.starts[k] < end && b.ends[k] > start {
			out = append(out, b.lines[k])
		}
	}
	return out
}

type knownMatch struct {
	name, city string
	start, end int
	cells      []string
}

// matchKnownMarkets searches text for each known name in list order. A name
// counts only at word boundaries and when at least one price cell follows it.
// Text consumed by an earlier match is never matched again.
func matchKnownMarkets(text string, known []string, limit int) []knownMatch {
	if text == "" || limit == 0 {
		return nil
	}
	names := make([]string, 0, len(known))
	for _, n := range known {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return nil
	}

	present := make(map[int]bool)
	for _, i := range ahocorasick.NewStringMatcher(names).Match([]byte(text)) {
		present[i] = true
	}

	var (
		matches  []knownMatch
		consumed [][2]int
	)
	for i, name := range names {
		if !present[i] {
			continue
		}
		for from := 0; from < len(text); {
			idx := strings.Index(text[from:], name)
			if idx < 0 {
				break
			}
			start, end := from+idx, from+idx+len(name)
			from = start + 1
			if !atWordBoundary(text, start, end) || overlapsAny(consumed, start, end) {
				continue
			}
			city, cells, stop := scanRun(text, end, limit)
			if len(cells) == 0 {
				continue
			}
			consumed = append(consumed, [2]int{start, stop})
			matches = append(matches, knownMatch{name: name, city: city, start: start, end: stop, cells: cells})
			break
		}
	}
	return matches
}

// scanRun reads an optional "/ City" suffix and then up to limit price cells
// starting at pos. It returns the offset after the last cell consumed.
func scanRun(text string, pos, limit int) (city string, cells []string, stop int) {
	stop = pos
	if m := citySuffix.FindStringSubmatchIndex(text[pos:]); m != nil {
		city = strings.TrimSpace(text[pos+m[2] : pos+m[3]])
		pos += m[3]
	}
	for len(cells) < limit {
		m := priceToken.FindStringSubmatchIndex(text[pos:])
		if m == nil {
			break
		}
		cells = append(cells, text[pos+m[2]:pos+m[3]])
		pos += m[1]
		stop = pos
	}
	return city, cells, stop
}

func atWordBoundary(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func overlapsAny(spans [][2]int, start, end int) bool {
	for _, s := range spans {
		if start < s[1] && end > s[0] {
			return true
		}
	}
	return false
}
