package parser

import (
	"regexp"
	"strings"
)

var (
	nameLabel       = regexp.MustCompile(`(?i)commodit(y|ies)`)
	lowLabel        = regexp.MustCompile(`(?i)low`)
	highLabel       = regexp.MustCompile(`(?i)high`)
	prevailingLabel = regexp.MustCompile(`(?i)prevailing`)
	averageLabel    = regexp.MustCompile(`(?i)average`)

	statisticKeyword = regexp.MustCompile(`(?i)^(low|high|prevailing|average)$`)
)

// commodityColumns maps entry fields to column positions. -1 means the header
// had no such column.
type commodityColumns struct {
	name, low, high, prevailing, average int
}

func mapCommodityColumns(labels []string) commodityColumns {
	return commodityColumns{
		name:       labelIndex(labels, nameLabel),
		low:        labelIndex(labels, lowLabel),
		high:       labelIndex(labels, highLabel),
		prevailing: labelIndex(labels, prevailingLabel),
		average:    labelIndex(labels, averageLabel),
	}
}

func labelIndex(labels []string, re *regexp.Regexp) int {
	for i, l := range labels {
		if re.MatchString(l) {
			return i
		}
	}
	return -1
}

func cell(cols []string, idx int) string {
	if idx < 0 || idx >= len(cols) {
		return ""
	}
	return cols[idx]
}

func numberCell(cols []string, idx int) *float64 {
	if idx < 0 || idx >= len(cols) {
		return nil
	}
	return ParseNumber(cols[idx])
}

// entry builds a CommodityEntry from one body line. ok is false for lines
// with fewer than two columns, an empty name, or a stray statistic label in
// the name position.
func (c commodityColumns) entry(line string) (CommodityEntry, bool) {
	cols := SplitColumns(line)
	if len(cols) < 2 {
		return CommodityEntry{}, false
	}

	name := strings.TrimSpace(cell(cols, c.name))
	if name == "" || statisticKeyword.MatchString(name) {
		return CommodityEntry{}, false
	}

	return CommodityEntry{
		Name:       name,
		Low:        numberCell(cols, c.low),
		High:       numberCell(cols, c.high),
		Prevailing: numberCell(cols, c.prevailing),
		Average:    numberCell(cols, c.average),
	}, true
}

// extractEntries converts the body lines of a commodity table into entries.
func extractEntries(labels []string, body []string) []CommodityEntry {
	cols := mapCommodityColumns(labels)
	var entries []CommodityEntry
	for _, line := range body {
		if e, ok := cols.entry(line); ok {
			entries = append(entries, e)
		}
	}
	return entries
}
