package parser

import (
	"regexp"
	"strings"
)

var categoryKeyword = regexp.MustCompile(`(?i)rice|vegetable|fruit|fish|meat|egg|spice|sugar|poultry|livestock|commodity|summary|other`)

// IsCategoryTitle reports whether a line looks like a section title: it
// mentions a commodity group keyword and is shorter than maxLen characters.
func IsCategoryTitle(line string, maxLen int) bool {
	return len(line) < maxLen && categoryKeyword.MatchString(line)
}

// CleanCategory strips trailing colons and asterisks from a section title.
func CleanCategory(line string) string {
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(line), ":* "))
}

// locateCategory looks at up to window lines before the header, nearest first,
// for a section title. Other header lines are never taken as titles.
func locateCategory(lines []string, headerIdx, window, maxLen int) string {
	for i := headerIdx - 1; i >= 0 && i >= headerIdx-window; i-- {
		line := lines[i]
		if IsHeaderLine(line) {
			continue
		}
		if IsCategoryTitle(line, maxLen) {
			return CleanCategory(line)
		}
	}
	return ""
}
