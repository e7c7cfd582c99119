package parser

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	notAvailable    = regexp.MustCompile(`(?i)not\s+available`)
	nonPriceChars   = regexp.MustCompile(`[^\d.]`)
	nonNumericChars = regexp.MustCompile(`[^\d.\-]`)
)

// ParsePrice converts a raw price cell into a (low, high) pair.
//
//	""                 -> (nil, nil)
//	"Not Available"    -> (nil, nil)
//	"40.00-48.00"      -> (40, 48)
//	"P 45.50"          -> (45.5, 45.5)
//
// A side that cannot be parsed is nil. A reversed range is swapped so that
// low <= high whenever both sides are present.
func ParsePrice(raw string) (low, high *float64) {
	raw = strings.TrimSpace(raw)
	if raw == "" || notAvailable.MatchString(raw) {
		return nil, nil
	}

	if left, right, ok := strings.Cut(raw, "-"); ok {
		low = parseStripped(left, nonPriceChars)
		high = parseStripped(right, nonPriceChars)
		if low != nil && high != nil && *low > *high {
			low, high = high, low
		}
		return low, high
	}

	v := parseStripped(raw, nonPriceChars)
	if v == nil {
		return nil, nil
	}
	same := *v
	return v, &same
}

// ParseNumber parses a statistic cell of a commodity table. Everything except
// digits, dots and minus signs is discarded first.
func ParseNumber(raw string) *float64 {
	return parseStripped(raw, nonNumericChars)
}

func parseStripped(s string, strip *regexp.Regexp) *float64 {
	cleaned := strip.ReplaceAllString(s, "")
	if cleaned == "" {
		return nil
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return nil
	}
	f := d.InexactFloat64()
	return &f
}
