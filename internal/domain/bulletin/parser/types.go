package parser

import (
	"encoding/json"
	"fmt"
	"time"
)

// TableType identifies which of the two table layouts a table uses.
type TableType string

const (
	// TableMarket rows are keyed by marketplace, columns by commodity.
	TableMarket TableType = "market"
	// TableCommodity rows are keyed by commodity, columns by statistic.
	TableCommodity TableType = "commodity"
)

// PriceRange is one commodity cell of a market row.
// Low and High are nil when the bulletin had no value for the cell.
type PriceRange struct {
	Commodity string   `json:"commodity"`
	Low       *float64 `json:"low"`
	High      *float64 `json:"high"`
}

// MarketRow is a single marketplace line of a market table.
// Prices always has the same length and order as the table's Commodities.
type MarketRow struct {
	Market string       `json:"market"`
	City   string       `json:"city"`
	Prices []PriceRange `json:"prices"`
}

// CommodityEntry is a single line of a commodity table. Each statistic is
// independently optional, depending on the columns the header carried.
type CommodityEntry struct {
	Name       string   `json:"name"`
	Low        *float64 `json:"low"`
	High       *float64 `json:"high"`
	Prevailing *float64 `json:"prevailing"`
	Average    *float64 `json:"average"`
}

// Table is one reconstructed table. Market tables fill Commodities and Rows,
// commodity tables fill Entries.
type Table struct {
	Type        TableType        `json:"type"`
	Category    string           `json:"category"`
	Commodities []string         `json:"commodities,omitempty"`
	Rows        []MarketRow      `json:"markets,omitempty"`
	Entries     []CommodityEntry `json:"entries,omitempty"`
}

// Len returns the number of data rows in the table.
func (t Table) Len() int {
	if t.Type == TableCommodity {
		return len(t.Entries)
	}
	return len(t.Rows)
}

// PriceReport is the result of one extraction run.
type PriceReport struct {
	Date      Date    `json:"date"`
	SourceURL string  `json:"sourceUrl"`
	Tables    []Table `json:"tables"`
	RawText   string  `json:"rawText"`
}

// DateLayout is the wire format of a bulletin date.
const DateLayout = "2006-01-02"

// Date is a calendar day without time of day. It marshals as "2006-01-02".
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar day in UTC.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a "2006-01-02" string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	// Accept full timestamps too, records written by other producers carry them.
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		*d = NewDate(t)
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
