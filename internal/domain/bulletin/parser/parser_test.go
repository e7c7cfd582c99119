package parser

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lines(ls ...string) string {
	return strings.Join(ls, "\n")
}

func TestParser_Parse(t *testing.T) {
	p := New(DefaultConfig())

	t.Run("market table with null cell", func(t *testing.T) {
		tables := p.Parse(lines(
			"MARKET  Tomato  Onion",
			"Paco Market  40.00-48.00  not available",
			"Source: DA-NCR",
		))

		require.Len(t, tables, 1)
		tbl := tables[0]
		assert.Equal(t, TableMarket, tbl.Type)
		assert.Empty(t, tbl.Category)
		assert.Equal(t, []string{"Tomato", "Onion"}, tbl.Commodities)
		require.Len(t, tbl.Rows, 1)
		assert.Equal(t, MarketRow{
			Market: "Paco Market",
			City:   "",
			Prices: []PriceRange{
				{Commodity: "Tomato", Low: ptr(40), High: ptr(48)},
				{Commodity: "Onion", Low: nil, High: nil},
			},
		}, tbl.Rows[0])
	})

	t.Run("no header yields no tables", func(t *testing.T) {
		tables := p.Parse(lines("Department of Agriculture", "Price Monitoring", "Paco Market  40.00"))
		assert.NotNil(t, tables)
		assert.Empty(t, tables)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, p.Parse(""))
	})

	t.Run("market label with city", func(t *testing.T) {
		tables := p.Parse(lines(
			"VEGETABLES:",
			"MARKET  Cabbage",
			"Quinta Market / Manila  60.00",
		))
		require.Len(t, tables, 1)
		assert.Equal(t, "VEGETABLES", tables[0].Category)
		assert.Equal(t, "Quinta Market", tables[0].Rows[0].Market)
		assert.Equal(t, "Manila", tables[0].Rows[0].City)
	})

	t.Run("commodity table", func(t *testing.T) {
		tables := p.Parse(lines(
			"RICE",
			"COMMODITIES  LOW  HIGH  PREVAILING  AVERAGE",
			"Well Milled Rice  38.00  45.00  42.00  41.50",
			"Premium Rice  P 48.00  55.00  n/a  50.25",
			"LOW  1.00  2.00",
			"Orphan",
			"Note: prices per kilogram",
			"Garlic  100.00  120.00",
		))

		require.Len(t, tables, 1)
		tbl := tables[0]
		assert.Equal(t, TableCommodity, tbl.Type)
		assert.Equal(t, "RICE", tbl.Category)
		assert.Empty(t, tbl.Commodities)
		assert.Equal(t, []CommodityEntry{
			{Name: "Well Milled Rice", Low: ptr(38), High: ptr(45), Prevailing: ptr(42), Average: ptr(41.5)},
			{Name: "Premium Rice", Low: ptr(48), High: ptr(55), Prevailing: nil, Average: ptr(50.25)},
		}, tbl.Entries)
	})

	t.Run("missing statistic columns stay null", func(t *testing.T) {
		tables := p.Parse(lines(
			"COMMODITIES  PREVAILING",
			"Sugar, refined  75.00",
		))
		require.Len(t, tables, 1)
		e := tables[0].Entries[0]
		assert.Equal(t, "Sugar, refined", e.Name)
		assert.Equal(t, ptr(75), e.Prevailing)
		assert.Nil(t, e.Low)
		assert.Nil(t, e.High)
		assert.Nil(t, e.Average)
	})

	t.Run("header acts as boundary and opens next table", func(t *testing.T) {
		tables := p.Parse(lines(
			"MARKET  Tomato",
			"Paco Market  40.00",
			"COMMODITIES  LOW  HIGH",
			"Garlic  100.00  120.00",
		))
		require.Len(t, tables, 2)
		assert.Equal(t, TableMarket, tables[0].Type)
		assert.Len(t, tables[0].Rows, 1)
		assert.Equal(t, TableCommodity, tables[1].Type)
		assert.Equal(t, "Garlic", tables[1].Entries[0].Name)
	})

	t.Run("empty tables are discarded", func(t *testing.T) {
		tables := p.Parse(lines(
			"MARKET  Tomato",
			"Source: DA",
			"COMMODITIES  LOW",
			"Garlic  100.00",
		))
		require.Len(t, tables, 1)
		assert.Equal(t, TableCommodity, tables[0].Type)
		assert.Equal(t, ptr(100), tables[0].Entries[0].Low)
	})

	t.Run("malformed market header is skipped", func(t *testing.T) {
		tables := p.Parse(lines(
			"MARKET  Farmers Market  Tomato",
			"Cubao  40.00  41.00",
		))
		assert.Empty(t, tables)
	})

	t.Run("footnote ends table", func(t *testing.T) {
		tables := p.Parse(lines(
			"MARKET  Tomato",
			"Paco Market  40.00",
			"* prices are per kilogram",
			"Pritil Market  41.00",
		))
		require.Len(t, tables, 1)
		assert.Len(t, tables[0].Rows, 1)
	})

	t.Run("irregular whitespace is normalized", func(t *testing.T) {
		tables := p.Parse("\n\n   MARKET  Tomato   \n\t\n  Paco Market  40.00  \r\n")
		require.Len(t, tables, 1)
		assert.Equal(t, "Paco Market", tables[0].Rows[0].Market)
	})
}

func TestParser_MarketRows(t *testing.T) {
	p := New(Config{KnownMarkets: []string{"Farmers Market", "Quinta Market"}})

	t.Run("aligned, known and fallback rows keep document order", func(t *testing.T) {
		tables := p.Parse(lines(
			"MARKET  Tomato  Onion",
			"Agora Market  40.00  50.00",
			"Farmers Market / Cubao 40.00-45.00 not available",
			"Pasig Mega Market  41.00",
			"Source: DA",
		))

		require.Len(t, tables, 1)
		rows := tables[0].Rows
		require.Len(t, rows, 3)

		assert.Equal(t, "Agora Market", rows[0].Market)

		assert.Equal(t, "Farmers Market", rows[1].Market)
		assert.Equal(t, "Cubao", rows[1].City)
		assert.Equal(t, []PriceRange{
			{Commodity: "Tomato", Low: ptr(40), High: ptr(45)},
			{Commodity: "Onion"},
		}, rows[1].Prices)

		assert.Equal(t, "Pasig Mega Market", rows[2].Market)
		assert.Equal(t, []PriceRange{
			{Commodity: "Tomato", Low: ptr(41), High: ptr(41)},
			{Commodity: "Onion"},
		}, rows[2].Prices)
	})

	t.Run("known market wrapped over two lines", func(t *testing.T) {
		tables := p.Parse(lines(
			"MARKET  Tomato  Onion",
			"Quinta Market",
			"50.00  60.00",
		))
		require.Len(t, tables, 1)
		require.Len(t, tables[0].Rows, 1)
		row := tables[0].Rows[0]
		assert.Equal(t, "Quinta Market", row.Market)
		assert.Equal(t, ptr(50.0), row.Prices[0].Low)
		assert.Equal(t, ptr(60.0), row.Prices[1].High)
	})

	t.Run("extra cells are truncated", func(t *testing.T) {
		tables := p.Parse(lines(
			"MARKET  Tomato  Onion",
			"Agora Market  40.00  50.00  60.00",
		))
		require.Len(t, tables, 1)
		assert.Len(t, tables[0].Rows[0].Prices, 2)
		assert.Equal(t, ptr(50.0), tables[0].Rows[0].Prices[1].Low)
	})

	t.Run("numeric continuation lines are not rows", func(t *testing.T) {
		tables := p.Parse(lines(
			"MARKET  Tomato  Onion  Garlic",
			"Agora Market  40.00  50.00  60.00",
			"70.00  80.00",
		))
		require.Len(t, tables, 1)
		assert.Len(t, tables[0].Rows, 1)
	})
}

func TestMatchKnownMarkets(t *testing.T) {
	t.Run("consumed text is not matched again", func(t *testing.T) {
		text := "New Las Pinas Market 40.00 Las Pinas Market 50.00"
		matches := matchKnownMarkets(text, []string{"New Las Pinas Market", "Las Pinas Market"}, 1)
		require.Len(t, matches, 2)
		assert.Equal(t, "New Las Pinas Market", matches[0].name)
		assert.Equal(t, []string{"40.00"}, matches[0].cells)
		assert.Equal(t, "Las Pinas Market", matches[1].name)
		assert.Equal(t, []string{"50.00"}, matches[1].cells)
	})

	t.Run("list order decides overlapping names", func(t *testing.T) {
		text := "New Las Pinas Market 40.00"
		matches := matchKnownMarkets(text, []string{"Las Pinas Market", "New Las Pinas Market"}, 1)
		require.Len(t, matches, 1)
		assert.Equal(t, "Las Pinas Market", matches[0].name)
	})

	t.Run("names match case-sensitively on word boundaries", func(t *testing.T) {
		assert.Empty(t, matchKnownMarkets("quinta market 40.00", []string{"Quinta Market"}, 1))
		assert.Empty(t, matchKnownMarkets("XQuinta Market 40.00", []string{"Quinta Market"}, 1))
	})

	t.Run("name without prices is absent", func(t *testing.T) {
		assert.Empty(t, matchKnownMarkets("Quinta Market closed", []string{"Quinta Market"}, 2))
	})

	t.Run("run is capped at limit", func(t *testing.T) {
		matches := matchKnownMarkets("Quinta Market 1.00 2.00 3.00", []string{"Quinta Market"}, 2)
		require.Len(t, matches, 1)
		assert.Equal(t, []string{"1.00", "2.00"}, matches[0].cells)
	})

	t.Run("empty catalog", func(t *testing.T) {
		assert.Nil(t, matchKnownMarkets("Quinta Market 1.00", nil, 2))
		assert.Nil(t, matchKnownMarkets("Quinta Market 1.00", []string{""}, 2))
	})
}

func TestParser_TablesStopsEarly(t *testing.T) {
	p := New(DefaultConfig())
	text := lines(
		"MARKET  Tomato",
		"Paco Market  40.00",
		"COMMODITIES  LOW",
		"Garlic  100.00",
	)

	var got []Table
	for tbl := range p.Tables(text) {
		got = append(got, tbl)
		break
	}
	require.Len(t, got, 1)
	assert.Equal(t, TableMarket, got[0].Type)
}

func TestParser_BuildReport(t *testing.T) {
	p := New(DefaultConfig())
	text := lines("MARKET  Tomato", "Paco Market  40.00")
	date := time.Date(2025, time.July, 26, 15, 4, 5, 0, time.FixedZone("PHT", 8*3600))

	report := p.BuildReport(text, "https://example.com/a.pdf", date)

	assert.Equal(t, "2025-07-26", report.Date.String())
	assert.Equal(t, "https://example.com/a.pdf", report.SourceURL)
	assert.Equal(t, text, report.RawText)
	assert.Len(t, report.Tables, 1)
}

// syntheticBulletin builds a bulletin with market tables whose rows carry a
// random number of cells, so padding and truncation are both exercised.
func syntheticBulletin(faker *gofakeit.Faker) string {
	var sb strings.Builder
	for range faker.Number(1, 4) {
		sb.WriteString("VEGETABLES\n")

		n := faker.Number(1, 5)
		header := []string{"MARKET"}
		for i := range n {
			header = append(header, fmt.Sprintf("Item%d %s", i, faker.Noun()))
		}
		sb.WriteString(strings.Join(header, "  ") + "\n")

		for range faker.Number(0, 8) {
			row := []string{fmt.Sprintf("%s Public Market", faker.LastName())}
			for range faker.Number(0, n+2) {
				a, b := faker.Float64Range(10, 500), faker.Float64Range(10, 500)
				switch faker.Number(0, 3) {
				case 0:
					row = append(row, "not available")
				case 1:
					row = append(row, fmt.Sprintf("%.2f", a))
				default:
					row = append(row, fmt.Sprintf("%.2f-%.2f", a, b))
				}
			}
			sb.WriteString(strings.Join(row, "  ") + "\n")
		}
		sb.WriteString("Source: DA-AMAS\n")
	}
	return sb.String()
}

func TestParser_Invariants(t *testing.T) {
	faker := gofakeit.New(42)
	p := New(Config{KnownMarkets: []string{"Agora Public Market"}})

	for i := range 200 {
		text := syntheticBulletin(faker)

		tables := p.Parse(text)
		for _, tbl := range tables {
			assert.Positive(t, tbl.Len(), "sample %d", i)
			if tbl.Type != TableMarket {
				continue
			}
			for _, row := range tbl.Rows {
				require.Len(t, row.Prices, len(tbl.Commodities), "sample %d", i)
				for k, pr := range row.Prices {
					assert.Equal(t, tbl.Commodities[k], pr.Commodity)
					if pr.Low != nil && pr.High != nil {
						assert.LessOrEqual(t, *pr.Low, *pr.High, "sample %d", i)
					}
				}
			}
		}

		assert.Equal(t, tables, p.Parse(text), "parse must be idempotent, sample %d", i)
	}
}

func TestParser_Concurrent(t *testing.T) {
	p := New(Config{KnownMarkets: []string{"Quinta Market"}})
	text := lines(
		"MARKET  Tomato  Onion",
		"Quinta Market 40.00 50.00",
		"Agora Market  41.00  51.00",
	)
	want := p.Parse(text)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				assert.Equal(t, want, p.Parse(text))
			}
		}()
	}
	wg.Wait()
}
