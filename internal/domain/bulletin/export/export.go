// Package export renders price reports as CSV and XLSX files.
package export

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/da-price-monitor/internal/domain/bulletin/parser"
	"github.com/FACorreiaa/da-price-monitor/pkg/money"
)

const (
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	summarySheet = "Summary"
	maxSheetName = 31
)

var invalidSheetChars = regexp.MustCompile(`[\[\]:*?/\\]`)

// Row is one flattened price: a market cell or a commodity entry.
type Row struct {
	Table      int    `csv:"table"`
	Type       string `csv:"type"`
	Category   string `csv:"category"`
	Market     string `csv:"market"`
	City       string `csv:"city"`
	Commodity  string `csv:"commodity"`
	Low        string `csv:"low"`
	High       string `csv:"high"`
	Prevailing string `csv:"prevailing"`
	Average    string `csv:"average"`
}

// Rows flattens every table of report, in table order.
func Rows(report parser.PriceReport) []Row {
	rows := []Row{}
	for i, t := range report.Tables {
		switch t.Type {
		case parser.TableMarket:
			for _, r := range t.Rows {
				for _, p := range r.Prices {
					rows = append(rows, Row{
						Table:     i + 1,
						Type:      string(t.Type),
						Category:  t.Category,
						Market:    r.Market,
						City:      r.City,
						Commodity: p.Commodity,
						Low:       number(p.Low),
						High:      number(p.High),
					})
				}
			}
		case parser.TableCommodity:
			for _, e := range t.Entries {
				rows = append(rows, Row{
					Table:      i + 1,
					Type:       string(t.Type),
					Category:   t.Category,
					Commodity:  e.Name,
					Low:        number(e.Low),
					High:       number(e.High),
					Prevailing: number(e.Prevailing),
					Average:    number(e.Average),
				})
			}
		}
	}
	return rows
}

func number(v *float64) string {
	if v == nil {
		return ""
	}
	return decimal.NewFromFloat(*v).StringFixed(2)
}

// WriteCSV writes report as one flat CSV.
func WriteCSV(w io.Writer, report parser.PriceReport) error {
	rows := Rows(report)
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

// WriteXLSX writes report as a workbook with a summary sheet followed by one
// sheet per table.
func WriteXLSX(w io.Writer, report parser.PriceReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	summary := [][]any{
		{"Date", report.Date.String()},
		{"Source", report.SourceURL},
		{"Tables", len(report.Tables)},
	}
	for i, row := range summary {
		if err := setRow(f, summarySheet, i+1, row); err != nil {
			return err
		}
	}
	if err := f.SetColStyle(summarySheet, "A", bold); err != nil {
		return fmt.Errorf("failed to style summary: %w", err)
	}

	for i, t := range report.Tables {
		name := SheetName(i+1, t.Category)
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %q: %w", name, err)
		}
		if err := writeTable(f, name, t); err != nil {
			return err
		}
		if err := f.SetRowStyle(name, 1, 1, bold); err != nil {
			return fmt.Errorf("failed to style header of %q: %w", name, err)
		}
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write xlsx: %w", err)
	}
	return nil
}

func writeTable(f *excelize.File, sheet string, t parser.Table) error {
	switch t.Type {
	case parser.TableMarket:
		header := []any{"Market", "City"}
		for _, c := range t.Commodities {
			header = append(header, c)
		}
		if err := setRow(f, sheet, 1, header); err != nil {
			return err
		}
		for i, r := range t.Rows {
			row := []any{r.Market, r.City}
			for _, p := range r.Prices {
				row = append(row, money.DisplayRange(p.Low, p.High))
			}
			if err := setRow(f, sheet, i+2, row); err != nil {
				return err
			}
		}
	case parser.TableCommodity:
		if err := setRow(f, sheet, 1, []any{"Commodity", "Low", "High", "Prevailing", "Average"}); err != nil {
			return err
		}
		for i, e := range t.Entries {
			row := []any{e.Name, cellValue(e.Low), cellValue(e.High), cellValue(e.Prevailing), cellValue(e.Average)}
			if err := setRow(f, sheet, i+2, row); err != nil {
				return err
			}
		}
	}
	return nil
}

func cellValue(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d of %q: %w", row, sheet, err)
	}
	return nil
}

// SheetName builds a unique, Excel-safe sheet name for the n-th table.
func SheetName(n int, category string) string {
	category = strings.TrimSpace(invalidSheetChars.ReplaceAllString(category, " "))
	name := fmt.Sprintf("%02d", n)
	if category != "" {
		name += " " + category
	}
	if r := []rune(name); len(r) > maxSheetName {
		name = strings.TrimSpace(string(r[:maxSheetName]))
	}
	return name
}
