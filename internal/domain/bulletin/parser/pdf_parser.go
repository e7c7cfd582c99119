package parser

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNotPDF is returned when the document does not start with the PDF magic.
var ErrNotPDF = errors.New("document is not a PDF")

var pdfMagic = []byte("%PDF-")

const defaultFontSize = 10.0

// PDFParser extracts the text layer of a PDF, one output line per visual row.
// Horizontal gaps wider than ColumnGap font sizes become a double space, so
// SplitColumns can recover the table columns. Smaller gaps wider than WordGap
// become a single space.
type PDFParser struct {
	ColumnGap    float64
	WordGap      float64
	RowTolerance float64
}

// NewPDFParser creates a PDF parser tuned for DA bulletins.
func NewPDFParser() *PDFParser {
	return &PDFParser{
		ColumnGap:    1.0,
		WordGap:      0.15,
		RowTolerance: 0.4,
	}
}

// IsPDF reports whether data starts with the PDF magic bytes.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), pdfMagic)
}

// ExtractText returns the text of every page, pages separated by a newline.
func (p *PDFParser) ExtractText(data []byte) (text string, err error) {
	if !IsPDF(data) {
		return "", ErrNotPDF
	}

	// The pdf package panics on some malformed content streams.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to read PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, row := range p.groupRows(page.Content().Text) {
			if line := p.joinRow(row); line != "" {
				sb.WriteString(line)
				sb.WriteByte('\n')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

// groupRows clusters glyphs sharing a baseline, top of page first.
func (p *PDFParser) groupRows(texts []pdf.Text) [][]pdf.Text {
	glyphs := make([]pdf.Text, 0, len(texts))
	for _, t := range texts {
		if strings.TrimSpace(t.S) != "" {
			glyphs = append(glyphs, t)
		}
	}
	slices.SortStableFunc(glyphs, func(a, b pdf.Text) int {
		switch {
		case a.Y > b.Y:
			return -1
		case a.Y < b.Y:
			return 1
		}
		return 0
	})

	var rows [][]pdf.Text
	for _, g := range glyphs {
		if n := len(rows); n > 0 {
			last := rows[n-1]
			if math.Abs(last[0].Y-g.Y) <= p.RowTolerance*fontSize(g) {
				rows[n-1] = append(last, g)
				continue
			}
		}
		rows = append(rows, []pdf.Text{g})
	}
	return rows
}

func (p *PDFParser) joinRow(row []pdf.Text) string {
	slices.SortStableFunc(row, func(a, b pdf.Text) int {
		switch {
		case a.X < b.X:
			return -1
		case a.X > b.X:
			return 1
		}
		return 0
	})

	var sb strings.Builder
	prevEnd := 0.0
	for i, t := range row {
		if i > 0 {
			gap := t.X - prevEnd
			size := fontSize(t)
			switch {
			case gap >= p.ColumnGap*size:
				sb.WriteString("  ")
			case gap >= p.WordGap*size:
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(t.S)
		w := t.W
		if w <= 0 {
			w = 0.5 * fontSize(t) * float64(len([]rune(t.S)))
		}
		prevEnd = math.Max(prevEnd, t.X+w)
	}
	return strings.TrimSpace(sb.String())
}

func fontSize(t pdf.Text) float64 {
	if t.FontSize > 0 {
		return t.FontSize
	}
	return defaultFontSize
}
