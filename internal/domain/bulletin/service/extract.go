package service

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/FACorreiaa/da-price-monitor/internal/domain/bulletin/parser"
)

// ErrUnsupportedDocument is returned for input that is neither a PDF nor text.
var ErrUnsupportedDocument = errors.New("unsupported document: expected PDF or UTF-8 text")

// TextExtractor turns PDF bytes into text lines.
type TextExtractor interface {
	ExtractText(data []byte) (string, error)
}

// Extractor turns a downloaded document into a PriceReport without touching
// the database.
type Extractor struct {
	pdf    TextExtractor
	parser *parser.Parser
}

// NewExtractor creates an extractor.
func NewExtractor(pdf TextExtractor, p *parser.Parser) *Extractor {
	return &Extractor{pdf: pdf, parser: p}
}

// Text returns the text of data. PDFs are extracted, UTF-8 text is passed
// through unchanged.
func (e *Extractor) Text(data []byte) (string, error) {
	if parser.IsPDF(data) {
		text, err := e.pdf.ExtractText(data)
		if err != nil {
			return "", fmt.Errorf("failed to extract pdf text: %w", err)
		}
		return text, nil
	}
	if !utf8.Valid(data) {
		return "", ErrUnsupportedDocument
	}
	return string(data), nil
}

// Report extracts and parses data into a report.
func (e *Extractor) Report(data []byte, sourceURL string, date time.Time) (parser.PriceReport, error) {
	text, err := e.Text(data)
	if err != nil {
		return parser.PriceReport{}, err
	}
	return e.parser.BuildReport(text, sourceURL, date), nil
}

// Parser returns the table parser.
func (e *Extractor) Parser() *parser.Parser {
	return e.parser
}
