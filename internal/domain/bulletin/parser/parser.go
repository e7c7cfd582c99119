package parser

import (
	"iter"
	"time"
)

const (
	DefaultCategoryWindow = 4
	DefaultCategoryMaxLen = 60
)

// Config tunes the table reconstruction heuristics.
type Config struct {
	// KnownMarkets anchors market rows whose columns do not split cleanly.
	// Names are matched case-sensitively, in order.
	KnownMarkets []string
	// CategoryWindow is how many lines above a header are searched for a
	// section title.
	CategoryWindow int
	// CategoryMaxLen is the exclusive length limit for a section title.
	CategoryMaxLen int
}

// DefaultConfig returns the configuration used for DA price bulletins, minus
// the market catalog which is loaded separately.
func DefaultConfig() Config {
	return Config{
		CategoryWindow: DefaultCategoryWindow,
		CategoryMaxLen: DefaultCategoryMaxLen,
	}
}

// Parser reconstructs tables from bulletin text.
type Parser struct {
	cfg Config
}

// New creates a Parser. Zero or negative window and length fall back to the
// defaults. The known-market list is copied.
func New(cfg Config) *Parser {
	if cfg.CategoryWindow <= 0 {
		cfg.CategoryWindow = DefaultCategoryWindow
	}
	if cfg.CategoryMaxLen <= 0 {
		cfg.CategoryMaxLen = DefaultCategoryMaxLen
	}
	cfg.KnownMarkets = append([]string(nil), cfg.KnownMarkets...)
	return &Parser{cfg: cfg}
}

// KnownMarkets returns the number of catalog names the parser anchors on.
func (p *Parser) KnownMarkets() int {
	return len(p.cfg.KnownMarkets)
}

// Tables yields every non-empty table found in text, in document order.
// Iteration stops early if the consumer stops.
func (p *Parser) Tables(text string) iter.Seq[Table] {
	return func(yield func(Table) bool) {
		a := assembler{p: p, lines: Lines(text)}
		for {
			t, ok := a.next()
			if !ok || !yield(t) {
				return
			}
		}
	}
}

// Parse returns all tables in text. The result is never nil.
func (p *Parser) Parse(text string) []Table {
	tables := make([]Table, 0)
	for t := range p.Tables(text) {
		tables = append(tables, t)
	}
	return tables
}

// BuildReport parses text into a report for the given source and bulletin date.
func (p *Parser) BuildReport(text, sourceURL string, date time.Time) PriceReport {
	return PriceReport{
		Date:      NewDate(date),
		SourceURL: sourceURL,
		Tables:    p.Parse(text),
		RawText:   text,
	}
}

type state int

const (
	stateScanning state = iota
	stateMarketTable
	stateCommodityTable
	stateDone
)

// assembler walks the line stream, alternating between looking for a header
// and collecting the body that follows it.
type assembler struct {
	p      *Parser
	lines  []string
	pos    int
	state  state
	header Header
}

func (a *assembler) next() (Table, bool) {
	for {
		switch a.state {
		case stateScanning:
			h, ok := FindHeader(a.lines, a.pos)
			if !ok {
				a.state = stateDone
				continue
			}
			a.header = h
			a.pos = h.Index + 1
			if h.Type == TableMarket {
				a.state = stateMarketTable
			} else {
				a.state = stateCommodityTable
			}

		case stateMarketTable, stateCommodityTable:
			end := a.bodyEnd()
			t := a.build(a.lines[a.pos:end])
			// the boundary line itself is scanned again, it may open the next table
			a.pos = end
			a.state = stateScanning
			if t.Len() > 0 {
				return t, true
			}

		default:
			return Table{}, false
		}
	}
}

func (a *assembler) bodyEnd() int {
	for i := a.pos; i < len(a.lines); i++ {
		if IsBoundary(a.lines[i]) {
			return i
		}
	}
	return len(a.lines)
}

func (a *assembler) build(body []string) Table {
	t := Table{
		Type:     a.header.Type,
		Category: locateCategory(a.lines, a.header.Index, a.p.cfg.CategoryWindow, a.p.cfg.CategoryMaxLen),
	}
	if a.state == stateMarketTable {
		t.Commodities = a.header.Schema()
		t.Rows = extractMarketRows(t.Commodities, body, a.p.cfg.KnownMarkets)
		return t
	}
	t.Entries = extractEntries(a.header.Labels, body)
	return t
}
