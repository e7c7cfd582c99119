// Package search provides full-text lookup over the price rows of the latest report.
package search

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/FACorreiaa/da-price-monitor/internal/domain/bulletin/parser"
	"github.com/FACorreiaa/da-price-monitor/internal/domain/bulletin/repository"
)

const (
	defaultLimit = 20
	clearBatch   = 1000
)

// Hit is one matching price cell or commodity entry.
type Hit struct {
	ReportID   string   `json:"reportId"`
	Type       string   `json:"type"`
	Category   string   `json:"category,omitempty"`
	Market     string   `json:"market,omitempty"`
	City       string   `json:"city,omitempty"`
	Commodity  string   `json:"commodity"`
	Low        *float64 `json:"low"`
	High       *float64 `json:"high"`
	Prevailing *float64 `json:"prevailing,omitempty"`
	Average    *float64 `json:"average,omitempty"`
	Score      float64  `json:"score"`
}

// Index is a bleve index holding one document per market price cell and per
// commodity entry of a single report.
type Index struct {
	index    bleve.Index
	mu       sync.RWMutex
	path     string
	reportID string
}

// NewIndex creates an index. An empty path keeps it in memory, otherwise the
// index at path is opened or created.
func NewIndex(path string) (*Index, error) {
	var (
		idx bleve.Index
		err error
	)

	switch {
	case path == "":
		idx, err = bleve.NewMemOnly(buildMapping())
	default:
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			if mkdirErr := os.MkdirAll(filepath.Dir(path), 0o755); mkdirErr != nil {
				return nil, fmt.Errorf("failed to create index directory: %w", mkdirErr)
			}
			idx, err = bleve.New(path, buildMapping())
		} else {
			idx, err = bleve.Open(path)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open index: %w", err)
	}

	return &Index{index: idx, path: path}, nil
}

func buildMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = simple.Name

	kw := bleve.NewTextFieldMapping()
	kw.Analyzer = keyword.Name
	kw.IncludeInAll = false

	num := bleve.NewNumericFieldMapping()
	num.IncludeInAll = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("report_id", kw)
	doc.AddFieldMappingsAt("type", kw)
	doc.AddFieldMappingsAt("category", text)
	doc.AddFieldMappingsAt("market", text)
	doc.AddFieldMappingsAt("city", text)
	doc.AddFieldMappingsAt("commodity", text)
	for _, f := range []string{"low", "high", "prevailing", "average"} {
		doc.AddFieldMappingsAt(f, num)
	}

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = simple.Name
	return m
}

// IndexReport replaces the index contents with the rows of report.
func (ix *Index) IndexReport(report *repository.Report) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.clear(); err != nil {
		return err
	}

	id := report.ID.String()
	batch := ix.index.NewBatch()
	for ti, t := range report.Tables {
		for di, doc := range documents(id, t) {
			if err := batch.Index(fmt.Sprintf("%s/%d/%d", id, ti, di), doc); err != nil {
				return fmt.Errorf("failed to index table %d: %w", ti, err)
			}
		}
	}
	if err := ix.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch index: %w", err)
	}

	ix.reportID = id
	return nil
}

func documents(reportID string, t parser.Table) []map[string]any {
	var docs []map[string]any
	base := func() map[string]any {
		return map[string]any{
			"report_id": reportID,
			"type":      string(t.Type),
			"category":  t.Category,
		}
	}

	switch t.Type {
	case parser.TableMarket:
		for _, row := range t.Rows {
			for _, p := range row.Prices {
				d := base()
				d["market"] = row.Market
				d["city"] = row.City
				d["commodity"] = p.Commodity
				setNumber(d, "low", p.Low)
				setNumber(d, "high", p.High)
				docs = append(docs, d)
			}
		}
	case parser.TableCommodity:
		for _, e := range t.Entries {
			d := base()
			d["commodity"] = e.Name
			setNumber(d, "low", e.Low)
			setNumber(d, "high", e.High)
			setNumber(d, "prevailing", e.Prevailing)
			setNumber(d, "average", e.Average)
			docs = append(docs, d)
		}
	}
	return docs
}

func setNumber(d map[string]any, field string, v *float64) {
	if v != nil {
		d[field] = *v
	}
}

// Search runs a typo-tolerant match over market, city, commodity and category.
// A single-word query also matches as a prefix.
func (ix *Index) Search(q string, limit int) ([]Hit, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []Hit{}, nil
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	match := bleve.NewMatchQuery(q)
	match.SetFuzziness(1)
	queries := []query.Query{match}
	if !strings.ContainsAny(q, " \t") {
		queries = append(queries, bleve.NewPrefixQuery(strings.ToLower(q)))
	}

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(queries...))
	req.Size = limit
	req.Fields = []string{"*"}

	ix.mu.RLock()
	res, err := ix.index.Search(req)
	ix.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, Hit{
			ReportID:   stringField(h.Fields, "report_id"),
			Type:       stringField(h.Fields, "type"),
			Category:   stringField(h.Fields, "category"),
			Market:     stringField(h.Fields, "market"),
			City:       stringField(h.Fields, "city"),
			Commodity:  stringField(h.Fields, "commodity"),
			Low:        numberField(h.Fields, "low"),
			High:       numberField(h.Fields, "high"),
			Prevailing: numberField(h.Fields, "prevailing"),
			Average:    numberField(h.Fields, "average"),
			Score:      h.Score,
		})
	}
	return hits, nil
}

func stringField(fields map[string]any, name string) string {
	s, _ := fields[name].(string)
	return s
}

func numberField(fields map[string]any, name string) *float64 {
	if v, ok := fields[name].(float64); ok {
		return &v
	}
	return nil
}

// ReportID returns the ID of the indexed report, empty before the first IndexReport.
func (ix *Index) ReportID() string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.reportID
}

// Count returns the number of indexed documents.
func (ix *Index) Count() (uint64, error) {
	return ix.index.DocCount()
}

func (ix *Index) clear() error {
	for {
		req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
		req.Size = clearBatch
		res, err := ix.index.Search(req)
		if err != nil {
			return fmt.Errorf("failed to list documents: %w", err)
		}
		if len(res.Hits) == 0 {
			return nil
		}

		batch := ix.index.NewBatch()
		for _, h := range res.Hits {
			batch.Delete(h.ID)
		}
		if err := ix.index.Batch(batch); err != nil {
			return fmt.Errorf("failed to delete documents: %w", err)
		}
	}
}

// Close closes the index
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.index.Close()
}
