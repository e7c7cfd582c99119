// Package markets holds the versioned catalog of known marketplaces used to
// anchor market rows in bulletin text.
package markets

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Market is one catalog entry.
type Market struct {
	Name    string   `yaml:"name" json:"name"`
	City    string   `yaml:"city" json:"city,omitempty"`
	Aliases []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
}

// Catalog is an ordered list of markets. Order matters: the parser tries names
// in catalog order and never re-matches text consumed by an earlier name.
type Catalog struct {
	Version string   `yaml:"version" json:"version"`
	Region  string   `yaml:"region" json:"region"`
	Markets []Market `yaml:"markets" json:"markets"`
}

// Match is a fuzzy lookup result.
type Match struct {
	Market   Market `json:"market"`
	Matched  string `json:"matched"`
	Distance int    `json:"distance"`
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog file. An empty path returns the default catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read market catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse market catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate market catalog: %w", err)
	}
	return &c, nil
}

// Validate checks the catalog has a version and unique, non-empty names.
func (c *Catalog) Validate() error {
	if c.Version == "" {
		return errors.New("version is required")
	}
	if len(c.Markets) == 0 {
		return errors.New("at least one market is required")
	}
	seen := make(map[string]bool)
	for i, m := range c.Markets {
		for _, n := range append([]string{m.Name}, m.Aliases...) {
			n = strings.TrimSpace(n)
			if n == "" {
				return fmt.Errorf("market %d: empty name", i)
			}
			if seen[n] {
				return fmt.Errorf("market %d: duplicate name %q", i, n)
			}
			seen[n] = true
		}
	}
	return nil
}

// Names returns every name and alias in catalog order, aliases directly after
// their market.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.Markets))
	for _, m := range c.Markets {
		names = append(names, m.Name)
		names = append(names, m.Aliases...)
	}
	return names
}

// Resolve returns the market with the given name or alias.
func (c *Catalog) Resolve(name string) (Market, bool) {
	for _, m := range c.Markets {
		if m.Name == name {
			return m, true
		}
		for _, a := range m.Aliases {
			if a == name {
				return m, true
			}
		}
	}
	return Market{}, false
}

// Lookup fuzzy-matches query against every name and alias, best match first.
// Each market appears at most once. limit <= 0 returns all matches.
func (c *Catalog) Lookup(query string, limit int) []Match {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	names := c.Names()
	ranks := fuzzy.RankFindNormalizedFold(query, names)
	sort.Sort(ranks)

	var (
		matches []Match
		seen    = make(map[string]bool)
	)
	for _, r := range ranks {
		m, ok := c.Resolve(r.Target)
		if !ok || seen[m.Name] {
			continue
		}
		seen[m.Name] = true
		matches = append(matches, Match{Market: m, Matched: r.Target, Distance: r.Distance})
		if limit > 0 && len(matches) == limit {
			break
		}
	}
	return matches
}
