// Package schema maps the column headers found in uploaded files and price
// partitions onto canonical field names. The synonym table is versioned and
// embedded; headers are resolved once per file.
package schema

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Column sets.
const (
	SetTrade     = "trade"
	SetExecution = "execution"
	SetOHLCV     = "ohlcv"
)

//go:embed columns.yaml
var defaultTable []byte

type columnSet struct {
	Required []string            `yaml:"required"`
	Columns  map[string][]string `yaml:"columns"`
}

// Table is a parsed synonym table.
type Table struct {
	Version int                  `yaml:"version"`
	Sets    map[string]columnSet `yaml:"sets"`

	lookup map[string]map[string]string // set -> normalized header -> canonical
}

// Default returns the embedded table.
func Default() *Table {
	t, err := Parse(defaultTable)
	if err != nil {
		panic(fmt.Sprintf("embedded column table is invalid: %v", err))
	}
	return t
}

// Parse reads a YAML synonym table.
func Parse(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse column table: %w", err)
	}
	t.lookup = make(map[string]map[string]string, len(t.Sets))
	for name, set := range t.Sets {
		m := make(map[string]string)
		for canonical, synonyms := range set.Columns {
			m[Normalize(canonical)] = canonical
			for _, s := range synonyms {
				key := Normalize(s)
				if prev, ok := m[key]; ok && prev != canonical {
					return nil, fmt.Errorf("set %s: %q maps to both %s and %s", name, s, prev, canonical)
				}
				m[key] = canonical
			}
		}
		t.lookup[name] = m
	}
	return &t, nil
}

// Normalize lower-cases and trims a header.
func Normalize(header string) string {
	return strings.ToLower(strings.TrimSpace(header))
}

// Mapping is the resolved position of each canonical column in a header row.
type Mapping map[string]int

// Has reports whether the canonical column was found.
func (m Mapping) Has(canonical string) bool {
	_, ok := m[canonical]
	return ok
}

// Value returns the cell for canonical in row, or "".
func (m Mapping) Value(row []string, canonical string) string {
	i, ok := m[canonical]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// MissingColumnsError reports required columns absent from a header row.
type MissingColumnsError struct {
	Set     string
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required %s columns: %s", e.Set, strings.Join(e.Missing, ", "))
}

// Resolve maps headers onto the canonical columns of set. The first header
// matching a canonical name wins. Unknown headers are ignored.
func (t *Table) Resolve(set string, headers []string) (Mapping, error) {
	lookup, ok := t.lookup[set]
	if !ok {
		return nil, fmt.Errorf("unknown column set %q", set)
	}
	m := make(Mapping)
	for i, h := range headers {
		canonical, ok := lookup[Normalize(h)]
		if !ok {
			continue
		}
		if _, seen := m[canonical]; !seen {
			m[canonical] = i
		}
	}

	var missing []string
	for _, req := range t.Sets[set].Required {
		if !m.Has(req) {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return m, &MissingColumnsError{Set: set, Missing: missing}
	}
	return m, nil
}

// Canonical returns the canonical name for a single header in set.
func (t *Table) Canonical(set, header string) (string, bool) {
	c, ok := t.lookup[set][Normalize(header)]
	return c, ok
}
