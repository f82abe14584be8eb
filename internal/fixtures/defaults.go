package fixtures

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/vinay-bit/research-apps-php-sub002/internal/store"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Defaults holds the seed rows inserted by CreateTestDependencies.
type Defaults struct {
	Lookups map[string][]Row `yaml:"lookups"`
}

// LoadDefaults parses the embedded seed document.
func LoadDefaults() (*Defaults, error) {
	return ParseDefaults(defaultsYAML)
}

// ParseDefaults parses a seed document. Only known lookup tables are
// accepted and every row needs an id.
func ParseDefaults(data []byte) (*Defaults, error) {
	var d Defaults
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse fixture defaults: %w", err)
	}

	known := make(map[string]bool, len(store.LookupTables))
	for _, t := range store.LookupTables {
		known[t] = true
	}
	for table, rows := range d.Lookups {
		if !known[table] {
			return nil, fmt.Errorf("fixture defaults: unknown lookup table %q", table)
		}
		for i, row := range rows {
			if _, ok := row["id"]; !ok {
				return nil, fmt.Errorf("fixture defaults: %s row %d has no id", table, i)
			}
		}
	}
	return &d, nil
}

// Ordered returns the seed rows table by table in foreign key order.
func (d *Defaults) Ordered() []Seed {
	var out []Seed
	for _, table := range store.LookupTables {
		for _, row := range d.Lookups[table] {
			out = append(out, Seed{Table: table, Row: row})
		}
	}
	return out
}

// Seed is one lookup row.
type Seed struct {
	Table string
	Row   Row
}
