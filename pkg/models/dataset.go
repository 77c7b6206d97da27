package models

import (
	"fmt"
	"sort"
	"strings"
)

// Dataset is the named table set one generator run returns. Tables keep the
// order they were added in, which follows the dependency order of the run.
type Dataset struct {
	Generator string
	Seed      int64

	tables map[string]*Table
	order  []string
}

func NewDataset(generator string, seed int64) *Dataset {
	return &Dataset{
		Generator: generator,
		Seed:      seed,
		tables:    make(map[string]*Table),
	}
}

// Add stores t, replacing any table with the same name in place.
func (d *Dataset) Add(t *Table) {
	if _, ok := d.tables[t.Name]; !ok {
		d.order = append(d.order, t.Name)
	}
	d.tables[t.Name] = t
}

func (d *Dataset) Table(name string) (*Table, bool) {
	t, ok := d.tables[name]
	return t, ok
}

// Names returns table names in insertion order.
func (d *Dataset) Names() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// Tables returns the tables in insertion order.
func (d *Dataset) Tables() []*Table {
	out := make([]*Table, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.tables[name])
	}
	return out
}

// Counts maps table name to row count.
func (d *Dataset) Counts() map[string]int {
	out := make(map[string]int, len(d.tables))
	for name, t := range d.tables {
		out[name] = t.Len()
	}
	return out
}

// RowCount is the total number of rows across tables.
func (d *Dataset) RowCount() int {
	n := 0
	for _, t := range d.tables {
		n += t.Len()
	}
	return n
}

// SortedNames returns table names alphabetically, for stable archive layout.
func (d *Dataset) SortedNames() []string {
	names := d.Names()
	sort.Strings(names)
	return names
}

// Summary is a one-line overview such as "tax_data (seed 42): locations=150, filings=50000".
func (d *Dataset) Summary() string {
	parts := make([]string, 0, len(d.order))
	for _, name := range d.order {
		parts = append(parts, fmt.Sprintf("%s=%d", name, d.tables[name].Len()))
	}
	return fmt.Sprintf("%s (seed %d): %s", d.Generator, d.Seed, strings.Join(parts, ", "))
}
