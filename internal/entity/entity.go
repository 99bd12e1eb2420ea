// Package entity models the workflow engine's flat, schema-typed row sets.
//
// An Entities value is a table: an ordered list of column paths plus rows whose
// cells line up with those paths. Each cell is multi-valued, which is how the
// engine represents repeated attributes inside one column.
package entity

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DefaultTypeURI names the shape of row sets produced from Salesforce records.
const DefaultTypeURI = "https://example.org/vocab/salesforce"

// EntityPath is a single column of a schema.
type EntityPath struct {
	Path string `json:"path"`
}

// EntitySchema is the ordered column list of a row set.
type EntitySchema struct {
	TypeURI string       `json:"typeUri"`
	Paths   []EntityPath `json:"paths"`
}

// NewSchema builds a schema from column names, keeping their order.
func NewSchema(typeURI string, columns []string) *EntitySchema {
	paths := make([]EntityPath, 0, len(columns))
	for _, c := range columns {
		paths = append(paths, EntityPath{Path: c})
	}
	return &EntitySchema{TypeURI: typeURI, Paths: paths}
}

// Columns returns the column names in schema order.
func (s *EntitySchema) Columns() []string {
	if s == nil {
		return nil
	}
	cols := make([]string, 0, len(s.Paths))
	for _, p := range s.Paths {
		cols = append(cols, p.Path)
	}
	return cols
}

// Entity is one row: an opaque identifier and one multi-valued cell per column.
type Entity struct {
	URI    string     `json:"uri"`
	Values [][]string `json:"values"`
}

// Entities is a schema plus its rows.
type Entities struct {
	Schema   *EntitySchema `json:"schema"`
	Entities []*Entity     `json:"entities"`
}

// Empty returns a row set with an empty schema and no rows.
func Empty(typeURI string) *Entities {
	return &Entities{Schema: &EntitySchema{TypeURI: typeURI, Paths: []EntityPath{}}, Entities: []*Entity{}}
}

// Len returns the number of rows.
func (e *Entities) Len() int {
	if e == nil {
		return 0
	}
	return len(e.Entities)
}

// Validate checks that every row has exactly one cell per schema column.
func (e *Entities) Validate() error {
	if e == nil || e.Schema == nil {
		return fmt.Errorf("entities: schema is required")
	}
	width := len(e.Schema.Paths)
	for i, row := range e.Entities {
		if row == nil {
			return fmt.Errorf("entities: row %d is nil", i)
		}
		if len(row.Values) != width {
			return fmt.Errorf("entities: row %d (%s) has %d cells, schema has %d columns", i, row.URI, len(row.Values), width)
		}
	}
	return nil
}

// Records joins every row back into a column -> value map. Multi-valued
// cells are joined with a comma. The row set must already pass Validate.
func (e *Entities) Records() []map[string]string {
	if e == nil || e.Schema == nil {
		return nil
	}
	cols := e.Schema.Columns()
	out := make([]map[string]string, 0, len(e.Entities))
	for _, row := range e.Entities {
		rec := make(map[string]string, len(cols))
		for i, col := range cols {
			rec[col] = JoinCell(row.Values[i])
		}
		out = append(out, rec)
	}
	return out
}

// JoinCell collapses a multi-valued cell into one scalar string.
func JoinCell(values []string) string {
	return strings.Join(values, ",")
}

// NewURI returns a fresh, globally unique row identifier.
func NewURI() string {
	return "urn:uuid:" + uuid.NewString()
}
