package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/quarryhq/quarry/value"
)

// Source holds ordered rows of named fields. It is immutable once built:
// query construction and execution never mutate it, so a single Source is
// safely reusable across any number of independent queries.
type Source struct {
	id     string
	fields []string
	index  map[string]int
	rows   [][]value.Value
}

// NewSource creates a Source from field names and rows.
// Every row must have exactly one value per field; field names must be
// non-empty and unique.
func NewSource(fields []string, rows [][]value.Value) (*Source, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("source has no fields")
	}
	index := make(map[string]int, len(fields))
	for i, name := range fields {
		if name == "" {
			return nil, fmt.Errorf("field %d has an empty name", i)
		}
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("duplicate field name %q", name)
		}
		index[name] = i
	}
	for i, row := range rows {
		if len(row) != len(fields) {
			return nil, fmt.Errorf("row %d has %d values, want %d", i, len(row), len(fields))
		}
	}

	return &Source{
		id:     uuid.Must(uuid.NewV7()).String(),
		fields: append([]string(nil), fields...),
		index:  index,
		rows:   rows,
	}, nil
}

// FromCSV builds a Source from CSV data. The first record is the header;
// every cell becomes a String value. Numeric interpretation is deferred to
// aggregation time, matching the engine's laziness contract.
func FromCSV(r io.Reader) (*Source, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv input is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var rows [][]value.Value
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", len(rows)+1, err)
		}
		row := make([]value.Value, len(record))
		for i, cell := range record {
			row[i] = value.String(cell)
		}
		rows = append(rows, row)
	}

	return NewSource(header, rows)
}

// FromCSVFile builds a Source from a CSV file on disk.
func FromCSVFile(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	src, err := FromCSV(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return src, nil
}

// ID returns a token unique to this Source instance. Because sources are
// immutable, the token identifies the data for the lifetime of the process
// (cache keys, log correlation).
func (s *Source) ID() string {
	return s.id
}

// Fieldnames returns the declared field names in source-column order.
func (s *Source) Fieldnames() []string {
	return append([]string(nil), s.fields...)
}

// Len returns the number of rows.
func (s *Source) Len() int {
	return len(s.rows)
}

// HasField reports whether a field exists in the source.
func (s *Source) HasField(name string) bool {
	_, ok := s.index[name]
	return ok
}

// cell returns the value at (row, field index). Callers guarantee bounds.
func (s *Source) cell(row, field int) value.Value {
	return s.rows[row][field]
}

// Constraint is a row-level condition applied before projection.
// One value means equality; several mean membership (OR within the field).
// Distinct constraints combine conjunctively (AND across fields).
type Constraint struct {
	Field  string
	Values []value.Value
}

// Eq constrains a field to equal a single value.
func Eq(field string, v value.Value) Constraint {
	return Constraint{Field: field, Values: []value.Value{v}}
}

// In constrains a field to equal any of the given values.
// With no values the constraint matches no rows.
func In(field string, vs ...value.Value) Constraint {
	return Constraint{Field: field, Values: append([]value.Value(nil), vs...)}
}

// Select builds a deferred query over this source.
//
// The descriptor must conform to the selection grammar (see Selection);
// malformed shapes fail immediately with a DESCRIPTOR_INVALID error. Every
// field the descriptor or the constraints reference must exist in the
// source, checked here at binding time (FIELD_UNKNOWN). Data-dependent
// problems are not checked here - they surface from Execute.
//
// Select has no side effects: it returns a new independent Query bound to
// this source and these parameters.
func (s *Source) Select(sel Selection, where ...Constraint) (*Query, error) {
	if err := validateSelection(sel, true); err != nil {
		return nil, err
	}

	for _, name := range selectionFields(sel) {
		if !s.HasField(name) {
			return nil, newFieldError(name)
		}
	}
	for _, c := range where {
		if c.Field == "" {
			return nil, newDescriptorError("constraint has an empty field name")
		}
		if !s.HasField(c.Field) {
			return nil, newFieldError(c.Field)
		}
	}

	constraints := make([]Constraint, len(where))
	for i, c := range where {
		constraints[i] = Constraint{
			Field:  c.Field,
			Values: append([]value.Value(nil), c.Values...),
		}
	}

	return newQuery(s, normalizeSelection(sel), constraints), nil
}

// matchingRows returns the indexes of rows satisfying every constraint,
// in source order.
func (s *Source) matchingRows(where []Constraint) []int {
	rows := make([]int, 0, len(s.rows))
	for i := range s.rows {
		if s.rowMatches(i, where) {
			rows = append(rows, i)
		}
	}
	return rows
}

func (s *Source) rowMatches(row int, where []Constraint) bool {
	for _, c := range where {
		cell := s.rows[row][s.index[c.Field]]
		matched := false
		for _, want := range c.Values {
			if value.Equal(cell, want) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}
