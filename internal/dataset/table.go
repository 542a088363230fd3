// Package dataset defines the in-memory table model shared by every
// workbench component: cells, columns, tables, column classification and
// the provenance metadata that travels with a table.
//
// Tables are never modified after construction. Every transformation builds
// a new Table, sharing the value slices of untouched columns with its input.
package dataset

import (
	"encoding/json"
	"fmt"
)

// Column is a named sequence of cells.
type Column struct {
	Name   string  `json:"name"`
	Values []Value `json:"values"`
}

// Table is an ordered set of equally long columns.
type Table struct {
	cols  []Column
	index map[string]int
	rows  int
}

// NewTable builds a table from cols. All columns must have the same length
// and distinct names.
func NewTable(cols []Column) (*Table, error) {
	t := &Table{
		cols:  make([]Column, len(cols)),
		index: make(map[string]int, len(cols)),
	}
	for i, c := range cols {
		if i == 0 {
			t.rows = len(c.Values)
		} else if len(c.Values) != t.rows {
			return nil, fmt.Errorf("%w: column %q has %d rows, want %d", ErrShapeMismatch, c.Name, len(c.Values), t.rows)
		}
		if _, dup := t.index[c.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate column name %q", ErrInvalidSelection, c.Name)
		}
		t.index[c.Name] = i
		t.cols[i] = c
	}
	return t, nil
}

// MustNewTable is NewTable for statically known inputs; it panics on error.
func MustNewTable(cols []Column) *Table {
	t, err := NewTable(cols)
	if err != nil {
		panic(err)
	}
	return t
}

// Rows returns the number of rows.
func (t *Table) Rows() int { return t.rows }

// Cols returns the number of columns.
func (t *Table) Cols() int { return len(t.cols) }

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.Name
	}
	return names
}

// Column returns the i-th column. The returned Values must not be modified.
func (t *Table) Column(i int) Column { return t.cols[i] }

// Lookup returns the column with the given name.
func (t *Table) Lookup(name string) (Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	return t.cols[i], true
}

// IndexOf returns the position of name, or -1.
func (t *Table) IndexOf(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// Has reports whether a column named name exists.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Value returns the cell at row r of column c.
func (t *Table) Value(r, c int) Value { return t.cols[c].Values[r] }

// Row returns a copy of row r.
func (t *Table) Row(r int) []Value {
	row := make([]Value, len(t.cols))
	for i, c := range t.cols {
		row[i] = c.Values[r]
	}
	return row
}

// SelectRows returns a new table holding only the given rows, in order.
func (t *Table) SelectRows(rows []int) *Table {
	cols := make([]Column, len(t.cols))
	for i, c := range t.cols {
		vals := make([]Value, len(rows))
		for j, r := range rows {
			vals[j] = c.Values[r]
		}
		cols[i] = Column{Name: c.Name, Values: vals}
	}
	return &Table{cols: cols, index: t.index, rows: len(rows)}
}

// Head returns the first n rows.
func (t *Table) Head(n int) *Table {
	if n >= t.rows {
		return t
	}
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return t.SelectRows(rows)
}

// ReplaceColumn returns a new table where the named column holds values.
func (t *Table) ReplaceColumn(name string, values []Value) (*Table, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
	}
	if len(values) != t.rows {
		return nil, fmt.Errorf("%w: column %q has %d rows, want %d", ErrShapeMismatch, name, len(values), t.rows)
	}
	cols := make([]Column, len(t.cols))
	copy(cols, t.cols)
	cols[i] = Column{Name: name, Values: values}
	return &Table{cols: cols, index: t.index, rows: t.rows}, nil
}

// DropColumns returns a new table without the named columns. Unknown names
// are ignored.
func (t *Table) DropColumns(names ...string) *Table {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	keep := make([]Column, 0, len(t.cols))
	for _, c := range t.cols {
		if !drop[c.Name] {
			keep = append(keep, c)
		}
	}
	out, _ := NewTable(keep)
	// A table stripped of every column keeps its row count.
	if len(keep) == 0 {
		out.rows = t.rows
	}
	return out
}

// MarshalJSON encodes the table column by column.
func (t *Table) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Rows    int      `json:"rows"`
		Columns []Column `json:"columns"`
	}{Rows: t.rows, Columns: t.cols})
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (t *Table) UnmarshalJSON(data []byte) error {
	var raw struct {
		Rows    int      `json:"rows"`
		Columns []Column `json:"columns"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := NewTable(raw.Columns)
	if err != nil {
		return err
	}
	if len(raw.Columns) == 0 {
		decoded.rows = raw.Rows
	}
	*t = *decoded
	return nil
}
