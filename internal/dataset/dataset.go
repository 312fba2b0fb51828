package dataset

import (
	"fmt"
	"sort"
	"time"
)

// Type is the declared type of a column.
type Type int

const (
	Numeric Type = iota
	Temporal
	Text
	Bool
)

func (t Type) String() string {
	switch t {
	case Numeric:
		return "numeric"
	case Temporal:
		return "temporal"
	case Text:
		return "text"
	case Bool:
		return "bool"
	default:
		return "unknown"
	}
}

// Column is one materialized column. Exactly one of the value slices is
// populated according to Type; Valid marks non-null rows.
type Column struct {
	Name    string
	Type    Type
	Floats  []float64
	Times   []time.Time
	Strings []string
	Bools   []bool
	Valid   []bool
}

// Len returns the row count of the column.
func (c *Column) Len() int {
	return len(c.Valid)
}

// NonNullCount returns the number of valid rows.
func (c *Column) NonNullCount() int {
	n := 0
	for _, v := range c.Valid {
		if v {
			n++
		}
	}
	return n
}

// NonNullRatio returns valid rows / total rows, zero for empty columns.
func (c *Column) NonNullRatio() float64 {
	if len(c.Valid) == 0 {
		return 0
	}
	return float64(c.NonNullCount()) / float64(len(c.Valid))
}

// FiniteValues returns the valid numeric values in row order.
func (c *Column) FiniteValues() []float64 {
	if c.Type != Numeric {
		return nil
	}
	out := make([]float64, 0, len(c.Floats))
	for i, v := range c.Floats {
		if c.Valid[i] {
			out = append(out, v)
		}
	}
	return out
}

// TimeBounds returns the min and max valid timestamps. ok is false when
// fewer than one valid timestamp exists.
func (c *Column) TimeBounds() (min, max time.Time, ok bool) {
	if c.Type != Temporal {
		return time.Time{}, time.Time{}, false
	}
	for i, t := range c.Times {
		if !c.Valid[i] {
			continue
		}
		if !ok {
			min, max, ok = t, t, true
			continue
		}
		if t.Before(min) {
			min = t
		}
		if t.After(max) {
			max = t
		}
	}
	return min, max, ok
}

func (c *Column) slice(start, end int) *Column {
	out := &Column{Name: c.Name, Type: c.Type, Valid: c.Valid[start:end]}
	switch c.Type {
	case Numeric:
		out.Floats = c.Floats[start:end]
	case Temporal:
		out.Times = c.Times[start:end]
	case Text:
		out.Strings = c.Strings[start:end]
	case Bool:
		out.Bools = c.Bools[start:end]
	}
	return out
}

func (c *Column) gather(indices []int) *Column {
	out := &Column{Name: c.Name, Type: c.Type, Valid: make([]bool, len(indices))}
	switch c.Type {
	case Numeric:
		out.Floats = make([]float64, len(indices))
		for i, idx := range indices {
			out.Floats[i] = c.Floats[idx]
			out.Valid[i] = c.Valid[idx]
		}
	case Temporal:
		out.Times = make([]time.Time, len(indices))
		for i, idx := range indices {
			out.Times[i] = c.Times[idx]
			out.Valid[i] = c.Valid[idx]
		}
	case Text:
		out.Strings = make([]string, len(indices))
		for i, idx := range indices {
			out.Strings[i] = c.Strings[idx]
			out.Valid[i] = c.Valid[idx]
		}
	case Bool:
		out.Bools = make([]bool, len(indices))
		for i, idx := range indices {
			out.Bools[i] = c.Bools[idx]
			out.Valid[i] = c.Valid[idx]
		}
	}
	return out
}

// Dataset is an immutable in-memory columnar table. It is read-only during
// parallel stages; transforms return new Dataset views or copies.
type Dataset struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// New assembles a Dataset from materialized columns of equal length.
func New(columns []*Column) (*Dataset, error) {
	ds := &Dataset{index: make(map[string]int, len(columns))}
	for i, col := range columns {
		if col == nil {
			return nil, fmt.Errorf("nil column at position %d", i)
		}
		if i == 0 {
			ds.rows = col.Len()
		} else if col.Len() != ds.rows {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", col.Name, col.Len(), ds.rows)
		}
		if _, dup := ds.index[col.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", col.Name)
		}
		ds.index[col.Name] = i
		ds.columns = append(ds.columns, col)
	}
	return ds, nil
}

// Rows returns the row count.
func (d *Dataset) Rows() int {
	return d.rows
}

// ColumnNames returns the ordered column names.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.columns))
	for i, col := range d.columns {
		names[i] = col.Name
	}
	return names
}

// Column returns the named column.
func (d *Dataset) Column(name string) (*Column, bool) {
	idx, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return d.columns[idx], true
}

// NumericColumnNames returns the names of numeric columns in order.
func (d *Dataset) NumericColumnNames() []string {
	var names []string
	for _, col := range d.columns {
		if col.Type == Numeric {
			names = append(names, col.Name)
		}
	}
	return names
}

// ColumnTypes maps column name to declared type label.
func (d *Dataset) ColumnTypes() map[string]string {
	out := make(map[string]string, len(d.columns))
	for _, col := range d.columns {
		out[col.Name] = col.Type.String()
	}
	return out
}

// Slice returns a zero-copy row-range view [start, end).
func (d *Dataset) Slice(start, end int) *Dataset {
	if start < 0 {
		start = 0
	}
	if end > d.rows {
		end = d.rows
	}
	if start > end {
		start = end
	}
	cols := make([]*Column, len(d.columns))
	for i, col := range d.columns {
		cols[i] = col.slice(start, end)
	}
	out, _ := New(cols)
	return out
}

// Select returns a new Dataset holding the given rows in the given order.
func (d *Dataset) Select(indices []int) *Dataset {
	cols := make([]*Column, len(d.columns))
	for i, col := range d.columns {
		cols[i] = col.gather(indices)
	}
	out, _ := New(cols)
	return out
}

// SortByTime returns a copy of the dataset stably sorted ascending on the
// named temporal column. Null timestamps sort last. Duplicates are kept.
func (d *Dataset) SortByTime(name string) (*Dataset, error) {
	col, ok := d.Column(name)
	if !ok {
		return nil, fmt.Errorf("column %q not found", name)
	}
	if col.Type != Temporal {
		return nil, fmt.Errorf("column %q is %s, not temporal", name, col.Type)
	}

	indices := make([]int, d.rows)
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(a, b int) bool {
		ia, ib := indices[a], indices[b]
		if !col.Valid[ia] {
			return false
		}
		if !col.Valid[ib] {
			return true
		}
		return col.Times[ia].Before(col.Times[ib])
	})
	return d.Select(indices), nil
}
