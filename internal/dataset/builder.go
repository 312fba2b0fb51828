package dataset

import (
	"fmt"
	"strings"
	"time"

	"github.com/chronicle-lab/tsreport/internal/utils"
)

// Builder is the declarative phase of Dataset construction. Columns are
// appended and transforms queued; nothing is materialized until Build. A
// Builder and the Dataset it produces never share a variable's lifetime:
// Build hands ownership of the column data to the result.
type Builder struct {
	columns []*Column
	coerce  []string
	rows    int
	sized   bool
	err     error
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) add(col *Column) *Builder {
	if b.err != nil {
		return b
	}
	if !b.sized {
		b.rows = col.Len()
		b.sized = true
	} else if col.Len() != b.rows {
		b.err = fmt.Errorf("column %q has %d rows, expected %d", col.Name, col.Len(), b.rows)
		return b
	}
	b.columns = append(b.columns, col)
	return b
}

// AddNumeric appends a numeric column. A nil valid mask means all valid.
func (b *Builder) AddNumeric(name string, values []float64, valid []bool) *Builder {
	return b.add(&Column{Name: name, Type: Numeric, Floats: values, Valid: fillValid(valid, len(values))})
}

// AddTemporal appends a temporal column.
func (b *Builder) AddTemporal(name string, values []time.Time, valid []bool) *Builder {
	return b.add(&Column{Name: name, Type: Temporal, Times: values, Valid: fillValid(valid, len(values))})
}

// AddText appends a text column.
func (b *Builder) AddText(name string, values []string, valid []bool) *Builder {
	return b.add(&Column{Name: name, Type: Text, Strings: values, Valid: fillValid(valid, len(values))})
}

// AddBool appends a boolean column.
func (b *Builder) AddBool(name string, values []bool, valid []bool) *Builder {
	return b.add(&Column{Name: name, Type: Bool, Bools: values, Valid: fillValid(valid, len(values))})
}

// CoerceTemporal queues a deferred transform that converts the named text
// column to temporal at Build time, trying the fixed layout list until one
// yields a non-all-null result. Failure degrades to a warning, not an error.
func (b *Builder) CoerceTemporal(name string) *Builder {
	if b.err != nil {
		return b
	}
	b.coerce = append(b.coerce, name)
	return b
}

// Build materializes the Dataset and returns any coercion warnings.
func (b *Builder) Build() (*Dataset, []string, error) {
	if b.err != nil {
		return nil, nil, b.err
	}

	var warnings []string
	for _, name := range b.coerce {
		idx := -1
		for i, col := range b.columns {
			if col.Name == name {
				idx = i
				break
			}
		}
		if idx < 0 {
			warnings = append(warnings, fmt.Sprintf("temporal coercion skipped: column %q not found", name))
			continue
		}
		coerced, ok := coerceTemporal(b.columns[idx])
		if !ok {
			warnings = append(warnings, fmt.Sprintf("column %q could not be parsed as temporal with any known layout", name))
			continue
		}
		b.columns[idx] = coerced
	}

	ds, err := New(b.columns)
	if err != nil {
		return nil, nil, err
	}
	return ds, warnings, nil
}

// coerceTemporal tries each layout against a text column and keeps the first
// layout producing at least one parsed value.
func coerceTemporal(col *Column) (*Column, bool) {
	if col.Type == Temporal {
		return col, true
	}
	if col.Type != Text {
		return nil, false
	}

	for _, layout := range utils.TimeFormats {
		times := make([]time.Time, len(col.Strings))
		valid := make([]bool, len(col.Strings))
		parsed := 0
		for i, raw := range col.Strings {
			if !col.Valid[i] {
				continue
			}
			t, err := time.Parse(layout, strings.TrimSpace(raw))
			if err != nil {
				continue
			}
			times[i] = t
			valid[i] = true
			parsed++
		}
		if parsed > 0 {
			return &Column{Name: col.Name, Type: Temporal, Times: times, Valid: valid}, true
		}
	}
	return nil, false
}

func fillValid(valid []bool, n int) []bool {
	if valid != nil {
		return valid
	}
	out := make([]bool, n)
	for i := range out {
		out[i] = true
	}
	return out
}
