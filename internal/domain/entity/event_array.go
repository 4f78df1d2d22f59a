package entity

import (
	"errors"
	"fmt"
)

// ErrUnknownBranch is returned when a branch is not part of an EventArray.
var ErrUnknownBranch = errors.New("unknown branch")

// ColumnKind distinguishes per-event scalars from variable-length lists.
type ColumnKind int

const (
	// ScalarColumn holds one value per event.
	ScalarColumn ColumnKind = iota
	// JaggedColumn holds a variable-length list per event.
	JaggedColumn
)

func (k ColumnKind) String() string {
	switch k {
	case ScalarColumn:
		return "scalar"
	case JaggedColumn:
		return "jagged"
	default:
		return fmt.Sprintf("ColumnKind(%d)", int(k))
	}
}

// Column is one branch of columnar event data.
// Exactly one of Values (scalar) or Jagged (jagged) is used, depending on Kind.
type Column struct {
	Name   string
	Kind   ColumnKind
	Values []float64
	Jagged [][]float64
}

// NewScalarColumn creates a column with one value per event.
func NewScalarColumn(name string, values []float64) *Column {
	return &Column{Name: name, Kind: ScalarColumn, Values: values}
}

// NewJaggedColumn creates a column with a list of values per event.
func NewJaggedColumn(name string, values [][]float64) *Column {
	return &Column{Name: name, Kind: JaggedColumn, Jagged: values}
}

// Len returns the number of events in the column.
func (c *Column) Len() int {
	if c.Kind == JaggedColumn {
		return len(c.Jagged)
	}
	return len(c.Values)
}

func (c *Column) slice(start, stop int) *Column {
	if c.Kind == JaggedColumn {
		return NewJaggedColumn(c.Name, c.Jagged[start:stop:stop])
	}
	return NewScalarColumn(c.Name, c.Values[start:stop:stop])
}

func (c *Column) filter(mask []bool, kept int) *Column {
	if c.Kind == JaggedColumn {
		out := make([][]float64, 0, kept)
		for i, keep := range mask {
			if keep {
				out = append(out, c.Jagged[i])
			}
		}
		return NewJaggedColumn(c.Name, out)
	}

	out := make([]float64, 0, kept)
	for i, keep := range mask {
		if keep {
			out = append(out, c.Values[i])
		}
	}
	return NewScalarColumn(c.Name, out)
}

func (c *Column) concat(other *Column) (*Column, error) {
	if c.Kind != other.Kind {
		return nil, fmt.Errorf("branch %s: cannot concatenate %s with %s column", c.Name, c.Kind, other.Kind)
	}
	if c.Kind == JaggedColumn {
		out := make([][]float64, 0, len(c.Jagged)+len(other.Jagged))
		out = append(out, c.Jagged...)
		out = append(out, other.Jagged...)
		return NewJaggedColumn(c.Name, out), nil
	}
	out := make([]float64, 0, len(c.Values)+len(other.Values))
	out = append(out, c.Values...)
	out = append(out, other.Values...)
	return NewScalarColumn(c.Name, out), nil
}

// EventArray is an ordered set of equally long columns.
// An EventArray is immutable: Slice, Filter and Concat return new arrays.
type EventArray struct {
	names   []string
	columns map[string]*Column
	n       int
}

// NewEventArray builds an array from columns, which must have unique names
// and equal lengths.
func NewEventArray(columns ...*Column) (*EventArray, error) {
	a := &EventArray{
		names:   make([]string, 0, len(columns)),
		columns: make(map[string]*Column, len(columns)),
	}

	for i, c := range columns {
		if c == nil {
			return nil, fmt.Errorf("column %d is nil", i)
		}
		if c.Name == "" {
			return nil, fmt.Errorf("column %d has no name", i)
		}
		if _, dup := a.columns[c.Name]; dup {
			return nil, fmt.Errorf("duplicate branch %s", c.Name)
		}
		if i == 0 {
			a.n = c.Len()
		} else if c.Len() != a.n {
			return nil, fmt.Errorf("branch %s has %d events, expected %d", c.Name, c.Len(), a.n)
		}
		a.names = append(a.names, c.Name)
		a.columns[c.Name] = c
	}

	return a, nil
}

// Len returns the number of events.
func (a *EventArray) Len() int {
	if a == nil {
		return 0
	}
	return a.n
}

// Names returns the branch names in order.
func (a *EventArray) Names() []string {
	out := make([]string, len(a.names))
	copy(out, a.names)
	return out
}

// Column returns the named branch.
func (a *EventArray) Column(name string) (*Column, error) {
	c, ok := a.columns[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBranch, name)
	}
	return c, nil
}

// Slice returns events [start, stop), clamped to the array bounds.
func (a *EventArray) Slice(start, stop int) *EventArray {
	start = clamp(start, 0, a.n)
	stop = clamp(stop, start, a.n)

	out := &EventArray{
		names:   a.Names(),
		columns: make(map[string]*Column, len(a.columns)),
		n:       stop - start,
	}
	for _, name := range a.names {
		out.columns[name] = a.columns[name].slice(start, stop)
	}
	return out
}

// Filter keeps the events whose mask entry is true.
func (a *EventArray) Filter(mask []bool) (*EventArray, error) {
	if len(mask) != a.n {
		return nil, fmt.Errorf("selection mask has %d entries, expected %d", len(mask), a.n)
	}

	kept := 0
	for _, keep := range mask {
		if keep {
			kept++
		}
	}

	out := &EventArray{
		names:   a.Names(),
		columns: make(map[string]*Column, len(a.columns)),
		n:       kept,
	}
	for _, name := range a.names {
		out.columns[name] = a.columns[name].filter(mask, kept)
	}
	return out, nil
}

// Concat appends the events of other. Both arrays must hold the same
// branches; an array without branches is the identity.
func (a *EventArray) Concat(other *EventArray) (*EventArray, error) {
	if other == nil || len(other.names) == 0 {
		return a, nil
	}
	if len(a.names) == 0 {
		return other, nil
	}
	if len(a.names) != len(other.names) {
		return nil, fmt.Errorf("cannot concatenate arrays with %d and %d branches", len(a.names), len(other.names))
	}

	out := &EventArray{
		names:   a.Names(),
		columns: make(map[string]*Column, len(a.columns)),
		n:       a.n + other.n,
	}
	for _, name := range a.names {
		oc, ok := other.columns[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s missing from appended array", ErrUnknownBranch, name)
		}
		c, err := a.columns[name].concat(oc)
		if err != nil {
			return nil, err
		}
		out.columns[name] = c
	}
	return out, nil
}

// Row returns event i as branch name -> value. Jagged branches report the
// length of their list.
func (a *EventArray) Row(i int) map[string]any {
	row := make(map[string]any, len(a.names))
	for _, name := range a.names {
		c := a.columns[name]
		if c.Kind == JaggedColumn {
			row[name] = float64(len(c.Jagged[i]))
		} else {
			row[name] = c.Values[i]
		}
	}
	return row
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
