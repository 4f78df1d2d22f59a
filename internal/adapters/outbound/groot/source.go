// Package groot reads columnar event data from ROOT files.
//
// Files are opened with go-hep's groot; local paths and root:// URLs are
// supported. Every numeric leaf type is converted to float64: scalar leaves
// become scalar columns, fixed-size arrays and count-indexed slices become
// jagged columns.
package groot

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/riofs"
	_ "go-hep.org/x/hep/groot/riofs/plugin/xrootd"
	"go-hep.org/x/hep/groot/rtree"

	"github.com/hephy-analysis/analysis-tools/internal/domain/entity"
	"github.com/hephy-analysis/analysis-tools/internal/ports/outbound"
)

// Compile-time check that Source implements outbound.EventSource
var _ outbound.EventSource = (*Source)(nil)

// Source implements outbound.EventSource on top of groot.
type Source struct {
	logger *slog.Logger
}

// NewSource creates a ROOT event source.
func NewSource(logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{logger: logger.With("component", "groot-source")}
}

// Read implements outbound.EventSource.
func (s *Source) Read(ctx context.Context, files []string, tree string, branches []string) (*entity.EventArray, error) {
	out, _ := entity.NewEventArray()
	names := branches

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		part, err := s.readFile(ctx, file, tree, names)
		if err != nil {
			return nil, err
		}
		// The first file fixes the branch list when all branches are read.
		if len(names) == 0 {
			names = part.Names()
		}

		out, err = out.Concat(part)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
	}

	return out, nil
}

func (s *Source) readFile(ctx context.Context, file, treeName string, branches []string) (*entity.EventArray, error) {
	f, err := groot.Open(file)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", file, err)
	}
	defer f.Close()

	obj, err := riofs.Dir(f).Get(treeName)
	if err != nil {
		return nil, fmt.Errorf("%s: getting tree %q: %w", file, treeName, err)
	}
	tree, ok := obj.(rtree.Tree)
	if !ok {
		return nil, fmt.Errorf("%s: object %q is a %s, not a tree", file, treeName, obj.Class())
	}

	rvars, wanted, err := selectVars(tree, branches)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}

	cols := make([]*column, len(wanted))
	for i, idx := range wanted {
		cols[i] = newColumn(rvars[idx], int(tree.Entries()))
	}

	r, err := rtree.NewReader(tree, rvars)
	if err != nil {
		return nil, fmt.Errorf("%s: creating reader: %w", file, err)
	}
	defer r.Close()

	err = r.Read(func(rctx rtree.RCtx) error {
		if rctx.Entry%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		for i, idx := range wanted {
			if err := cols[i].append(rvars[idx].Value); err != nil {
				return fmt.Errorf("entry %d: %w", rctx.Entry, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: reading tree %q: %w", file, treeName, err)
	}

	s.logger.Debug("read tree", "file", file, "tree", treeName, "entries", tree.Entries(), "branches", len(wanted))

	columns := make([]*entity.Column, len(cols))
	for i, c := range cols {
		columns[i] = c.column()
	}
	return entity.NewEventArray(columns...)
}

// selectVars returns the read variables for branches plus the count leaves
// they depend on, and the indices of the requested ones in order.
func selectVars(tree rtree.Tree, branches []string) ([]rtree.ReadVar, []int, error) {
	all := rtree.NewReadVars(tree)

	if len(branches) == 0 {
		wanted := make([]int, len(all))
		for i := range all {
			wanted[i] = i
		}
		return all, wanted, nil
	}

	byName := make(map[string]rtree.ReadVar, len(all))
	for _, rv := range all {
		byName[rv.Name] = rv
	}
	counts := make(map[string]string)
	for _, leaf := range tree.Leaves() {
		if lc := leaf.LeafCount(); lc != nil {
			counts[leaf.Name()] = lc.Name()
		}
	}

	var (
		rvars  []rtree.ReadVar
		wanted []int
		pos    = make(map[string]int)
	)
	add := func(name string) int {
		if i, ok := pos[name]; ok {
			return i
		}
		pos[name] = len(rvars)
		rvars = append(rvars, byName[name])
		return pos[name]
	}

	for _, b := range branches {
		rv, ok := byName[b]
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", entity.ErrUnknownBranch, b)
		}
		if count, ok := counts[rv.Leaf]; ok {
			if _, ok := byName[count]; ok {
				add(count)
			}
		}
		wanted = append(wanted, add(b))
	}

	return rvars, wanted, nil
}

type column struct {
	name   string
	kind   entity.ColumnKind
	values []float64
	jagged [][]float64
}

func newColumn(rv rtree.ReadVar, capacity int) *column {
	c := &column{name: rv.Name}
	switch reflect.TypeOf(rv.Value).Elem().Kind() {
	case reflect.Slice, reflect.Array:
		c.kind = entity.JaggedColumn
		c.jagged = make([][]float64, 0, capacity)
	default:
		c.kind = entity.ScalarColumn
		c.values = make([]float64, 0, capacity)
	}
	return c
}

func (c *column) append(ptr any) error {
	v := reflect.ValueOf(ptr).Elem()

	if c.kind == entity.ScalarColumn {
		f, err := toFloat(v)
		if err != nil {
			return fmt.Errorf("branch %s: %w", c.name, err)
		}
		c.values = append(c.values, f)
		return nil
	}

	row := make([]float64, v.Len())
	for i := range row {
		f, err := toFloat(v.Index(i))
		if err != nil {
			return fmt.Errorf("branch %s: %w", c.name, err)
		}
		row[i] = f
	}
	c.jagged = append(c.jagged, row)
	return nil
}

func (c *column) column() *entity.Column {
	if c.kind == entity.JaggedColumn {
		return entity.NewJaggedColumn(c.name, c.jagged)
	}
	return entity.NewScalarColumn(c.name, c.values)
}

func toFloat(v reflect.Value) (float64, error) {
	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			return 1, nil
		}
		return 0, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	default:
		return 0, fmt.Errorf("non-numeric leaf type %s", v.Type())
	}
}
