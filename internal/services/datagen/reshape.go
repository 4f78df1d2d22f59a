package datagen

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/hephy-analysis/analysis-tools/internal/domain/entity"
)

func (g *Generator) loaded() (*entity.EventArray, error) {
	data := g.Data()
	if data == nil {
		return nil, ErrNotLoaded
	}
	return data, nil
}

// ScalarBranches returns the cached chunk as an events x branches matrix.
func (g *Generator) ScalarBranches(branches []string) (*mat.Dense, error) {
	data, err := g.loaded()
	if err != nil {
		return nil, err
	}
	if len(branches) == 0 {
		return nil, fmt.Errorf("no branches requested")
	}
	if data.Len() == 0 {
		return nil, ErrEmptyChunk
	}

	m := mat.NewDense(data.Len(), len(branches), nil)
	for j, b := range branches {
		c, err := data.Column(b)
		if err != nil {
			return nil, err
		}
		if c.Kind != entity.ScalarColumn {
			return nil, fmt.Errorf("branch %s is %s, expected scalar", b, c.Kind)
		}
		m.SetCol(j, c.Values)
	}
	return m, nil
}

// VectorBranch returns the per-event values of one branch without padding.
// Scalar branches give one value per event.
func (g *Generator) VectorBranch(branch string) ([][]float64, error) {
	data, err := g.loaded()
	if err != nil {
		return nil, err
	}
	if data.Len() == 0 {
		return [][]float64{}, nil
	}
	c, err := data.Column(branch)
	if err != nil {
		return nil, err
	}

	out := make([][]float64, c.Len())
	for i := range out {
		if c.Kind == entity.JaggedColumn {
			out[i] = append([]float64(nil), c.Jagged[i]...)
		} else {
			out[i] = []float64{c.Values[i]}
		}
	}
	return out, nil
}

// VectorBranches returns jagged branches as a tensor of shape
// events x target x branches. Lists longer than target are clipped and
// shorter ones are padded with padValue. An empty chunk gives a
// 0 x target x branches tensor.
func (g *Generator) VectorBranches(branches []string, target int, padValue float64) (*entity.Tensor, error) {
	data, err := g.loaded()
	if err != nil {
		return nil, err
	}
	if target <= 0 {
		return nil, fmt.Errorf("padding target must be positive, got %d", target)
	}
	if data.Len() == 0 {
		// Chunks without files carry no columns.
		return entity.NewTensor(0, target, len(branches))
	}

	cols := make([]*entity.Column, len(branches))
	for k, b := range branches {
		c, err := data.Column(b)
		if err != nil {
			return nil, err
		}
		if c.Kind != entity.JaggedColumn {
			return nil, fmt.Errorf("branch %s is %s, expected jagged", b, c.Kind)
		}
		cols[k] = c
	}

	t, err := entity.NewTensor(data.Len(), target, len(branches))
	if err != nil {
		return nil, err
	}
	for i := 0; i < data.Len(); i++ {
		for k, c := range cols {
			list := c.Jagged[i]
			for j := 0; j < target; j++ {
				v := padValue
				if j < len(list) {
					v = list[j]
				}
				t.Set(v, i, j, k)
			}
		}
	}
	return t, nil
}
