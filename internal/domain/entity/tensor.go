package entity

import "fmt"

// Tensor is a dense row-major float64 tensor.
type Tensor struct {
	Shape []int
	Data  []float64
}

// NewTensor allocates a zero tensor of the given shape.
func NewTensor(shape ...int) (*Tensor, error) {
	size := 1
	for i, d := range shape {
		if d < 0 {
			return nil, fmt.Errorf("dimension %d is negative: %d", i, d)
		}
		size *= d
	}
	s := make([]int, len(shape))
	copy(s, shape)
	return &Tensor{Shape: s, Data: make([]float64, size)}, nil
}

func (t *Tensor) offset(idx ...int) int {
	if len(idx) != len(t.Shape) {
		panic(fmt.Sprintf("tensor: %d indices for rank %d", len(idx), len(t.Shape)))
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= t.Shape[i] {
			panic(fmt.Sprintf("tensor: index %d out of range [0, %d) in dimension %d", v, t.Shape[i], i))
		}
		off = off*t.Shape[i] + v
	}
	return off
}

// At returns the element at idx. It panics on a rank mismatch or an index
// out of range, like slice indexing.
func (t *Tensor) At(idx ...int) float64 {
	return t.Data[t.offset(idx...)]
}

// Set stores v at idx.
func (t *Tensor) Set(v float64, idx ...int) {
	t.Data[t.offset(idx...)] = v
}
