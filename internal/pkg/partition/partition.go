// Package partition splits a count of items into contiguous, near-equal chunks.
//
// The chunks are used to hand disjoint shards of files or event rows to
// parallel consumers. Chunk i of n covers the half-open range returned by
// Split; the first total%n chunks hold one extra item.
package partition

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned when split parameters are out of domain.
var ErrInvalidArgument = errors.New("invalid argument")

// Range is a half-open interval [Start, Stop) into the original sequence.
type Range struct {
	Start int
	Stop  int
}

// Len returns the number of items in the range.
func (r Range) Len() int {
	return r.Stop - r.Start
}

// Empty reports whether the range holds no items.
func (r Range) Empty() bool {
	return r.Stop == r.Start
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d)", r.Start, r.Stop)
}

// Split returns the range of chunk index when total items are divided into
// splitCount chunks.
//
// Chunk sizes are total/splitCount or total/splitCount+1, the larger ones
// going to the lowest indices. When total < splitCount the trailing chunks
// are empty.
func Split(total, splitCount, index int) (Range, error) {
	if splitCount <= 0 {
		return Range{}, fmt.Errorf("%w: split count must be positive, got %d", ErrInvalidArgument, splitCount)
	}
	if total < 0 {
		return Range{}, fmt.Errorf("%w: total must be non-negative, got %d", ErrInvalidArgument, total)
	}
	if index < 0 || index >= splitCount {
		return Range{}, fmt.Errorf("%w: index %d outside [0, %d)", ErrInvalidArgument, index, splitCount)
	}

	base := total / splitCount
	remainder := total % splitCount

	if index < remainder {
		start := (base + 1) * index
		return Range{Start: start, Stop: start + base + 1}, nil
	}

	start := (base+1)*remainder + base*(index-remainder)
	return Range{Start: start, Stop: start + base}, nil
}

// Ranges returns the ranges of all splitCount chunks in index order.
func Ranges(total, splitCount int) ([]Range, error) {
	if splitCount <= 0 {
		return nil, fmt.Errorf("%w: split count must be positive, got %d", ErrInvalidArgument, splitCount)
	}

	ranges := make([]Range, 0, splitCount)
	for i := 0; i < splitCount; i++ {
		r, err := Split(total, splitCount, i)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}
