package datagen

import (
	"fmt"
	"math"

	"github.com/Knetic/govaluate"

	"github.com/hephy-analysis/analysis-tools/internal/domain/entity"
)

// Selection returns a mask with one entry per event; events with a true
// entry are kept.
type Selection func(data *entity.EventArray) ([]bool, error)

func applySelection(data *entity.EventArray, sel Selection) (*entity.EventArray, error) {
	mask, err := sel(data)
	if err != nil {
		return nil, err
	}
	return data.Filter(mask)
}

// selectionFunctions are callable from selection expressions.
var selectionFunctions = map[string]govaluate.ExpressionFunction{
	"abs":  unary("abs", math.Abs),
	"sqrt": unary("sqrt", math.Sqrt),
	"cos":  unary("cos", math.Cos),
	"cosh": unary("cosh", math.Cosh),
}

func unary(name string, fn func(float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("%s expects 1 argument, got %d", name, len(args))
		}
		v, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("%s expects a number, got %T", name, args[0])
		}
		return fn(v), nil
	}
}

// ExprSelection compiles a boolean expression over branch values, for
// example "met_pt > 100 && jet_pt >= 2" or "abs(lep_eta) < 2.4". Scalar branches evaluate to their
// value and jagged branches to the length of their list.
func ExprSelection(expr string) (Selection, error) {
	compiled, err := govaluate.NewEvaluableExpressionWithFunctions(expr, selectionFunctions)
	if err != nil {
		return nil, fmt.Errorf("parsing selection %q: %w", expr, err)
	}
	vars := compiled.Vars()

	return func(data *entity.EventArray) ([]bool, error) {
		cols := make([]*entity.Column, len(vars))
		for i, v := range vars {
			c, err := data.Column(v)
			if err != nil {
				return nil, fmt.Errorf("selection %q: %w", expr, err)
			}
			cols[i] = c
		}

		params := make(map[string]interface{}, len(vars))
		mask := make([]bool, data.Len())
		for row := range mask {
			for i, c := range cols {
				if c.Kind == entity.JaggedColumn {
					params[vars[i]] = float64(len(c.Jagged[row]))
				} else {
					params[vars[i]] = c.Values[row]
				}
			}

			result, err := compiled.Evaluate(params)
			if err != nil {
				return nil, fmt.Errorf("evaluating selection %q on event %d: %w", expr, row, err)
			}
			keep, ok := result.(bool)
			if !ok {
				return nil, fmt.Errorf("selection %q returned %T, expected a boolean", expr, result)
			}
			mask[row] = keep
		}
		return mask, nil
	}, nil
}

// Threshold keeps events whose scalar branch is at least min.
func Threshold(branch string, min float64) Selection {
	return func(data *entity.EventArray) ([]bool, error) {
		c, err := data.Column(branch)
		if err != nil {
			return nil, err
		}
		if c.Kind != entity.ScalarColumn {
			return nil, fmt.Errorf("threshold on %s branch %s", c.Kind, branch)
		}
		mask := make([]bool, len(c.Values))
		for i, v := range c.Values {
			mask[i] = v >= min
		}
		return mask, nil
	}
}
