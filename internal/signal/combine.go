package signal

import (
	"fmt"
	"math"

	"github.com/aepodrez/crosssignals/internal/panel"
)

// combineFns are the row-wise arithmetic ops a combine step may use.
// Binary fns take left and right (a field name, or const when set);
// unary fns take only left. Division by zero and log of a non-positive
// value resolve to missing, never a fault.
var combineFns = map[string]struct {
	unary bool
	apply func(l, r float64) float64
}{
	"add": {apply: func(l, r float64) float64 { return l + r }},
	"sub": {apply: func(l, r float64) float64 { return l - r }},
	"mul": {apply: func(l, r float64) float64 { return l * r }},
	"div": {apply: func(l, r float64) float64 {
		if r == 0 {
			return panel.Missing()
		}
		return l / r
	}},
	"log": {unary: true, apply: func(l, _ float64) float64 {
		if l <= 0 {
			return panel.Missing()
		}
		return math.Log(l)
	}},
	"abs": {unary: true, apply: func(l, _ float64) float64 { return math.Abs(l) }},
	"neg": {unary: true, apply: func(l, _ float64) float64 { return -l }},
}

func validCombineFn(fn string) bool {
	_, ok := combineFns[fn]
	return ok
}

// combine evaluates one combine step into a table-aligned column.
func combine(t *panel.Table, s *Step) ([]float64, error) {
	fn, ok := combineFns[s.Fn]
	if !ok {
		return nil, fmt.Errorf("unknown combine fn %q", s.Fn)
	}
	left, err := operand(t, s.Left, nil)
	if err != nil {
		return nil, err
	}
	var right []float64
	if !fn.unary {
		if right, err = operand(t, s.Right, s.Const); err != nil {
			return nil, err
		}
	}

	out := make([]float64, t.Len())
	for i := range out {
		l := left[i]
		var r float64
		if !fn.unary {
			r = right[i]
		}
		if panel.IsMissing(l) || (!fn.unary && panel.IsMissing(r)) {
			out[i] = panel.Missing()
			continue
		}
		out[i] = fn.apply(l, r)
	}
	return out, nil
}

// operand resolves a field name, or a broadcast constant when the step
// sets one and names no field.
func operand(t *panel.Table, field string, c *float64) ([]float64, error) {
	if field == "" {
		if c == nil {
			return nil, fmt.Errorf("combine operand needs a field or a const")
		}
		col := make([]float64, t.Len())
		for i := range col {
			col[i] = *c
		}
		return col, nil
	}
	return t.Column(field)
}
