package regress

import (
	"fmt"

	"github.com/aepodrez/crosssignals/internal/panel"
	"github.com/aepodrez/crosssignals/internal/temporal"
)

// Config describes one rolling regression: dependent field, fixed ordered
// regressor fields, trailing window and the minimum valid-observation count.
type Config struct {
	Dependent  string
	Regressors []string
	Window     int
	MinObs     int
	// NoIntercept drops the constant term.
	NoIntercept bool
	// ExcludeCurrent fits rows [t-W, t-1] and evaluates the residual at
	// row t, for signal families that lag the window by one period.
	ExcludeCurrent bool
	// Mode counts the window by rows or by calendar periods.
	Mode temporal.Mode
}

func (c Config) validate() error {
	if c.Dependent == "" || len(c.Regressors) == 0 {
		return fmt.Errorf("regression needs a dependent and at least one regressor")
	}
	if c.Window <= 0 {
		return fmt.Errorf("regression window must be positive, got %d", c.Window)
	}
	if c.MinObs <= 0 || c.MinObs > c.Window {
		return fmt.Errorf("regression min_obs %d out of range for window %d", c.MinObs, c.Window)
	}
	return nil
}

func (c Config) params() int {
	p := len(c.Regressors)
	if !c.NoIntercept {
		p++
	}
	return p
}

// Results holds per-row regression output aligned with the table's row
// order. Coef[j] is the j-th parameter's column: the intercept first
// (unless disabled), then the regressors in configured order. Cells whose
// window failed the minimum-observation or rank requirements are missing.
type Results struct {
	Params []string
	Coef   [][]float64
	StdErr [][]float64
	TStat  [][]float64
	R2     []float64
	Resid  []float64
	NObs   []float64
}

// ParamNames returns the fitted parameter names in coefficient order.
func (c Config) ParamNames() []string {
	names := make([]string, 0, c.params())
	if !c.NoIntercept {
		names = append(names, "const")
	}
	return append(names, c.Regressors...)
}

// NewResults allocates all-missing result columns for an n-row table.
func NewResults(cfg Config, n int) *Results {
	p := cfg.params()
	r := &Results{
		Params: cfg.ParamNames(),
		Coef:   make([][]float64, p),
		StdErr: make([][]float64, p),
		TStat:  make([][]float64, p),
		R2:     missingSlice(n),
		Resid:  missingSlice(n),
		NObs:   missingSlice(n),
	}
	for j := 0; j < p; j++ {
		r.Coef[j] = missingSlice(n)
		r.StdErr[j] = missingSlice(n)
		r.TStat[j] = missingSlice(n)
	}
	return r
}

func missingSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = panel.Missing()
	}
	return s
}

// RollingOLS runs the rolling regression for every entity in the table.
// It is the streaming production path: the window's cross-product sums are
// updated incrementally as it slides, so each step costs O(p²) plus one
// O(p³) solve, independent of the window length.
func RollingOLS(t *panel.Table, cfg Config) (*Results, error) {
	return rollingOLS(t, cfg, false)
}

// naiveRollingOLS refits each window from scratch. Kept as the reference
// oracle the streaming path is validated against.
func naiveRollingOLS(t *panel.Table, cfg Config) (*Results, error) {
	return rollingOLS(t, cfg, true)
}

func rollingOLS(t *panel.Table, cfg Config, refit bool) (*Results, error) {
	res := NewResults(cfg, t.Len())
	if err := rollingOLSSpans(t, cfg, t.EntitySpans(), res, refit); err != nil {
		return nil, err
	}
	return res, nil
}

// RollingOLSSpans runs the streaming estimator over a subset of entity
// spans, writing into a shared Results. Spans are disjoint, so concurrent
// callers on different spans need no locking.
func RollingOLSSpans(t *panel.Table, cfg Config, spans []panel.EntitySpan, res *Results) error {
	return rollingOLSSpans(t, cfg, spans, res, false)
}

func rollingOLSSpans(t *panel.Table, cfg Config, spans []panel.EntitySpan, res *Results, refit bool) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	if err := t.RequireFields(append([]string{cfg.Dependent}, cfg.Regressors...)...); err != nil {
		return err
	}
	dep, err := t.Column(cfg.Dependent)
	if err != nil {
		return err
	}
	regs := make([][]float64, len(cfg.Regressors))
	for i, f := range cfg.Regressors {
		if regs[i], err = t.Column(f); err != nil {
			return err
		}
	}
	for _, span := range spans {
		fitEntity(t.Series(span), span, dep, regs, cfg, refit, res)
	}
	return nil
}

// fitEntity slides the window across one entity's series and records a fit
// for every admissible reference row.
func fitEntity(s *panel.EntitySeries, span panel.EntitySpan, dep []float64, regs [][]float64, cfg Config, refit bool, res *Results) {
	n := span.End - span.Start
	p := cfg.params()

	// Design rows, built once: xrow(i) is nil when the dependent or any
	// regressor is missing at series position i.
	xrows := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := span.Start + i
		if panel.IsMissing(dep[row]) {
			continue
		}
		x := make([]float64, 0, p)
		if !cfg.NoIntercept {
			x = append(x, 1)
		}
		ok := true
		for _, reg := range regs {
			if panel.IsMissing(reg[row]) {
				ok = false
				break
			}
			x = append(x, reg[row])
		}
		if ok {
			xrows[i] = x
		}
	}

	ne := newNormalEq(p)
	left := 0 // first series position inside the current window

	for i := 0; i < n; i++ {
		end := i // last position in the fitted window, inclusive
		if cfg.ExcludeCurrent {
			end = i - 1
		}

		if refit {
			ne = newNormalEq(p)
			lo := windowStart(s, i, end, cfg)
			for j := lo; j <= end; j++ {
				if xrows[j] != nil {
					ne.add(xrows[j], dep[span.Start+j])
				}
			}
		} else {
			// Slide: admit the row entering at this step, evict rows that
			// left the window's trailing edge.
			if end >= 0 && xrows[end] != nil {
				ne.add(xrows[end], dep[span.Start+end])
			}
			switch cfg.Mode {
			case temporal.ByRow:
				lo := end - cfg.Window + 1
				for left < lo {
					if xrows[left] != nil {
						ne.drop(xrows[left], dep[span.Start+left])
					}
					left++
				}
			default: // ByPeriod
				ref := s.Period(i)
				if cfg.ExcludeCurrent {
					ref = ref.Add(-1)
				}
				cutoff := ref.Add(-cfg.Window)
				for left <= end && s.Period(left) <= cutoff {
					if xrows[left] != nil {
						ne.drop(xrows[left], dep[span.Start+left])
					}
					left++
				}
			}
		}

		// An exact-fit window (n == p) is admissible: coefficients and R²
		// are defined, standard errors are not at zero degrees of freedom.
		if ne.n < cfg.MinObs || ne.n < p {
			continue
		}
		fit, ok := ne.fit()
		if !ok {
			continue
		}
		row := span.Start + i
		for j := 0; j < p; j++ {
			res.Coef[j][row] = fit.beta[j]
			res.StdErr[j][row] = fit.stderr[j]
			res.TStat[j][row] = fit.tstat[j]
		}
		res.R2[row] = fit.r2
		res.NObs[row] = float64(fit.nobs)
		if xrows[i] != nil {
			pred := 0.0
			for j, b := range fit.beta {
				pred += b * xrows[i][j]
			}
			res.Resid[row] = dep[row] - pred
		}
	}
}

// windowStart returns the first series position inside the window whose
// last position is end, for reference row i.
func windowStart(s *panel.EntitySeries, i, end int, cfg Config) int {
	if end < 0 {
		return 0
	}
	switch cfg.Mode {
	case temporal.ByRow:
		lo := end - cfg.Window + 1
		if lo < 0 {
			lo = 0
		}
		return lo
	default: // ByPeriod
		ref := s.Period(i)
		if cfg.ExcludeCurrent {
			ref = ref.Add(-1)
		}
		cutoff := ref.Add(-cfg.Window) // window covers periods (ref-W, ref]
		lo := 0
		for lo <= end && s.Period(lo) <= cutoff {
			lo++
		}
		return lo
	}
}
