// Package regress implements per-entity rolling ordinary least squares over
// a panel table: coefficients, residuals, R², standard errors and t-stats
// for every reference row whose trailing window has enough valid
// observations. The production path maintains running cross-product sums
// updated as the window slides; a direct per-window refit is kept as the
// reference oracle for equivalence tests.
package regress

import "math"

// pivotTol scales the singularity threshold for the normal-equations solve.
const pivotTol = 1e-12

// normalEq accumulates X'X, X'y and the scalar sums an OLS fit needs.
// Rows enter and leave as the window slides; all updates are O(p²).
type normalEq struct {
	p   int
	xx  []float64 // p*p, row-major, symmetric
	xy  []float64 // p
	sy  float64
	syy float64
	n   int
}

func newNormalEq(p int) *normalEq {
	return &normalEq{p: p, xx: make([]float64, p*p), xy: make([]float64, p)}
}

func (ne *normalEq) add(x []float64, y float64)  { ne.update(x, y, 1) }
func (ne *normalEq) drop(x []float64, y float64) { ne.update(x, y, -1) }

func (ne *normalEq) update(x []float64, y, sign float64) {
	for i := 0; i < ne.p; i++ {
		for j := i; j < ne.p; j++ {
			v := sign * x[i] * x[j]
			ne.xx[i*ne.p+j] += v
			if i != j {
				ne.xx[j*ne.p+i] += v
			}
		}
		ne.xy[i] += sign * x[i] * y
	}
	ne.sy += sign * y
	ne.syy += sign * y * y
	ne.n += int(sign)
}

// fit solves the accumulated normal equations. ok is false when the design
// is singular or near-singular; callers turn that into a missing result.
type fitResult struct {
	beta   []float64
	stderr []float64
	tstat  []float64
	r2     float64
	nobs   int
}

func (ne *normalEq) fit() (fitResult, bool) {
	inv, ok := invertSym(ne.xx, ne.p)
	if !ok {
		return fitResult{}, false
	}
	beta := make([]float64, ne.p)
	for i := 0; i < ne.p; i++ {
		for j := 0; j < ne.p; j++ {
			beta[i] += inv[i*ne.p+j] * ne.xy[j]
		}
	}

	// With the exact solution, SSres = Syy - beta'X'y.
	ssRes := ne.syy
	for i := 0; i < ne.p; i++ {
		ssRes -= beta[i] * ne.xy[i]
	}
	if ssRes < 0 {
		ssRes = 0 // running-sum rounding
	}
	ssTot := ne.syy - ne.sy*ne.sy/float64(ne.n)

	r2 := math.NaN()
	if ssTot > 0 {
		r2 = 1 - ssRes/ssTot
	}

	dof := ne.n - ne.p
	stderr := make([]float64, ne.p)
	tstat := make([]float64, ne.p)
	if dof > 0 {
		sigma2 := ssRes / float64(dof)
		for i := 0; i < ne.p; i++ {
			v := sigma2 * inv[i*ne.p+i]
			if v > 0 {
				stderr[i] = math.Sqrt(v)
				tstat[i] = beta[i] / stderr[i]
			} else {
				stderr[i] = 0
				tstat[i] = math.NaN()
			}
		}
	} else {
		for i := range stderr {
			stderr[i] = math.NaN()
			tstat[i] = math.NaN()
		}
	}
	return fitResult{beta: beta, stderr: stderr, tstat: tstat, r2: r2, nobs: ne.n}, true
}

// invertSym inverts a symmetric p×p matrix by Gauss-Jordan elimination with
// partial pivoting. ok is false when a pivot is negligible relative to the
// matrix scale (collinear regressors, or too few rows).
func invertSym(m []float64, p int) ([]float64, bool) {
	a := append([]float64(nil), m...)
	inv := make([]float64, p*p)
	for i := 0; i < p; i++ {
		inv[i*p+i] = 1
	}

	scale := 0.0
	for _, v := range a {
		if av := math.Abs(v); av > scale {
			scale = av
		}
	}
	if scale == 0 {
		return nil, false
	}

	for col := 0; col < p; col++ {
		pivot := col
		for r := col + 1; r < p; r++ {
			if math.Abs(a[r*p+col]) > math.Abs(a[pivot*p+col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot*p+col]) <= pivotTol*scale {
			return nil, false
		}
		if pivot != col {
			swapRows(a, p, pivot, col)
			swapRows(inv, p, pivot, col)
		}
		d := a[col*p+col]
		for j := 0; j < p; j++ {
			a[col*p+j] /= d
			inv[col*p+j] /= d
		}
		for r := 0; r < p; r++ {
			if r == col {
				continue
			}
			f := a[r*p+col]
			if f == 0 {
				continue
			}
			for j := 0; j < p; j++ {
				a[r*p+j] -= f * a[col*p+j]
				inv[r*p+j] -= f * inv[col*p+j]
			}
		}
	}
	return inv, true
}

func swapRows(m []float64, p, a, b int) {
	for j := 0; j < p; j++ {
		m[a*p+j], m[b*p+j] = m[b*p+j], m[a*p+j]
	}
}
