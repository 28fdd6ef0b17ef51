// Package classifier fits the binary linear classifier that separates
// foreground from background patch embeddings.
package classifier

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// ErrDegenerateData is returned when the training data cannot support a
// fit: empty input, a single class, or a solver breakdown.
var ErrDegenerateData = errors.New("degenerate training data")

// Options bound the logistic-regression solver.
type Options struct {
	// Regularization is the inverse L2 penalty (larger = weaker penalty).
	// The bias term is not penalized.
	Regularization float64

	// MaxIterations caps the L-BFGS iterations.
	MaxIterations int

	// Tolerance is the gradient-norm convergence threshold.
	Tolerance float64
}

// DefaultOptions returns the solver settings the pipeline trains with.
func DefaultOptions() Options {
	return Options{
		Regularization: 1.0,
		MaxIterations:  1000,
		Tolerance:      1e-4,
	}
}

// Model is a fitted binary linear classifier over patch embeddings.
// Score applies the sigmoid to the linear decision function, so Decide's
// 0.5 cutoff is equivalent to a sign test on the raw score.
type Model struct {
	Weights []float64
	Bias    float64
}

// Dim returns the embedding dimension the model was fitted on.
func (m *Model) Dim() int {
	return len(m.Weights)
}

// Score returns the foreground probability for one embedding.
func (m *Model) Score(x []float32) float64 {
	z := m.Bias
	for i, w := range m.Weights {
		z += w * float64(x[i])
	}
	return sigmoid(z)
}

// Decide returns the class decision for one embedding.
func (m *Model) Decide(x []float32) bool {
	return m.Score(x) > 0.5
}

// Fit trains a logistic regression on the given embeddings and binary
// labels by minimizing the L2-regularized logistic loss
//
//	0.5*w'w + C * sum_i log(1 + exp(-y_i (x_i'w + b)))
//
// with L-BFGS from a zero start. The data order is preserved and the solver
// is deterministic, so identical inputs produce identical models.
func Fit(features [][]float32, labels []bool, opts Options) (*Model, error) {
	n := len(features)
	if n == 0 || len(labels) != n {
		return nil, fmt.Errorf("%w: %d samples, %d labels", ErrDegenerateData, n, len(labels))
	}
	dim := len(features[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: zero-dimensional embeddings", ErrDegenerateData)
	}

	pos := 0
	for _, l := range labels {
		if l {
			pos++
		}
	}
	if pos == 0 || pos == n {
		return nil, fmt.Errorf("%w: single class in %d samples", ErrDegenerateData, n)
	}

	x := mat.NewDense(n, dim, nil)
	y := make([]float64, n)
	for i, f := range features {
		if len(f) != dim {
			return nil, fmt.Errorf("%w: ragged embedding table", ErrDegenerateData)
		}
		for j, v := range f {
			x.Set(i, j, float64(v))
		}
		if labels[i] {
			y[i] = 1
		} else {
			y[i] = -1
		}
	}

	c := opts.Regularization
	z := make([]float64, n)
	s := make([]float64, n)

	// theta = [w_0..w_{dim-1}, b]
	problem := optimize.Problem{
		Func: func(theta []float64) float64 {
			w := mat.NewVecDense(dim, theta[:dim])
			zv := mat.NewVecDense(n, z)
			zv.MulVec(x, w)

			loss := 0.5 * mat.Dot(w, w)
			for i := 0; i < n; i++ {
				loss += c * logOnePlusExp(-y[i]*(z[i]+theta[dim]))
			}
			return loss
		},
		Grad: func(grad, theta []float64) {
			w := mat.NewVecDense(dim, theta[:dim])
			zv := mat.NewVecDense(n, z)
			zv.MulVec(x, w)

			var gb float64
			for i := 0; i < n; i++ {
				si := -y[i] * sigmoid(-y[i]*(z[i]+theta[dim]))
				s[i] = si
				gb += si
			}

			gw := mat.NewVecDense(dim, grad[:dim])
			gw.MulVec(x.T(), mat.NewVecDense(n, s))
			gw.ScaleVec(c, gw)
			gw.AddVec(gw, w)
			grad[dim] = c * gb
		},
	}

	settings := &optimize.Settings{
		GradientThreshold: opts.Tolerance,
		MajorIterations:   opts.MaxIterations,
	}
	result, err := optimize.Minimize(problem, make([]float64, dim+1), settings, &optimize.LBFGS{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDegenerateData, err)
	}

	weights := make([]float64, dim)
	copy(weights, result.X[:dim])
	return &Model{Weights: weights, Bias: result.X[dim]}, nil
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

// logOnePlusExp computes log(1+exp(t)) without overflow for large t.
func logOnePlusExp(t float64) float64 {
	if t > 35 {
		return t
	}
	return math.Log1p(math.Exp(t))
}
