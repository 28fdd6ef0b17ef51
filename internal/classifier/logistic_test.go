package classifier

import (
	"errors"
	"math"
	"testing"
)

// separable builds a linearly separable 2-D set: class is the sign of the
// first coordinate.
func separable() ([][]float32, []bool) {
	var features [][]float32
	var labels []bool
	for i := 0; i < 20; i++ {
		off := float32(i) * 0.1
		features = append(features, []float32{1.0 + off, off - 1.0})
		labels = append(labels, true)
		features = append(features, []float32{-1.0 - off, off})
		labels = append(labels, false)
	}
	return features, labels
}

func TestFitSeparatesClasses(t *testing.T) {
	features, labels := separable()
	model, err := Fit(features, labels, DefaultOptions())
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if model.Dim() != 2 {
		t.Fatalf("Dim = %d, want 2", model.Dim())
	}
	for i, f := range features {
		if model.Decide(f) != labels[i] {
			t.Errorf("sample %d %v: decision %v, want %v (score %f)",
				i, f, model.Decide(f), labels[i], model.Score(f))
		}
	}
}

func TestFitDeterministic(t *testing.T) {
	features, labels := separable()
	a, err := Fit(features, labels, DefaultOptions())
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	b, err := Fit(features, labels, DefaultOptions())
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	for i := range a.Weights {
		if a.Weights[i] != b.Weights[i] {
			t.Fatalf("weight %d differs between identical fits: %v vs %v", i, a.Weights[i], b.Weights[i])
		}
	}
	if a.Bias != b.Bias {
		t.Fatalf("bias differs between identical fits: %v vs %v", a.Bias, b.Bias)
	}
}

func TestFitRegularizationBoundsWeights(t *testing.T) {
	features, labels := separable()
	opts := DefaultOptions()
	opts.Regularization = 0.01
	small, err := Fit(features, labels, opts)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	opts.Regularization = 100
	large, err := Fit(features, labels, opts)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if norm(small.Weights) >= norm(large.Weights) {
		t.Fatalf("stronger penalty should shrink weights: %f vs %f",
			norm(small.Weights), norm(large.Weights))
	}
}

func TestFitDegenerate(t *testing.T) {
	tests := []struct {
		name     string
		features [][]float32
		labels   []bool
	}{
		{"empty", nil, nil},
		{"single class positive", [][]float32{{1, 0}, {2, 0}}, []bool{true, true}},
		{"single class negative", [][]float32{{1, 0}, {2, 0}}, []bool{false, false}},
		{"zero dimension", [][]float32{{}, {}}, []bool{true, false}},
		{"length mismatch", [][]float32{{1, 0}}, []bool{true, false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Fit(tt.features, tt.labels, DefaultOptions()); !errors.Is(err, ErrDegenerateData) {
				t.Fatalf("err = %v, want ErrDegenerateData", err)
			}
		})
	}
}

func TestScoreIsSigmoid(t *testing.T) {
	m := &Model{Weights: []float64{1, -2}, Bias: 0.5}
	x := []float32{0.25, 0.75}
	z := 0.5 + 1*0.25 - 2*0.75
	want := 1.0 / (1.0 + math.Exp(-z))
	if got := m.Score(x); math.Abs(got-want) > 1e-12 {
		t.Fatalf("Score = %v, want %v", got, want)
	}
	if m.Decide(x) != (want > 0.5) {
		t.Fatalf("Decide inconsistent with Score")
	}
}

func norm(w []float64) float64 {
	var s float64
	for _, v := range w {
		s += v * v
	}
	return math.Sqrt(s)
}
