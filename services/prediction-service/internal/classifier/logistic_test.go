package classifier

import (
	"errors"
	"math"
	"testing"
)

// separableDataset builds a synthetic set where the first feature perfectly
// separates the classes.
func separableDataset(n int) ([][]float64, []int) {
	features := make([][]float64, 0, n)
	labels := make([]int, 0, n)
	for i := 0; i < n; i++ {
		label := i % 2
		x := 0.1
		if label == 1 {
			x = 0.9
		}
		// Second feature is noise shared by both classes.
		features = append(features, []float64{x, float64(i%5) / 5})
		labels = append(labels, label)
	}
	return features, labels
}

func TestFit_SeparableRankOrder(t *testing.T) {
	features, labels := separableDataset(60)

	m, err := Fit(features, labels, DefaultFitConfig())
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	pLow, err := m.PredictProbability([]float64{0.1, 0.2})
	if err != nil {
		t.Fatalf("PredictProbability: %v", err)
	}
	pHigh, err := m.PredictProbability([]float64{0.9, 0.2})
	if err != nil {
		t.Fatalf("PredictProbability: %v", err)
	}

	if pHigh <= pLow {
		t.Fatalf("expected separable feature to rank-order: pHigh=%v pLow=%v", pHigh, pLow)
	}
	if pHigh <= 0.5 {
		t.Fatalf("positive-class point should score above 0.5, got %v", pHigh)
	}
	if pLow >= 0.5 {
		t.Fatalf("negative-class point should score below 0.5, got %v", pLow)
	}
}

func TestFit_InsufficientSamples(t *testing.T) {
	features, labels := separableDataset(10)
	_, err := Fit(features, labels, DefaultFitConfig())
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestFit_SingleClass(t *testing.T) {
	features := make([][]float64, 30)
	labels := make([]int, 30)
	for i := range features {
		features[i] = []float64{float64(i)}
	}
	_, err := Fit(features, labels, DefaultFitConfig())
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData for single-class labels, got %v", err)
	}
}

func TestFit_RaggedRows(t *testing.T) {
	features, labels := separableDataset(30)
	features[7] = []float64{0.5}
	_, err := Fit(features, labels, DefaultFitConfig())
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestPredictProbability_Errors(t *testing.T) {
	var nilModel *Model
	if _, err := nilModel.PredictProbability([]float64{1}); !errors.Is(err, ErrNotTrained) {
		t.Fatalf("expected ErrNotTrained on nil model, got %v", err)
	}

	features, labels := separableDataset(40)
	m, err := Fit(features, labels, DefaultFitConfig())
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if _, err := m.PredictProbability([]float64{1, 2, 3}); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestPredictProbability_BoundedUnderExtremeInputs(t *testing.T) {
	m := &Model{Weights: []float64{1000}, Intercept: 500}
	p, err := m.PredictProbability([]float64{1e9})
	if err != nil {
		t.Fatalf("PredictProbability: %v", err)
	}
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 || p > 1 {
		t.Fatalf("probability escaped [0,1]: %v", p)
	}

	pNeg, err := m.PredictProbability([]float64{-1e9})
	if err != nil {
		t.Fatalf("PredictProbability: %v", err)
	}
	if pNeg < 0 || pNeg > 1 {
		t.Fatalf("probability escaped [0,1]: %v", pNeg)
	}
}

func TestSplit_Deterministic(t *testing.T) {
	features, labels := separableDataset(50)

	tx1, ty1, sx1, sy1 := Split(features, labels, 0.2, DefaultSplitSeed)
	tx2, ty2, sx2, sy2 := Split(features, labels, 0.2, DefaultSplitSeed)

	if len(sx1) != 10 || len(tx1) != 40 {
		t.Fatalf("unexpected split sizes: train=%d test=%d", len(tx1), len(sx1))
	}
	if len(tx1) != len(tx2) || len(sx1) != len(sx2) {
		t.Fatal("split sizes differ across runs")
	}
	for i := range tx1 {
		if tx1[i][0] != tx2[i][0] || ty1[i] != ty2[i] {
			t.Fatalf("train partition differs at %d", i)
		}
	}
	for i := range sx1 {
		if sx1[i][0] != sx2[i][0] || sy1[i] != sy2[i] {
			t.Fatalf("held-out partition differs at %d", i)
		}
	}
}

func TestSplit_AlwaysHoldsOutAtLeastOne(t *testing.T) {
	features, labels := separableDataset(4)
	_, _, testX, _ := Split(features, labels, 0.1, DefaultSplitSeed)
	if len(testX) != 1 {
		t.Fatalf("expected 1 held-out sample, got %d", len(testX))
	}
}
