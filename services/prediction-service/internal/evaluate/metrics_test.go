package evaluate

import (
	"math"
	"testing"

	"github.com/showuphq/showup/services/prediction-service/internal/classifier"
)

// alwaysNegativeModel scores everything near zero.
func alwaysNegativeModel() *classifier.Model {
	return &classifier.Model{Weights: []float64{0}, Intercept: -10}
}

// thresholdModel scores high when the single feature is 1, low when 0.
func thresholdModel() *classifier.Model {
	return &classifier.Model{Weights: []float64{20}, Intercept: -10}
}

func TestEvaluate_AllNegativePredictions(t *testing.T) {
	features := [][]float64{{0}, {1}, {0}, {1}}
	labels := []int{0, 1, 0, 1}

	m, err := Evaluate(alwaysNegativeModel(), features, labels, DefaultThreshold)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if m.Precision != 0 || m.Recall != 0 || m.F1 != 0 {
		t.Fatalf("expected zeroed precision/recall/f1, got %+v", m)
	}
	if math.IsNaN(m.Precision) || math.IsNaN(m.F1) {
		t.Fatalf("metrics must never be NaN: %+v", m)
	}
	if m.Accuracy != 0.5 {
		t.Fatalf("expected accuracy 0.5, got %v", m.Accuracy)
	}
}

func TestEvaluate_PerfectModel(t *testing.T) {
	features := [][]float64{{0}, {1}, {0}, {1}, {1}, {0}}
	labels := []int{0, 1, 0, 1, 1, 0}

	m, err := Evaluate(thresholdModel(), features, labels, DefaultThreshold)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if m.Accuracy != 1 || m.Precision != 1 || m.Recall != 1 || m.F1 != 1 {
		t.Fatalf("expected perfect metrics, got %+v", m)
	}
}

func TestEvaluate_MixedConfusion(t *testing.T) {
	// Model predicts positive for feature=1. Labels arranged to produce
	// TP=2, FP=1, TN=2, FN=1.
	features := [][]float64{{1}, {1}, {1}, {0}, {0}, {0}}
	labels := []int{1, 1, 0, 0, 0, 1}

	m, err := Evaluate(thresholdModel(), features, labels, DefaultThreshold)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	const eps = 1e-9
	if math.Abs(m.Accuracy-4.0/6.0) > eps {
		t.Fatalf("accuracy: want %v, got %v", 4.0/6.0, m.Accuracy)
	}
	if math.Abs(m.Precision-2.0/3.0) > eps {
		t.Fatalf("precision: want %v, got %v", 2.0/3.0, m.Precision)
	}
	if math.Abs(m.Recall-2.0/3.0) > eps {
		t.Fatalf("recall: want %v, got %v", 2.0/3.0, m.Recall)
	}
	if math.Abs(m.F1-2.0/3.0) > eps {
		t.Fatalf("f1: want %v, got %v", 2.0/3.0, m.F1)
	}
}

func TestEvaluate_InvalidThresholdFallsBack(t *testing.T) {
	features := [][]float64{{1}, {0}}
	labels := []int{1, 0}
	m, err := Evaluate(thresholdModel(), features, labels, -3)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if m.Accuracy != 1 {
		t.Fatalf("expected fallback to default threshold, got %+v", m)
	}
}
