package classifier

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// MinTrainingSamples is the floor below which fitted coefficients are
// meaningless noise.
const MinTrainingSamples = 20

// zClip bounds the linear term before exponentiation so extreme weights
// cannot overflow math.Exp.
const zClip = 30.0

var (
	ErrInsufficientData  = errors.New("insufficient training data")
	ErrNotTrained        = errors.New("model not trained")
	ErrDimensionMismatch = errors.New("feature vector dimension mismatch")
)

// Model is an immutable snapshot of fitted logistic-regression parameters.
// Once produced it is never mutated; replacing the active model is done by
// swapping the pointer.
type Model struct {
	Weights     []float64
	Intercept   float64
	TrainedAt   time.Time
	SampleCount int
	Version     string
}

// FitConfig holds the gradient-descent hyperparameters. The defaults are the
// ones we validated against the evaluator; they are tunable, not sacred.
type FitConfig struct {
	LearningRate float64
	Iterations   int
	L2           float64
}

func DefaultFitConfig() FitConfig {
	return FitConfig{
		LearningRate: 0.1,
		Iterations:   1000,
		L2:           0.001,
	}
}

// Fit trains a logistic regression by batch gradient descent on log-loss.
//
// It fails with ErrInsufficientData when fewer than MinTrainingSamples
// labeled rows are supplied or when the labels contain only one class: a
// single-class fit would converge to a degenerate always-same-probability
// model, and that must be signaled, never returned silently.
func Fit(features [][]float64, labels []int, cfg FitConfig) (*Model, error) {
	if len(features) != len(labels) {
		return nil, fmt.Errorf("features (%d) and labels (%d) differ in length", len(features), len(labels))
	}
	if len(features) < MinTrainingSamples {
		return nil, fmt.Errorf("%w: %d samples, need at least %d", ErrInsufficientData, len(features), MinTrainingSamples)
	}

	dim := len(features[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: empty feature vectors", ErrDimensionMismatch)
	}
	positives := 0
	for i, row := range features {
		if len(row) != dim {
			return nil, fmt.Errorf("%w: row %d has %d features, expected %d", ErrDimensionMismatch, i, len(row), dim)
		}
		if labels[i] != 0 && labels[i] != 1 {
			return nil, fmt.Errorf("label at row %d is %d, want 0 or 1", i, labels[i])
		}
		positives += labels[i]
	}
	if positives == 0 || positives == len(labels) {
		return nil, fmt.Errorf("%w: labels contain a single class", ErrInsufficientData)
	}

	if cfg.LearningRate <= 0 {
		cfg.LearningRate = DefaultFitConfig().LearningRate
	}
	if cfg.Iterations <= 0 {
		cfg.Iterations = DefaultFitConfig().Iterations
	}
	if cfg.L2 < 0 {
		cfg.L2 = 0
	}

	n := float64(len(features))
	weights := make([]float64, dim)
	intercept := 0.0

	grad := make([]float64, dim)
	for iter := 0; iter < cfg.Iterations; iter++ {
		for j := range grad {
			grad[j] = 0
		}
		gradIntercept := 0.0

		for i, row := range features {
			p := sigmoid(linear(weights, intercept, row))
			residual := p - float64(labels[i])
			for j, x := range row {
				grad[j] += residual * x
			}
			gradIntercept += residual
		}

		for j := range weights {
			// L2 penalty on weights only; the intercept is unregularized.
			weights[j] -= cfg.LearningRate * (grad[j]/n + cfg.L2*weights[j])
		}
		intercept -= cfg.LearningRate * gradIntercept / n
	}

	return &Model{
		Weights:     weights,
		Intercept:   intercept,
		SampleCount: len(features),
	}, nil
}

// PredictProbability applies the fitted linear function and logistic
// transform to one feature vector. The result is always in [0,1].
func (m *Model) PredictProbability(featureVector []float64) (float64, error) {
	if m == nil || len(m.Weights) == 0 {
		return 0, ErrNotTrained
	}
	if len(featureVector) != len(m.Weights) {
		return 0, fmt.Errorf("%w: model has %d weights, vector has %d features", ErrDimensionMismatch, len(m.Weights), len(featureVector))
	}
	return sigmoid(linear(m.Weights, m.Intercept, featureVector)), nil
}

func linear(weights []float64, intercept float64, row []float64) float64 {
	z := intercept
	for j, w := range weights {
		z += w * row[j]
	}
	return z
}

func sigmoid(z float64) float64 {
	if z > zClip {
		z = zClip
	} else if z < -zClip {
		z = -zClip
	}
	return 1 / (1 + math.Exp(-z))
}
