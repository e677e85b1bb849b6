package evaluate

import (
	"github.com/showuphq/showup/services/prediction-service/internal/classifier"
)

// DefaultThreshold is the classification cut: predicted label is 1 iff the
// probability is >= the threshold.
const DefaultThreshold = 0.5

type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1_score"`
}

// Evaluate scores a model against a held-out set. Precision and recall are
// defined as 0 when their denominator is empty (no positive predictions, or
// no actual positives) so an all-negative model reports zeros, not NaN.
func Evaluate(m *classifier.Model, features [][]float64, labels []int, threshold float64) (Metrics, error) {
	if threshold <= 0 || threshold >= 1 {
		threshold = DefaultThreshold
	}

	var tp, fp, tn, fn int
	for i, row := range features {
		p, err := m.PredictProbability(row)
		if err != nil {
			return Metrics{}, err
		}
		predicted := 0
		if p >= threshold {
			predicted = 1
		}
		switch {
		case predicted == 1 && labels[i] == 1:
			tp++
		case predicted == 1 && labels[i] == 0:
			fp++
		case predicted == 0 && labels[i] == 0:
			tn++
		default:
			fn++
		}
	}

	total := tp + fp + tn + fn
	var mt Metrics
	if total > 0 {
		mt.Accuracy = float64(tp+tn) / float64(total)
	}
	if tp+fp > 0 {
		mt.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		mt.Recall = float64(tp) / float64(tp+fn)
	}
	if mt.Precision+mt.Recall > 0 {
		mt.F1 = 2 * mt.Precision * mt.Recall / (mt.Precision + mt.Recall)
	}
	return mt, nil
}
