package classifier

import "math/rand"

// DefaultSplitSeed keeps train/held-out partitions reproducible across runs.
// Override only when deliberately re-randomizing an experiment.
const DefaultSplitSeed = 42

// Split shuffles the dataset deterministically and carves off the trailing
// heldOutRatio fraction for evaluation. A non-empty dataset with a positive
// ratio always yields at least one held-out sample.
func Split(features [][]float64, labels []int, heldOutRatio float64, seed int64) (trainX [][]float64, trainY []int, testX [][]float64, testY []int) {
	n := len(features)
	if n == 0 || n != len(labels) {
		return nil, nil, nil, nil
	}
	if heldOutRatio < 0 {
		heldOutRatio = 0
	}
	if heldOutRatio > 0.5 {
		heldOutRatio = 0.5
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

	testN := int(float64(n) * heldOutRatio)
	if heldOutRatio > 0 && testN == 0 {
		testN = 1
	}
	trainN := n - testN

	trainX = make([][]float64, 0, trainN)
	trainY = make([]int, 0, trainN)
	testX = make([][]float64, 0, testN)
	testY = make([]int, 0, testN)

	for i, k := range idx {
		if i < trainN {
			trainX = append(trainX, features[k])
			trainY = append(trainY, labels[k])
		} else {
			testX = append(testX, features[k])
			testY = append(testY, labels[k])
		}
	}
	return trainX, trainY, testX, testY
}
