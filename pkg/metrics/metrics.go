// Package metrics implements the Dice similarity scoring and the threshold
// grid search used to evaluate reconstructed segmentation masks.
package metrics

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/TianyiFranklinWang/HubMap/pkg/masks"
)

// Dice computes the Dice similarity coefficient between two binary masks:
// 2*|A n B| / (|A| + |B|). When both masks are entirely empty the score is
// defined as 0 rather than NaN, so aggregate averages stay well-defined.
func Dice(pred, truth *mat.Dense) (float64, error) {
	rows, cols := truth.Dims()
	if err := masks.CheckShape("dice scorer", pred, rows, cols); err != nil {
		return 0, err
	}

	intersection := 0.0
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if pred.At(r, c) > 0.5 && truth.At(r, c) > 0.5 {
				intersection++
			}
		}
	}
	predSum := masks.Sum(pred)
	truthSum := masks.Sum(truth)

	if predSum+truthSum == 0 {
		return 0, nil
	}
	return 2 * intersection / (predSum + truthSum), nil
}

// DefaultThresholds returns the candidate grid used by TweakThreshold when
// the caller does not supply one: 0.05 through 0.95 in steps of 0.05.
func DefaultThresholds() []float64 {
	grid := make([]float64, 0, 19)
	for i := 1; i <= 19; i++ {
		grid = append(grid, float64(i)*0.05)
	}
	return grid
}

// TweakThreshold searches candidates in ascending order for the threshold
// that maximizes the Dice score of the binarized prediction against the
// ground truth. Ties keep the first (lowest) maximum. An empty or nil
// candidates slice uses DefaultThresholds. The search is a coarse brute-force grid: the score
// is non-differentiable and cheap enough per threshold that nothing finer
// is warranted.
func TweakThreshold(truth, pred *mat.Dense, candidates []float64) (float64, float64, error) {
	rows, cols := truth.Dims()
	if err := masks.CheckShape("threshold tuner", pred, rows, cols); err != nil {
		return 0, 0, err
	}
	if len(candidates) == 0 {
		candidates = DefaultThresholds()
	}

	bestThreshold := candidates[0]
	bestScore := -1.0
	for _, threshold := range candidates {
		binary := masks.Binarize(pred, threshold)
		score, err := Dice(binary, truth)
		if err != nil {
			return 0, 0, err
		}
		if score > bestScore {
			bestScore = score
			bestThreshold = threshold
		}
	}

	return bestThreshold, bestScore, nil
}

// MeanStd aggregates per-fold scores into the cross-validation summary.
// A single score reports a standard deviation of 0.
func MeanStd(scores []float64) (float64, float64) {
	if len(scores) == 0 {
		return 0, 0
	}
	mean := stat.Mean(scores, nil)
	if len(scores) == 1 {
		return mean, 0
	}
	return mean, stat.StdDev(scores, nil)
}
