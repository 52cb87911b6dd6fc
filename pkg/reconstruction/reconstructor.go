// Package reconstruction assembles per-tile probability maps back into one
// dense mask per image. Overlapping tile regions are resolved by averaging:
// every prediction is added into an accumulator together with a per-pixel
// coverage count, and the final mask is the element-wise quotient. Averaging
// smooths the discontinuities at tile seams that independent per-tile
// inference would otherwise leave behind.
package reconstruction

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/TianyiFranklinWang/HubMap/pkg/masks"
	"github.com/TianyiFranklinWang/HubMap/pkg/predict"
	"github.com/TianyiFranklinWang/HubMap/pkg/tiling"
)

// Accumulator collects tile predictions for one image. It owns its
// probability sum and coverage count exclusively and is not safe for
// concurrent use; reconstruction is single-writer per image.
type Accumulator struct {
	sum      *mat.Dense
	coverage *mat.Dense

	height, width int
	finalized     bool

	// ones caches the all-ones tile added into the coverage view,
	// rebuilt only when the tile size changes.
	ones *mat.Dense
}

// NewAccumulator returns an empty accumulator for a mask of the given shape.
func NewAccumulator(height, width int) *Accumulator {
	return &Accumulator{
		sum:      mat.NewDense(height, width, nil),
		coverage: mat.NewDense(height, width, nil),
		height:   height,
		width:    width,
	}
}

// Add accumulates one tile prediction at the given origin. The prediction
// must be exactly size x size and the tile must lie inside the mask; a
// disagreement is a ShapeMismatchError.
func (a *Accumulator) Add(origin tiling.Origin, size int, pred *mat.Dense) error {
	if a.finalized {
		return fmt.Errorf("accumulator already finalized")
	}
	if err := masks.CheckShape(fmt.Sprintf("tile at (%d,%d)", origin.Row, origin.Col), pred, size, size); err != nil {
		return err
	}
	if origin.Row < 0 || origin.Col < 0 || origin.Row+size > a.height || origin.Col+size > a.width {
		return &masks.ShapeMismatchError{
			Subject:  fmt.Sprintf("tile at (%d,%d)", origin.Row, origin.Col),
			GotRows:  origin.Row + size,
			GotCols:  origin.Col + size,
			WantRows: a.height,
			WantCols: a.width,
		}
	}

	sumView := a.sum.Slice(origin.Row, origin.Row+size, origin.Col, origin.Col+size).(*mat.Dense)
	sumView.Add(sumView, pred)

	if a.ones == nil {
		data := make([]float64, size*size)
		for i := range data {
			data[i] = 1
		}
		a.ones = mat.NewDense(size, size, data)
	} else if r, _ := a.ones.Dims(); r != size {
		data := make([]float64, size*size)
		for i := range data {
			data[i] = 1
		}
		a.ones = mat.NewDense(size, size, data)
	}

	covView := a.coverage.Slice(origin.Row, origin.Row+size, origin.Col, origin.Col+size).(*mat.Dense)
	covView.Add(covView, a.ones)

	return nil
}

// Finalize divides the accumulated sum by the coverage count element-wise
// and returns the averaged mask. The planner's coverage invariant guarantees
// every pixel was written at least once; Finalize reports an error if any
// pixel was never covered. The accumulator rejects further Adds afterwards.
func (a *Accumulator) Finalize() (*mat.Dense, error) {
	if a.finalized {
		return nil, fmt.Errorf("accumulator already finalized")
	}

	cov := a.coverage.RawMatrix().Data
	for i, c := range cov {
		if c == 0 {
			return nil, fmt.Errorf("pixel %d has no tile coverage; tile plan does not cover the mask", i)
		}
	}

	floats.Div(a.sum.RawMatrix().Data, cov)
	a.finalized = true
	return a.sum, nil
}

// Source is an image whose tiles can be extracted for inference.
type Source interface {
	predict.TileSource

	// Bounds returns the image dimensions in pixels.
	Bounds() (height, width int)
}

// Options configures entire-mask prediction for one image.
type Options struct {
	// TileSize is the side length of each inference tile.
	TileSize int

	// OverlapFactor is the fraction of each tile shared with its
	// neighbor, 0 <= OverlapFactor < 1.
	OverlapFactor float64

	// ReduceFactor downscales the final mask by an integer divisor with
	// area-weighted interpolation. 1 (or 0) keeps full resolution.
	ReduceFactor int

	// BatchSize groups tiles into one inference call.
	BatchSize int

	// UseTTA enables test-time augmentation.
	UseTTA bool
}

// PredictEntireMask tiles the source image, runs batched inference over the
// plan, and reconstructs the full-resolution averaged probability mask.
func PredictEntireMask(src Source, inf predict.Inferencer, opts Options) (*mat.Dense, error) {
	height, width := src.Bounds()
	plan, err := tiling.NewPlan(height, width, opts.TileSize, opts.OverlapFactor)
	if err != nil {
		return nil, err
	}

	preds, err := predict.PredictPlan(inf, src, plan, predict.Options{
		BatchSize: opts.BatchSize,
		UseTTA:    opts.UseTTA,
	})
	if err != nil {
		return nil, err
	}

	acc := NewAccumulator(height, width)
	for i, origin := range plan.Origins {
		if err := acc.Add(origin, plan.TileSize, preds[i]); err != nil {
			return nil, err
		}
	}

	return acc.Finalize()
}

// PredictEntireMaskDownscaled reconstructs the full mask and then resizes it
// by the reduce factor with area-weighted interpolation. The lower-resolution
// mask makes the iterative threshold search considerably cheaper.
func PredictEntireMaskDownscaled(src Source, inf predict.Inferencer, opts Options) (*mat.Dense, error) {
	full, err := PredictEntireMask(src, inf, opts)
	if err != nil {
		return nil, err
	}

	factor := opts.ReduceFactor
	if factor <= 1 {
		return full, nil
	}
	return masks.DownscaleArea(full, factor)
}
