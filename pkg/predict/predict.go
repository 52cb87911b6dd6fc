// Package predict runs model inference over planned tiles. The model itself
// is an opaque capability: anything that maps a batch of tile images to
// per-pixel probability maps. This package owns batching and test-time
// augmentation; accelerator memory management belongs to the Inferencer.
package predict

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/mat"

	"github.com/TianyiFranklinWang/HubMap/pkg/masks"
	"github.com/TianyiFranklinWang/HubMap/pkg/tiling"
)

// Inferencer is the model inference capability. Infer maps a batch of tile
// images to probability maps of matching spatial shape, preserving slot
// order exactly as submitted. Release frees any accelerator memory held by
// the model; the fold loop calls it before the next fold allocates.
type Inferencer interface {
	Infer(batch []*image.NRGBA) ([]*mat.Dense, error)
	Release() error
}

// InferencerFunc adapts a per-tile function into an Inferencer. Release is
// a no-op. Used by tests and by CPU-only backends with no batch advantage.
type InferencerFunc func(tile *image.NRGBA) (*mat.Dense, error)

// Infer applies the function to each tile in order.
func (f InferencerFunc) Infer(batch []*image.NRGBA) ([]*mat.Dense, error) {
	preds := make([]*mat.Dense, len(batch))
	for i, tile := range batch {
		pred, err := f(tile)
		if err != nil {
			return nil, err
		}
		preds[i] = pred
	}
	return preds, nil
}

// Release implements Inferencer.
func (f InferencerFunc) Release() error { return nil }

// TileSource provides the pixel data for one tile origin. Implemented by
// dataset slides; kept as an interface so tests can synthesize tiles.
type TileSource interface {
	Tile(origin tiling.Origin, size int) (*image.NRGBA, error)
}

// Augmentation pairs a geometric transform of the input tile with the exact
// inverse transform of the resulting probability map. The forward transform
// runs on pixels, the inverse on floats, so probabilities are never pushed
// through an 8-bit image round trip.
type Augmentation struct {
	Name    string
	Forward func(img image.Image) *image.NRGBA
	Inverse func(m *mat.Dense) *mat.Dense
}

// TTAAugmentations returns the fixed transform set used for test-time
// augmentation: identity, horizontal flip, vertical flip. Averaging over
// these reduces prediction variance at tile boundaries.
func TTAAugmentations() []Augmentation {
	identity := func(m *mat.Dense) *mat.Dense { return m }
	return []Augmentation{
		{
			Name:    "identity",
			Forward: imaging.Clone,
			Inverse: identity,
		},
		{
			Name:    "hflip",
			Forward: imaging.FlipH,
			Inverse: masks.FlipH,
		},
		{
			Name:    "vflip",
			Forward: imaging.FlipV,
			Inverse: masks.FlipV,
		},
	}
}

// Options controls batched prediction over a tile plan.
type Options struct {
	// BatchSize is the number of tiles grouped into one Infer call.
	// Values below 1 are treated as 1.
	BatchSize int

	// UseTTA enables test-time augmentation over TTAAugmentations.
	UseTTA bool
}

// PredictPlan runs inference for every tile in the plan, in plan order.
// Tiles are grouped into batches for throughput; this is input grouping
// inside one synchronous call per batch, not concurrency, and result slot i
// always corresponds to plan origin i.
func PredictPlan(inf Inferencer, src TileSource, plan *tiling.Plan, opts Options) ([]*mat.Dense, error) {
	batchSize := opts.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}

	var augs []Augmentation
	if opts.UseTTA {
		augs = TTAAugmentations()
	}

	preds := make([]*mat.Dense, 0, plan.NumTiles())
	for start := 0; start < plan.NumTiles(); start += batchSize {
		end := start + batchSize
		if end > plan.NumTiles() {
			end = plan.NumTiles()
		}

		batch := make([]*image.NRGBA, 0, end-start)
		for _, origin := range plan.Origins[start:end] {
			tile, err := src.Tile(origin, plan.TileSize)
			if err != nil {
				return nil, fmt.Errorf("failed to extract tile at (%d,%d): %w", origin.Row, origin.Col, err)
			}
			batch = append(batch, tile)
		}

		batchPreds, err := predictBatch(inf, batch, augs)
		if err != nil {
			return nil, err
		}
		preds = append(preds, batchPreds...)
	}

	return preds, nil
}

// predictBatch runs one batch through the model. With augmentations the
// batch is inferred once per transform and the inverse-transformed maps are
// averaged element-wise, the untransformed pass included.
func predictBatch(inf Inferencer, batch []*image.NRGBA, augs []Augmentation) ([]*mat.Dense, error) {
	if len(augs) == 0 {
		preds, err := inf.Infer(batch)
		if err != nil {
			return nil, fmt.Errorf("inference failed: %w", err)
		}
		if len(preds) != len(batch) {
			return nil, fmt.Errorf("inference returned %d predictions for %d tiles", len(preds), len(batch))
		}
		return preds, nil
	}

	var sums []*mat.Dense
	for _, aug := range augs {
		transformed := make([]*image.NRGBA, len(batch))
		for i, tile := range batch {
			transformed[i] = aug.Forward(tile)
		}

		preds, err := inf.Infer(transformed)
		if err != nil {
			return nil, fmt.Errorf("inference failed for %s pass: %w", aug.Name, err)
		}
		if len(preds) != len(batch) {
			return nil, fmt.Errorf("inference returned %d predictions for %d tiles in %s pass",
				len(preds), len(batch), aug.Name)
		}

		if sums == nil {
			sums = make([]*mat.Dense, len(batch))
		}
		for i, pred := range preds {
			restored := aug.Inverse(pred)
			if sums[i] == nil {
				rows, cols := restored.Dims()
				sums[i] = mat.NewDense(rows, cols, nil)
			}
			sums[i].Add(sums[i], restored)
		}
	}

	scale := 1.0 / float64(len(augs))
	for _, sum := range sums {
		sum.Scale(scale, sum)
	}
	return sums, nil
}
