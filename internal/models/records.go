package models

// TileRecord is one row of the tile metadata CSV. Tiles are named
// "<slide>_<index>", so the slide identifier doubles as the patient-level
// grouping key for cross-validation.
type TileRecord struct {
	// TileName is the full tile identifier, e.g. "2f6ecfcdf_12".
	TileName string

	// Slide is the whole-slide image the tile was cut from.
	Slide string

	// Fold is the cross-validation fold this tile's slide is assigned to.
	Fold int
}

// SlideInfo describes one whole-slide image at full resolution.
type SlideInfo struct {
	// ID is the slide identifier without file extension.
	ID string

	// WidthPixels and HeightPixels are the full-resolution dimensions.
	WidthPixels  int
	HeightPixels int
}

// ImageResult is the validation outcome for one slide within a fold.
type ImageResult struct {
	// Image is the slide identifier.
	Image string

	// Threshold is the binarization cutoff used for the final score,
	// either tuned on the downscaled mask or a configured global value.
	Threshold float64

	// Score is the Dice score against the full-resolution ground truth.
	Score float64
}

// FoldResult aggregates one fold of the cross-validation run.
type FoldResult struct {
	// Fold is the fold index.
	Fold int

	// FinalDice is the training history's final-epoch Dice score.
	FinalDice float64

	// Images holds the per-slide validation results.
	Images []ImageResult
}
