// Package training drives the patient-grouped k-fold cross-validation loop.
// Model fitting itself is delegated to an external Trainer capability; this
// package owns fold sequencing, per-image validation (tiled prediction,
// reconstruction, threshold tuning, scoring) and score aggregation.
package training

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/TianyiFranklinWang/HubMap/internal/models"
	"github.com/TianyiFranklinWang/HubMap/pkg/config"
	"github.com/TianyiFranklinWang/HubMap/pkg/dataset"
	"github.com/TianyiFranklinWang/HubMap/pkg/masks"
	"github.com/TianyiFranklinWang/HubMap/pkg/metrics"
	"github.com/TianyiFranklinWang/HubMap/pkg/predict"
	"github.com/TianyiFranklinWang/HubMap/pkg/reconstruction"
	"github.com/TianyiFranklinWang/HubMap/pkg/rle"
	"github.com/TianyiFranklinWang/HubMap/pkg/visualization"
)

// History records the training collaborator's per-epoch validation Dice.
type History struct {
	EpochDice []float64
}

// FinalDice returns the last epoch's Dice score, the value that enters the
// cross-validation aggregate.
func (h History) FinalDice() float64 {
	if len(h.EpochDice) == 0 {
		return 0
	}
	return h.EpochDice[len(h.EpochDice)-1]
}

// Trainer is the external training capability. It fits a model on the
// training records of one fold and returns the fitted inference capability
// together with its training history.
type Trainer interface {
	Train(fold int, train, val []models.TileRecord) (predict.Inferencer, History, error)
}

// WeightsLoader builds an inference capability from a persisted weights
// artifact, for inference-only runs.
type WeightsLoader interface {
	Load(weightsPath string) (predict.Inferencer, error)
}

// WeightsPath returns the weights artifact location for one fold, keyed by
// decoder name, encoder name and fold index.
func WeightsPath(dir, decoder, encoder string, fold int) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s_%d.pt", decoder, encoder, fold))
}

// SlideOpener loads one whole-slide image, downscaled by reduceFactor.
type SlideOpener func(slide string, reduceFactor int) (*dataset.Slide, error)

// State identifies where the orchestrator is in its run.
type State int

const (
	StateNotStarted State = iota
	StateTrainingFold
	StateValidatingFold
	StateAggregating
	StateDone
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "NotStarted"
	case StateTrainingFold:
		return "TrainingFold"
	case StateValidatingFold:
		return "ValidatingFold"
	case StateAggregating:
		return "Aggregating"
	case StateDone:
		return "Done"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Summary is the cross-validation outcome.
type Summary struct {
	// MeanDice and StdDice aggregate the per-fold final scores.
	MeanDice float64
	StdDice  float64

	// Folds holds the per-fold results in run order.
	Folds []models.FoldResult
}

// KFold orchestrates the sequential fold loop. Folds run strictly one after
// another: each fold's model must release its accelerator memory before the
// next fold allocates, so there is no fold-level concurrency by contract.
// Any training or validation failure is fatal and halts the whole run; a
// partial cross-validation comparison is worthless, so nothing is skipped
// or retried.
type KFold struct {
	cfg       *config.Config
	records   []models.TileRecord
	rles      map[string]string
	slideInfo map[string]models.SlideInfo
	openSlide SlideOpener
	rleOrigin rle.IndexOrigin

	state State
}

// NewKFold builds an orchestrator over the full tile metadata. The rles map
// holds full-resolution ground-truth encodings; slideInfo the matching
// full-resolution dimensions.
func NewKFold(cfg *config.Config, records []models.TileRecord, rles map[string]string,
	slideInfo map[string]models.SlideInfo, openSlide SlideOpener, origin rle.IndexOrigin) *KFold {
	return &KFold{
		cfg:       cfg,
		records:   records,
		rles:      rles,
		slideInfo: slideInfo,
		openSlide: openSlide,
		rleOrigin: origin,
		state:     StateNotStarted,
	}
}

// State reports the orchestrator's current state.
func (k *KFold) State() State { return k.state }

// Run trains and validates every selected fold in ascending order and
// reports the aggregated cross-validation summary. When exactly one fold is
// selected the summary is returned directly after that fold completes.
func (k *KFold) Run(trainer Trainer) (*Summary, error) {
	return k.run(func(fold int, train, val []models.TileRecord) (predict.Inferencer, float64, error) {
		model, history, err := trainer.Train(fold, train, val)
		if err != nil {
			return nil, 0, fmt.Errorf("training failed for fold %d: %w", fold, err)
		}
		return model, history.FinalDice(), nil
	})
}

// RunInference validates every selected fold using persisted weights instead
// of training, mirroring Run in every other respect. The per-fold CV entry
// is the mean of the fold's per-image scores, since no training history
// exists.
func (k *KFold) RunInference(loader WeightsLoader, weightsDir string) (*Summary, error) {
	return k.run(func(fold int, train, val []models.TileRecord) (predict.Inferencer, float64, error) {
		path := WeightsPath(weightsDir, k.cfg.Model.Decoder, k.cfg.Model.Encoder, fold)
		model, err := loader.Load(path)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to load weights for fold %d from %s: %w", fold, path, err)
		}
		return model, -1, nil
	})
}

// run executes the fold state machine. acquire produces the fold's model and
// its CV score; a negative CV score means "use the fold's mean image score".
func (k *KFold) run(acquire func(fold int, train, val []models.TileRecord) (predict.Inferencer, float64, error)) (*Summary, error) {
	// The selection is a membership set: folds always run ascending,
	// whatever order the config or flags listed them in.
	selected := append([]int{}, k.cfg.CrossValidation.SelectedFolds...)
	sort.Ints(selected)
	uniq := selected[:0]
	for i, fold := range selected {
		if i == 0 || fold != selected[i-1] {
			uniq = append(uniq, fold)
		}
	}
	selected = uniq
	singleFold := len(selected) == 1

	cvs := []float64{}
	foldResults := []models.FoldResult{}

	for _, fold := range selected {
		fmt.Printf("\n-------------   Fold %d   -------------\n\n", fold)

		k.state = StateTrainingFold
		train, val := dataset.Split(k.records, fold)
		model, cvScore, err := acquire(fold, train, val)
		if err != nil {
			return nil, err
		}

		k.state = StateValidatingFold
		slides := dataset.ValidationSlides(val)
		imageResults, err := k.validateFold(fold, model, slides)
		if err != nil {
			return nil, err
		}

		// The fold's model must be gone before the next one trains,
		// or a multi-fold run degrades to an out-of-memory failure.
		if err := model.Release(); err != nil {
			return nil, fmt.Errorf("failed to release model for fold %d: %w", fold, err)
		}

		k.state = StateAggregating
		if cvScore < 0 {
			imgScores := make([]float64, 0, len(imageResults))
			for _, res := range imageResults {
				imgScores = append(imgScores, res.Score)
			}
			cvScore, _ = metrics.MeanStd(imgScores)
		}
		cvs = append(cvs, cvScore)
		foldResults = append(foldResults, models.FoldResult{
			Fold:      fold,
			FinalDice: cvScore,
			Images:    imageResults,
		})

		if singleFold {
			break
		}
	}

	k.state = StateDone
	mean, std := metrics.MeanStd(cvs)
	fmt.Printf("\n  -> Average Dice CV : %.4f  (std : %.4f)\n", mean, std)

	return &Summary{MeanDice: mean, StdDice: std, Folds: foldResults}, nil
}

// validateFold scores every validation slide of one fold.
func (k *KFold) validateFold(fold int, model predict.Inferencer, slides []string) ([]models.ImageResult, error) {
	fmt.Println("\n    -> Validating")

	results := make([]models.ImageResult, 0, len(slides))
	for _, slide := range slides {
		result, err := k.validateSlide(model, slide)
		if err != nil {
			return nil, fmt.Errorf("fold %d: %w", fold, err)
		}
		fmt.Printf(" - Scored %.4f for image %s with threshold %.2f\n",
			result.Score, result.Image, result.Threshold)
		results = append(results, result)
	}

	return results, nil
}

// validateSlide reconstructs one slide's probability mask, picks its
// threshold, and scores the binarized prediction against the
// full-resolution ground truth.
func (k *KFold) validateSlide(model predict.Inferencer, slide string) (models.ImageResult, error) {
	var zero models.ImageResult

	info, ok := k.slideInfo[slide]
	if !ok {
		return zero, fmt.Errorf("image %s: no slide dimensions on record", slide)
	}
	encoding, ok := k.rles[slide]
	if !ok {
		return zero, fmt.Errorf("image %s: no ground-truth encoding on record", slide)
	}

	truth, err := rle.Decode(encoding, info.HeightPixels, info.WidthPixels, k.rleOrigin)
	if err != nil {
		return zero, fmt.Errorf("image %s: %w", slide, err)
	}

	reduceFactor := k.cfg.Tiling.ReduceFactor
	if k.cfg.Inference.UseFullSize {
		reduceFactor = 1
	}

	src, err := k.openSlide(slide, reduceFactor)
	if err != nil {
		return zero, fmt.Errorf("image %s: %w", slide, err)
	}

	pred, err := reconstruction.PredictEntireMask(src, model, reconstruction.Options{
		TileSize:      k.cfg.Tiling.TileSize,
		OverlapFactor: k.cfg.Tiling.OverlapFactor,
		BatchSize:     k.cfg.Inference.BatchSize,
		UseTTA:        k.cfg.Inference.UseTTA,
	})
	if err != nil {
		return zero, fmt.Errorf("image %s: %w", slide, err)
	}

	// Threshold selection runs at the prediction's own resolution, so the
	// ground truth is brought down to match when the slide was reduced.
	tuneTruth := truth
	if reduceFactor > 1 {
		predRows, predCols := pred.Dims()
		down, err := masks.DownscaleArea(truth, reduceFactor)
		if err != nil {
			return zero, fmt.Errorf("image %s: %w", slide, err)
		}
		downRows, downCols := down.Dims()
		if downRows != predRows || downCols != predCols {
			return zero, &masks.ShapeMismatchError{
				Subject:  fmt.Sprintf("image %s downscaled truth", slide),
				GotRows:  downRows,
				GotCols:  downCols,
				WantRows: predRows,
				WantCols: predCols,
			}
		}
		tuneTruth = masks.Binarize(down, 0.5)
	}

	threshold := 0.0
	if k.cfg.Inference.GlobalThreshold != nil {
		threshold = *k.cfg.Inference.GlobalThreshold
	} else {
		threshold, _, err = metrics.TweakThreshold(tuneTruth, pred, k.cfg.ThresholdGrid())
		if err != nil {
			return zero, fmt.Errorf("image %s: %w", slide, err)
		}
	}

	if logDir := k.cfg.Paths.LogDir; logDir != "" {
		if err := masks.Save(filepath.Join(logDir, fmt.Sprintf("global_pred_%s.bin", slide)), pred); err != nil {
			return zero, fmt.Errorf("image %s: %w", slide, err)
		}
		if err := visualization.SaveHeatmap(filepath.Join(logDir, fmt.Sprintf("global_pred_%s.png", slide)), pred); err != nil {
			return zero, fmt.Errorf("image %s: %w", slide, err)
		}
	}

	binary := masks.Binarize(pred, threshold)
	if reduceFactor > 1 {
		binary, err = masks.UpscaleNearest(binary, info.HeightPixels, info.WidthPixels)
		if err != nil {
			return zero, fmt.Errorf("image %s: %w", slide, err)
		}
	}

	score, err := metrics.Dice(binary, truth)
	if err != nil {
		return zero, fmt.Errorf("image %s: %w", slide, err)
	}

	return models.ImageResult{Image: slide, Threshold: threshold, Score: score}, nil
}
