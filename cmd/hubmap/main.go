package main

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/TianyiFranklinWang/HubMap/pkg/config"
	"github.com/TianyiFranklinWang/HubMap/pkg/dataset"
	"github.com/TianyiFranklinWang/HubMap/pkg/rle"
	"github.com/TianyiFranklinWang/HubMap/pkg/training"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the YAML configuration file")
	mode := flag.String("mode", "train", "Pipeline mode: train or infer")
	foldsFlag := flag.String("folds", "", "Comma-separated fold indices, overriding the config selection")
	tta := flag.Bool("tta", false, "Enable test-time augmentation")
	fullSize := flag.Bool("full-size", false, "Score on full-resolution masks instead of the downscaled path")
	threshold := flag.Float64("threshold", -1, "Global binarization threshold, overriding per-image tuning (-1 tunes per image)")
	logDir := flag.String("logs", "", "Log folder for weights, prediction artifacts and previews (overrides config)")
	backend := flag.String("backend", "baseline", "Inference backend (baseline is the only built-in)")
	rleOriginFlag := flag.Int("rle-origin", 1, "Index origin of the ground-truth run-length encodings (0 or 1)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Flag overrides on top of the YAML surface.
	if *foldsFlag != "" {
		folds, err := parseFolds(*foldsFlag)
		if err != nil {
			log.Fatalf("Invalid -folds value: %v", err)
		}
		cfg.CrossValidation.SelectedFolds = folds
	}
	if *tta {
		cfg.Inference.UseTTA = true
	}
	if *fullSize {
		cfg.Inference.UseFullSize = true
	}
	if *threshold >= 0 {
		t := *threshold
		cfg.Inference.GlobalThreshold = &t
	}
	if *logDir != "" {
		cfg.Paths.LogDir = *logDir
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if *backend != "baseline" {
		log.Fatalf("Unknown inference backend %q", *backend)
	}

	var origin rle.IndexOrigin
	switch *rleOriginFlag {
	case 0:
		origin = rle.ZeroIndexed
	case 1:
		origin = rle.OneIndexed
	default:
		log.Fatalf("Invalid -rle-origin value %d (must be 0 or 1)", *rleOriginFlag)
	}

	fmt.Println("================================")
	fmt.Println("HUBMAP KIDNEY SEGMENTATION PIPELINE")
	fmt.Printf("Model: %s / %s\n", cfg.Model.Decoder, cfg.Model.Encoder)
	fmt.Printf("Tiling: size %d, overlap %.2f, reduce %d\n",
		cfg.Tiling.TileSize, cfg.Tiling.OverlapFactor, cfg.Tiling.ReduceFactor)
	fmt.Println("================================")

	records, err := dataset.LoadTileRecords(
		filepath.Join(cfg.Paths.DataDir, "tiles.csv"), cfg.CrossValidation.FoldColumn)
	if err != nil {
		log.Fatalf("Failed to load tile metadata: %v", err)
	}
	available := map[int]bool{}
	for _, fold := range dataset.Folds(records) {
		available[fold] = true
	}
	for _, fold := range cfg.CrossValidation.SelectedFolds {
		if !available[fold] {
			log.Fatalf("Selected fold %d is not present in the tile metadata (available: %v)",
				fold, dataset.Folds(records))
		}
	}

	slideInfo, err := dataset.LoadSlideInfo(
		filepath.Join(cfg.Paths.DataDir, "HuBMAP-20-dataset_information.csv"))
	if err != nil {
		log.Fatalf("Failed to load slide information: %v", err)
	}
	rles, err := dataset.LoadRLEs(filepath.Join(cfg.Paths.DataDir, "train.csv"))
	if err != nil {
		log.Fatalf("Failed to load ground-truth encodings: %v", err)
	}

	openSlide := func(slide string, reduceFactor int) (*dataset.Slide, error) {
		return dataset.OpenSlide(
			filepath.Join(cfg.Paths.SlideDir, slide+".tiff"), slide, reduceFactor)
	}

	kfold := training.NewKFold(cfg, records, rles, slideInfo, openSlide, origin)

	startTime := time.Now()
	var summary *training.Summary
	switch *mode {
	case "train":
		summary, err = kfold.Run(training.BaselineTrainer{})
	case "infer":
		summary, err = kfold.RunInference(training.BaselineLoader{}, cfg.Paths.LogDir)
	default:
		log.Fatalf("Unknown mode %q (must be train or infer)", *mode)
	}
	if err != nil {
		log.Fatalf("Cross-validation run failed: %v", err)
	}

	fmt.Printf("\nRun completed in %.2f seconds\n", time.Since(startTime).Seconds())
	fmt.Printf("Cross-validation Dice: %.4f (std %.4f) over %d fold(s)\n",
		summary.MeanDice, summary.StdDice, len(summary.Folds))
	for _, fold := range summary.Folds {
		fmt.Printf("  fold %d: %.4f over %d image(s)\n",
			fold.Fold, fold.FinalDice, len(fold.Images))
	}
}

// parseFolds parses a comma-separated fold selection like "0,2,3".
func parseFolds(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	folds := make([]int, 0, len(parts))
	for _, part := range parts {
		fold, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("fold index %q is not an integer", part)
		}
		folds = append(folds, fold)
	}
	return folds, nil
}
