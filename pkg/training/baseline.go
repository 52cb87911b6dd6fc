package training

import (
	"fmt"

	"github.com/TianyiFranklinWang/HubMap/internal/models"
	"github.com/TianyiFranklinWang/HubMap/pkg/predict"
)

// BaselineTrainer satisfies the Trainer capability with the stain-density
// baseline instead of a fitted model. It performs no optimization and
// returns an empty history; it exists so the fold loop, reconstruction and
// scoring can be exercised end to end on a machine without an accelerator.
// Real training happens in the PyTorch companion, which exports weights
// artifacts consumed through WeightsLoader.
type BaselineTrainer struct{}

// Train implements Trainer.
func (BaselineTrainer) Train(fold int, train, val []models.TileRecord) (predict.Inferencer, History, error) {
	fmt.Printf("    -> %d training tiles\n", len(train))
	fmt.Printf("    -> %d validation tiles\n", len(val))
	fmt.Println("    -> stain-density baseline, no parameters to fit")
	return predict.NewStainDensity(), History{}, nil
}

// BaselineLoader satisfies WeightsLoader with the stain-density baseline.
// The baseline has no parameters, so the weights artifact path is ignored.
type BaselineLoader struct{}

// Load implements WeightsLoader.
func (BaselineLoader) Load(weightsPath string) (predict.Inferencer, error) {
	return predict.NewStainDensity(), nil
}
