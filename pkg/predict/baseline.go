package predict

import (
	"image"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/mat"
)

// StainDensity is a CPU-only reference backend: it maps each pixel to a
// foreground probability from its stain saturation and darkness, with no
// learned parameters. Stained glomerular tissue in H&E slides is saturated
// and dark against the pale background, so this gives the pipeline a
// meaningful signal to reconstruct, threshold and score without an
// accelerator. It exists for end-to-end shakeout and smoke runs; trained
// models replace it through the same Inferencer interface.
type StainDensity struct{}

// NewStainDensity returns the stain-density baseline.
func NewStainDensity() *StainDensity { return &StainDensity{} }

// Infer implements Inferencer. Each tile maps to a probability matrix of
// the tile's spatial shape, slot order preserved.
func (s *StainDensity) Infer(batch []*image.NRGBA) ([]*mat.Dense, error) {
	preds := make([]*mat.Dense, len(batch))
	for i, tile := range batch {
		bounds := tile.Bounds()
		rows, cols := bounds.Dy(), bounds.Dx()
		pred := mat.NewDense(rows, cols, nil)

		for y := 0; y < rows; y++ {
			for x := 0; x < cols; x++ {
				c, ok := colorful.MakeColor(tile.NRGBAAt(bounds.Min.X+x, bounds.Min.Y+y))
				if !ok {
					// Fully transparent pixel, nothing stained here.
					continue
				}
				_, sat, light := c.Hsl()
				p := sat * (1 - light)
				if p < 0 {
					p = 0
				} else if p > 1 {
					p = 1
				}
				pred.Set(y, x, p)
			}
		}
		preds[i] = pred
	}
	return preds, nil
}

// Release implements Inferencer. The baseline holds no accelerator memory.
func (s *StainDensity) Release() error { return nil }
