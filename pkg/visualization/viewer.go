// Package visualization renders diagnostic previews of probability masks:
// heatmaps, thresholded binary previews, and threshold/score strips. The
// previews are for inspection only; nothing in the scoring path reads them.
package visualization

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/anthonynsimon/bild/segment"
	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/mat"
)

var (
	coldColor = colorful.Color{R: 0.10, G: 0.15, B: 0.55}
	hotColor  = colorful.Color{R: 0.90, G: 0.15, B: 0.10}
)

// Heatmap renders a probability mask as a cold-to-hot color image. Values
// are clamped to [0,1] before blending.
func Heatmap(m *mat.Dense) *image.NRGBA {
	rows, cols := m.Dims()
	img := image.NewNRGBA(image.Rect(0, 0, cols, rows))

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := m.At(r, c)
			if v < 0 {
				v = 0
			} else if v > 1 {
				v = 1
			}
			img.Set(c, r, coldColor.BlendLuv(hotColor, v).Clamped())
		}
	}

	return img
}

// SaveHeatmap writes the heatmap preview of a mask as PNG.
func SaveHeatmap(path string, m *mat.Dense) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create preview directory: %w", err)
	}
	if err := imaging.Save(Heatmap(m), path); err != nil {
		return fmt.Errorf("failed to save heatmap preview: %w", err)
	}
	return nil
}

// SaveThresholdPreview writes the binarized view of a probability mask at
// the given cutoff: the mask is rendered as grayscale and segmented at the
// matching 8-bit level.
func SaveThresholdPreview(path string, m *mat.Dense, threshold float64) error {
	rows, cols := m.Dims()
	gray := image.NewGray(image.Rect(0, 0, cols, rows))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := m.At(r, c)
			if v < 0 {
				v = 0
			} else if v > 1 {
				v = 1
			}
			gray.Pix[r*gray.Stride+c] = uint8(v * 255)
		}
	}

	level := uint8(threshold * 255)
	binary := segment.Threshold(gray, level)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create preview directory: %w", err)
	}
	if err := imaging.Save(binary, path); err != nil {
		return fmt.Errorf("failed to save threshold preview: %w", err)
	}
	return nil
}

// ScoreStrip renders one vertical bar per threshold candidate, colored by
// its Dice score, as a compact stand-in for a threshold/score plot.
func ScoreStrip(thresholds, scores []float64, barWidth, height int) (*image.NRGBA, error) {
	if len(thresholds) != len(scores) {
		return nil, fmt.Errorf("got %d thresholds but %d scores", len(thresholds), len(scores))
	}
	if len(thresholds) == 0 {
		return nil, fmt.Errorf("no threshold candidates to render")
	}
	if barWidth < 1 {
		barWidth = 8
	}
	if height < 1 {
		height = 32
	}

	img := image.NewNRGBA(image.Rect(0, 0, barWidth*len(thresholds), height))
	for i, score := range scores {
		if score < 0 {
			score = 0
		} else if score > 1 {
			score = 1
		}
		col := coldColor.BlendLuv(hotColor, score).Clamped()
		for x := i * barWidth; x < (i+1)*barWidth; x++ {
			for y := 0; y < height; y++ {
				img.Set(x, y, col)
			}
		}
	}

	return img, nil
}

// SaveScoreStrip writes the threshold/score strip as PNG.
func SaveScoreStrip(path string, thresholds, scores []float64) error {
	img, err := ScoreStrip(thresholds, scores, 8, 32)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create preview directory: %w", err)
	}
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save score strip: %w", err)
	}
	return nil
}
