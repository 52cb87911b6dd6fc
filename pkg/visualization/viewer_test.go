package visualization

import (
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// TestHeatmapDims verifies the rendered image matches the mask shape with
// (cols, rows) pixel ordering.
func TestHeatmapDims(t *testing.T) {
	m := mat.NewDense(10, 20, nil)
	img := Heatmap(m)
	bounds := img.Bounds()
	if bounds.Dx() != 20 || bounds.Dy() != 10 {
		t.Errorf("expected a 20x10 image, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

// TestHeatmapExtremes verifies cold and hot endpoints render as the ramp
// endpoint colors and out-of-range values clamp to them.
func TestHeatmapExtremes(t *testing.T) {
	m := mat.NewDense(1, 4, []float64{0, 1, -0.5, 1.5})
	img := Heatmap(m)

	cold := img.NRGBAAt(0, 0)
	hot := img.NRGBAAt(1, 0)
	if cold == hot {
		t.Error("cold and hot endpoints should differ")
	}
	if img.NRGBAAt(2, 0) != cold {
		t.Error("values below 0 should clamp to the cold color")
	}
	if img.NRGBAAt(3, 0) != hot {
		t.Error("values above 1 should clamp to the hot color")
	}
}

// TestSaveHeatmap verifies the preview lands on disk, creating directories
// as needed.
func TestSaveHeatmap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "preview.png")
	if err := SaveHeatmap(path, mat.NewDense(4, 4, nil)); err != nil {
		t.Fatalf("SaveHeatmap failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected preview file: %v", err)
	}
}

// TestSaveThresholdPreview verifies the binarized preview writes.
func TestSaveThresholdPreview(t *testing.T) {
	m := mat.NewDense(4, 4, nil)
	m.Set(1, 1, 0.9)
	m.Set(2, 2, 0.3)

	path := filepath.Join(t.TempDir(), "binary.png")
	if err := SaveThresholdPreview(path, m, 0.5); err != nil {
		t.Fatalf("SaveThresholdPreview failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected preview file: %v", err)
	}
}

// TestScoreStrip verifies bar layout and input validation.
func TestScoreStrip(t *testing.T) {
	img, err := ScoreStrip([]float64{0.3, 0.4, 0.5}, []float64{0.1, 0.9, 0.5}, 8, 32)
	if err != nil {
		t.Fatalf("ScoreStrip failed: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != 24 || bounds.Dy() != 32 {
		t.Errorf("expected a 24x32 strip, got %dx%d", bounds.Dx(), bounds.Dy())
	}

	if _, err := ScoreStrip([]float64{0.3}, []float64{0.1, 0.9}, 8, 32); err == nil {
		t.Error("expected an error for mismatched lengths")
	}
	if _, err := ScoreStrip(nil, nil, 8, 32); err == nil {
		t.Error("expected an error for empty inputs")
	}
}

// TestSaveScoreStrip verifies the strip writes to disk.
func TestSaveScoreStrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strip.png")
	if err := SaveScoreStrip(path, []float64{0.35, 0.40}, []float64{0.8, 0.95}); err != nil {
		t.Fatalf("SaveScoreStrip failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected strip file: %v", err)
	}
}
