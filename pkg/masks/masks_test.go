package masks

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// TestBinarize verifies strict-greater thresholding into {0,1}.
func TestBinarize(t *testing.T) {
	m := mat.NewDense(1, 4, []float64{0.2, 0.5, 0.7, 1.0})
	out := Binarize(m, 0.5)

	want := []float64{0, 0, 1, 1}
	for c, expected := range want {
		if got := out.At(0, c); got != expected {
			t.Errorf("column %d: expected %v, got %v", c, expected, got)
		}
	}
}

// TestFlips verifies mirror semantics and that each flip is an involution.
func TestFlips(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{
		1, 2, 3,
		4, 5, 6,
	})

	h := FlipH(m)
	if h.At(0, 0) != 3 || h.At(0, 2) != 1 || h.At(1, 1) != 5 {
		t.Errorf("FlipH produced unexpected values: %v", mat.Formatted(h))
	}
	if !mat.Equal(FlipH(h), m) {
		t.Error("FlipH is not an involution")
	}

	v := FlipV(m)
	if v.At(0, 0) != 4 || v.At(1, 0) != 1 || v.At(0, 2) != 6 {
		t.Errorf("FlipV produced unexpected values: %v", mat.Formatted(v))
	}
	if !mat.Equal(FlipV(v), m) {
		t.Error("FlipV is not an involution")
	}
}

// TestDownscaleArea verifies exact block averaging for a divisible shape.
func TestDownscaleArea(t *testing.T) {
	m := mat.NewDense(4, 4, []float64{
		1, 1, 0, 0,
		1, 1, 0, 0,
		0, 0, 0.5, 0.5,
		0, 0, 0.5, 0.5,
	})

	out, err := DownscaleArea(m, 2)
	if err != nil {
		t.Fatalf("DownscaleArea failed: %v", err)
	}

	rows, cols := out.Dims()
	if rows != 2 || cols != 2 {
		t.Fatalf("expected 2x2 output, got %dx%d", rows, cols)
	}
	want := [][]float64{{1, 0}, {0, 0.5}}
	for r := 0; r < 2; r++ {
		for c := 0; c < 2; c++ {
			if !almostEqual(out.At(r, c), want[r][c]) {
				t.Errorf("(%d,%d): expected %v, got %v", r, c, want[r][c], out.At(r, c))
			}
		}
	}
}

// TestDownscaleAreaFloorDims verifies floor(dim/factor) output dimensions,
// matching the reduce-factor convention of slide loading.
func TestDownscaleAreaFloorDims(t *testing.T) {
	m := mat.NewDense(5, 9, nil)
	out, err := DownscaleArea(m, 2)
	if err != nil {
		t.Fatalf("DownscaleArea failed: %v", err)
	}
	rows, cols := out.Dims()
	if rows != 2 || cols != 4 {
		t.Errorf("expected 2x4 output, got %dx%d", rows, cols)
	}
}

// TestDownscaleAreaIdentity verifies factor 1 copies the input.
func TestDownscaleAreaIdentity(t *testing.T) {
	m := mat.NewDense(3, 3, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9})
	out, err := DownscaleArea(m, 1)
	if err != nil {
		t.Fatalf("DownscaleArea failed: %v", err)
	}
	if !mat.Equal(m, out) {
		t.Error("factor 1 should copy the input unchanged")
	}
	out.Set(0, 0, 99)
	if m.At(0, 0) == 99 {
		t.Error("factor 1 output aliases the input")
	}
}

// TestUpscaleNearest verifies integer upscaling replicates source pixels.
func TestUpscaleNearest(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	out, err := UpscaleNearest(m, 4, 4)
	if err != nil {
		t.Fatalf("UpscaleNearest failed: %v", err)
	}

	want := mat.NewDense(4, 4, []float64{
		1, 1, 2, 2,
		1, 1, 2, 2,
		3, 3, 4, 4,
		3, 3, 4, 4,
	})
	if !mat.Equal(out, want) {
		t.Errorf("unexpected upscale result:\n%v", mat.Formatted(out))
	}

	if _, err := UpscaleNearest(m, 1, 4); err == nil {
		t.Error("expected an error when the target is smaller than the source")
	}
}

// TestCheckShape verifies the mismatch error carries both shapes.
func TestCheckShape(t *testing.T) {
	m := mat.NewDense(3, 4, nil)
	if err := CheckShape("test subject", m, 3, 4); err != nil {
		t.Errorf("matching shape should pass, got %v", err)
	}

	err := CheckShape("test subject", m, 5, 6)
	if err == nil {
		t.Fatal("expected a shape mismatch error")
	}
	var mismatch *ShapeMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected ShapeMismatchError, got %T", err)
	}
	if mismatch.GotRows != 3 || mismatch.GotCols != 4 || mismatch.WantRows != 5 || mismatch.WantCols != 6 {
		t.Errorf("mismatch fields wrong: %+v", mismatch)
	}
}

// TestSum verifies foreground counting.
func TestSum(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{1, 0, 1, 1})
	if got := Sum(m); got != 3 {
		t.Errorf("expected sum 3, got %v", got)
	}
}

// TestArtifactRoundTrip verifies the binary mask artifact survives a
// save/load cycle bit-exactly.
func TestArtifactRoundTrip(t *testing.T) {
	m := mat.NewDense(3, 5, nil)
	for r := 0; r < 3; r++ {
		for c := 0; c < 5; c++ {
			m.Set(r, c, float64(r*5+c)/14.0)
		}
	}

	path := filepath.Join(t.TempDir(), "artifacts", "pred.bin")
	if err := Save(path, m); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !mat.Equal(m, loaded) {
		t.Error("loaded artifact differs from the saved mask")
	}
}

// TestArtifactLoadMissing verifies a clear error for a missing artifact.
func TestArtifactLoadMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.bin")); err == nil {
		t.Error("expected an error for a missing artifact file")
	}
}
