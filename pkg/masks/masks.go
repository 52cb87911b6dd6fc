// Package masks provides the dense mask operations shared by the prediction
// pipeline. Probability masks are gonum mat.Dense matrices with values in
// [0,1]; binary masks use the same representation restricted to {0,1}.
// Float64 is kept end to end so that repeated accumulation and resizing never
// quantizes probabilities the way an 8-bit image round trip would.
package masks

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ShapeMismatchError reports two masks whose dimensions disagree where the
// pipeline requires them to match.
type ShapeMismatchError struct {
	// Subject names the operation or image the mismatch belongs to.
	Subject string

	GotRows, GotCols   int
	WantRows, WantCols int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%s: mask shape %dx%d does not match expected %dx%d",
		e.Subject, e.GotRows, e.GotCols, e.WantRows, e.WantCols)
}

// CheckShape returns a ShapeMismatchError when m is not rows x cols.
func CheckShape(subject string, m *mat.Dense, rows, cols int) error {
	r, c := m.Dims()
	if r != rows || c != cols {
		return &ShapeMismatchError{
			Subject:  subject,
			GotRows:  r,
			GotCols:  c,
			WantRows: rows,
			WantCols: cols,
		}
	}
	return nil
}

// Binarize thresholds a probability mask into a fresh {0,1} mask. Pixels
// strictly above the threshold become foreground.
func Binarize(m *mat.Dense, threshold float64) *mat.Dense {
	rows, cols := m.Dims()
	out := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if m.At(r, c) > threshold {
				out.Set(r, c, 1)
			}
		}
	}
	return out
}

// FlipH mirrors a mask left to right into a fresh matrix.
func FlipH(m *mat.Dense) *mat.Dense {
	rows, cols := m.Dims()
	out := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out.Set(r, cols-1-c, m.At(r, c))
		}
	}
	return out
}

// FlipV mirrors a mask top to bottom into a fresh matrix.
func FlipV(m *mat.Dense) *mat.Dense {
	rows, cols := m.Dims()
	out := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out.Set(rows-1-r, c, m.At(r, c))
		}
	}
	return out
}

// DownscaleArea shrinks a mask by an integer factor using area-weighted
// interpolation: each output pixel is the mean of its source block. Output
// dimensions are floor(dim/factor), matching the reduce-factor convention
// used when slides are downscaled, so predictions and downscaled ground
// truth always agree in shape. Blocks clipped by the mask border average
// over the pixels they actually cover.
func DownscaleArea(m *mat.Dense, factor int) (*mat.Dense, error) {
	if factor <= 0 {
		return nil, fmt.Errorf("downscale factor %d must be positive", factor)
	}
	rows, cols := m.Dims()
	if factor == 1 {
		out := mat.NewDense(rows, cols, nil)
		out.Copy(m)
		return out, nil
	}

	outRows := rows / factor
	if outRows < 1 {
		outRows = 1
	}
	outCols := cols / factor
	if outCols < 1 {
		outCols = 1
	}
	out := mat.NewDense(outRows, outCols, nil)

	for or := 0; or < outRows; or++ {
		for oc := 0; oc < outCols; oc++ {
			r0 := or * factor
			c0 := oc * factor
			r1 := r0 + factor
			if r1 > rows {
				r1 = rows
			}
			c1 := c0 + factor
			if c1 > cols {
				c1 = cols
			}

			sum := 0.0
			for r := r0; r < r1; r++ {
				for c := c0; c < c1; c++ {
					sum += m.At(r, c)
				}
			}
			out.Set(or, oc, sum/float64((r1-r0)*(c1-c0)))
		}
	}

	return out, nil
}

// UpscaleNearest grows a mask to the target shape by nearest-neighbor
// sampling. Used to restore a downscaled prediction to ground-truth
// resolution before final scoring.
func UpscaleNearest(m *mat.Dense, rows, cols int) (*mat.Dense, error) {
	srcRows, srcCols := m.Dims()
	if rows < srcRows || cols < srcCols {
		return nil, &ShapeMismatchError{
			Subject:  "upscale target",
			GotRows:  srcRows,
			GotCols:  srcCols,
			WantRows: rows,
			WantCols: cols,
		}
	}

	out := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		sr := r * srcRows / rows
		for c := 0; c < cols; c++ {
			sc := c * srcCols / cols
			out.Set(r, c, m.At(sr, sc))
		}
	}
	return out, nil
}

// Sum returns the total of all mask values. For a binary mask this is the
// foreground pixel count.
func Sum(m *mat.Dense) float64 {
	rows, cols := m.Dims()
	total := 0.0
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			total += m.At(r, c)
		}
	}
	return total
}
