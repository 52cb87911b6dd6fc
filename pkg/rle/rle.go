// Package rle implements the run-length encoding used by the HuBMAP ground
// truth CSVs. A binary mask is serialized as space-separated integers forming
// alternating (start, length) pairs over the row-major flattened mask.
package rle

import (
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// IndexOrigin selects the offset convention of the encoding. The dataset
// convention must be preserved exactly for decode to match the source masks.
type IndexOrigin int

const (
	// ZeroIndexed starts are direct offsets into the flattened mask.
	ZeroIndexed IndexOrigin = 0

	// OneIndexed starts follow the Kaggle convention where the first pixel
	// of the mask is position 1.
	OneIndexed IndexOrigin = 1
)

// MalformedEncodingError reports a run-length string that cannot decode into
// a mask of the declared shape.
type MalformedEncodingError struct {
	// Reason describes what made the encoding invalid.
	Reason string

	// Token is the offending token, if the failure is tied to one.
	Token string
}

func (e *MalformedEncodingError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("malformed run-length encoding: %s (token %q)", e.Reason, e.Token)
	}
	return fmt.Sprintf("malformed run-length encoding: %s", e.Reason)
}

// Decode expands an encoding into a binary mask of shape (height, width).
// Runs must be sorted by start, non-overlapping, and lie within the mask.
// An empty or all-whitespace encoding decodes to an all-zero mask.
func Decode(encoding string, height, width int, origin IndexOrigin) (*mat.Dense, error) {
	if height <= 0 || width <= 0 {
		return nil, &MalformedEncodingError{Reason: fmt.Sprintf("invalid mask shape %dx%d", height, width)}
	}

	mask := mat.NewDense(height, width, nil)
	fields := strings.Fields(encoding)
	if len(fields) == 0 {
		return mask, nil
	}
	if len(fields)%2 != 0 {
		return nil, &MalformedEncodingError{Reason: fmt.Sprintf("odd token count %d", len(fields))}
	}

	data := mask.RawMatrix().Data
	size := height * width
	prevEnd := -1

	for i := 0; i < len(fields); i += 2 {
		start, err := strconv.Atoi(fields[i])
		if err != nil {
			return nil, &MalformedEncodingError{Reason: "non-integer start", Token: fields[i]}
		}
		length, err := strconv.Atoi(fields[i+1])
		if err != nil {
			return nil, &MalformedEncodingError{Reason: "non-integer length", Token: fields[i+1]}
		}
		if length < 0 {
			return nil, &MalformedEncodingError{Reason: "negative run length", Token: fields[i+1]}
		}

		start -= int(origin)
		if start < 0 {
			return nil, &MalformedEncodingError{Reason: "run start before mask origin", Token: fields[i]}
		}
		if start <= prevEnd {
			return nil, &MalformedEncodingError{Reason: "runs out of order or overlapping", Token: fields[i]}
		}
		if start+length > size {
			return nil, &MalformedEncodingError{
				Reason: fmt.Sprintf("run exceeds mask of %d pixels", size),
				Token:  fields[i],
			}
		}

		for p := start; p < start+length; p++ {
			data[p] = 1
		}
		prevEnd = start + length - 1
	}

	return mask, nil
}

// Encode serializes a binary mask into a run-length string. Any value above
// 0.5 is treated as foreground, so thresholded probability masks encode
// directly. Encode is the exact inverse of Decode under the same origin.
// The mask is read through At, so slice views with a wider stride encode
// correctly.
func Encode(mask *mat.Dense, origin IndexOrigin) string {
	rows, cols := mask.Dims()
	size := rows * cols
	var sb strings.Builder

	runStart := -1
	for p := 0; p <= size; p++ {
		fg := p < size && mask.At(p/cols, p%cols) > 0.5
		switch {
		case fg && runStart < 0:
			runStart = p
		case !fg && runStart >= 0:
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%d %d", runStart+int(origin), p-runStart)
			runStart = -1
		}
	}

	return sb.String()
}
