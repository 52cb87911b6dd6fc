package rle

import (
	"errors"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// TestDecodeZeroIndexed verifies the documented example: "0 3 10 2" on a
// (1,20) mask sets offsets 0,1,2,10,11 and nothing else.
func TestDecodeZeroIndexed(t *testing.T) {
	mask, err := Decode("0 3 10 2", 1, 20, ZeroIndexed)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	want := map[int]bool{0: true, 1: true, 2: true, 10: true, 11: true}
	for c := 0; c < 20; c++ {
		expected := 0.0
		if want[c] {
			expected = 1.0
		}
		if got := mask.At(0, c); got != expected {
			t.Errorf("offset %d: expected %v, got %v", c, expected, got)
		}
	}
}

// TestDecodeOneIndexed verifies the Kaggle convention shifts starts by one.
func TestDecodeOneIndexed(t *testing.T) {
	mask, err := Decode("1 3", 1, 10, OneIndexed)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	for c := 0; c < 10; c++ {
		expected := 0.0
		if c < 3 {
			expected = 1.0
		}
		if got := mask.At(0, c); got != expected {
			t.Errorf("offset %d: expected %v, got %v", c, expected, got)
		}
	}
}

// TestDecodeRowMajor verifies runs flatten across row boundaries.
func TestDecodeRowMajor(t *testing.T) {
	mask, err := Decode("3 4", 2, 5, ZeroIndexed)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	// Offsets 3,4 land on row 0; offsets 5,6 wrap to row 1.
	wantOnes := [][2]int{{0, 3}, {0, 4}, {1, 0}, {1, 1}}
	total := 0.0
	for r := 0; r < 2; r++ {
		for c := 0; c < 5; c++ {
			total += mask.At(r, c)
		}
	}
	if total != 4 {
		t.Fatalf("expected 4 foreground pixels, got %v", total)
	}
	for _, rc := range wantOnes {
		if mask.At(rc[0], rc[1]) != 1 {
			t.Errorf("expected foreground at (%d,%d)", rc[0], rc[1])
		}
	}
}

// TestDecodeEmpty verifies an empty encoding is an all-zero mask.
func TestDecodeEmpty(t *testing.T) {
	for _, encoding := range []string{"", "   "} {
		mask, err := Decode(encoding, 3, 3, ZeroIndexed)
		if err != nil {
			t.Fatalf("Decode(%q) failed: %v", encoding, err)
		}
		if sum := mat.Sum(mask); sum != 0 {
			t.Errorf("Decode(%q): expected empty mask, got sum %v", encoding, sum)
		}
	}
}

// TestRoundTrip verifies Decode(Encode(m)) reproduces the mask exactly,
// including the all-zero and all-one cases.
func TestRoundTrip(t *testing.T) {
	testCases := []struct {
		name string
		rows int
		cols int
		fill func(r, c int) float64
	}{
		{"all zero", 4, 6, func(r, c int) float64 { return 0 }},
		{"all one", 4, 6, func(r, c int) float64 { return 1 }},
		{"single pixel", 3, 3, func(r, c int) float64 {
			if r == 1 && c == 1 {
				return 1
			}
			return 0
		}},
		{"checkerboard", 5, 7, func(r, c int) float64 { return float64((r + c) % 2) }},
		{"trailing run", 2, 4, func(r, c int) float64 {
			if r == 1 && c >= 2 {
				return 1
			}
			return 0
		}},
	}

	for _, origin := range []IndexOrigin{ZeroIndexed, OneIndexed} {
		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				mask := mat.NewDense(tc.rows, tc.cols, nil)
				for r := 0; r < tc.rows; r++ {
					for c := 0; c < tc.cols; c++ {
						mask.Set(r, c, tc.fill(r, c))
					}
				}

				decoded, err := Decode(Encode(mask, origin), tc.rows, tc.cols, origin)
				if err != nil {
					t.Fatalf("round trip failed: %v", err)
				}
				if !mat.Equal(mask, decoded) {
					t.Errorf("round trip does not reproduce the mask")
				}
			})
		}
	}
}

// TestEncodeSliceView verifies encoding a slice view of a larger matrix:
// the view's stride is wider than its column count, so Encode must read
// through the matrix interface rather than the raw backing slice.
func TestEncodeSliceView(t *testing.T) {
	base := mat.NewDense(4, 8, nil)
	view := base.Slice(1, 3, 2, 6).(*mat.Dense)
	view.Set(0, 1, 1)
	view.Set(1, 0, 1)
	view.Set(1, 1, 1)

	got := Encode(view, ZeroIndexed)
	// Flattened over the 2x4 view: offset 1, then offsets 4-5.
	if want := "1 1 4 2"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}

	contiguous := mat.DenseCopyOf(view)
	if enc := Encode(contiguous, ZeroIndexed); enc != got {
		t.Errorf("view and contiguous copy disagree: %q vs %q", got, enc)
	}

	decoded, err := Decode(got, 2, 4, ZeroIndexed)
	if err != nil {
		t.Fatalf("round trip failed: %v", err)
	}
	if !mat.Equal(view, decoded) {
		t.Error("round trip does not reproduce the view")
	}
}

// TestDecodeMalformed verifies the rejection taxonomy.
func TestDecodeMalformed(t *testing.T) {
	testCases := []struct {
		name     string
		encoding string
	}{
		{"odd token count", "0 3 10"},
		{"negative length", "0 -2"},
		{"non-integer start", "a 3"},
		{"non-integer length", "0 b"},
		{"run past end", "18 5"},
		{"overlapping runs", "0 5 3 2"},
		{"out of order runs", "10 2 0 3"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.encoding, 1, 20, ZeroIndexed)
			if err == nil {
				t.Fatal("expected a malformed encoding error")
			}
			var malformed *MalformedEncodingError
			if !errors.As(err, &malformed) {
				t.Errorf("expected MalformedEncodingError, got %T: %v", err, err)
			}
		})
	}
}

// TestDecodeOneIndexedStartZero verifies that a start before the mask origin
// is rejected under the one-indexed convention.
func TestDecodeOneIndexedStartZero(t *testing.T) {
	_, err := Decode("0 3", 1, 10, OneIndexed)
	if err == nil {
		t.Fatal("expected a malformed encoding error for start 0 under one-indexing")
	}
}
