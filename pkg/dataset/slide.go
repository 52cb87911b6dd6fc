package dataset

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/TianyiFranklinWang/HubMap/pkg/tiling"
)

// Slide is one whole-slide image held in memory, optionally downscaled by
// an integer reduce factor at load time. It implements the tile source used
// by the prediction pipeline.
type Slide struct {
	id  string
	img *image.NRGBA
}

// OpenSlide loads a slide image from disk. A reduceFactor above 1 downscales
// both dimensions by that divisor using a box filter, which averages the
// covered source area per output pixel.
func OpenSlide(path, id string, reduceFactor int) (*Slide, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open slide %s: %w", id, err)
	}

	nrgba := imaging.Clone(img)
	if reduceFactor > 1 {
		bounds := nrgba.Bounds()
		nrgba = imaging.Resize(nrgba, bounds.Dx()/reduceFactor, bounds.Dy()/reduceFactor, imaging.Box)
	}

	return &Slide{id: id, img: nrgba}, nil
}

// NewSlideFromImage wraps an already-decoded image as a slide. Used by tests
// and by callers that produce tiles synthetically.
func NewSlideFromImage(id string, img image.Image) *Slide {
	return &Slide{id: id, img: imaging.Clone(img)}
}

// ID returns the slide identifier.
func (s *Slide) ID() string { return s.id }

// Bounds returns the slide dimensions as (height, width).
func (s *Slide) Bounds() (int, int) {
	b := s.img.Bounds()
	return b.Dy(), b.Dx()
}

// Tile crops the size x size region at the given origin. The tile planner
// guarantees origins lie fully inside the slide, so a short crop means the
// caller's plan disagrees with the slide dimensions.
func (s *Slide) Tile(origin tiling.Origin, size int) (*image.NRGBA, error) {
	height, width := s.Bounds()
	if origin.Row < 0 || origin.Col < 0 || origin.Row+size > height || origin.Col+size > width {
		return nil, fmt.Errorf("slide %s: tile at (%d,%d) size %d exceeds slide bounds %dx%d",
			s.id, origin.Row, origin.Col, size, height, width)
	}

	rect := image.Rect(origin.Col, origin.Row, origin.Col+size, origin.Row+size)
	return imaging.Crop(s.img, rect), nil
}
