// Package tiling computes the tile grid used to run inference over images
// that are far larger than the network input. Tiles are spaced by a stride
// derived from the overlap factor, and the last tile along each axis is
// shifted inward so its far edge lands exactly on the image border. The grid
// therefore covers every pixel at least once with no out-of-bounds reads.
package tiling

import "fmt"

// ConfigurationError reports tiling parameters that cannot produce a valid
// cover of the image.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid tiling configuration: %s", e.Reason)
}

// Origin is the top-left corner of one tile, in pixels of the tiled image.
type Origin struct {
	Row int
	Col int
}

// Plan is the ordered tile grid for one image. The origins slice is
// materialized once, so a plan can be iterated any number of times.
type Plan struct {
	// Height and Width are the dimensions of the image being tiled,
	// after any reduce factor has been applied by the caller.
	Height int
	Width  int

	// TileSize is the side length of every tile.
	TileSize int

	// Stride is the spacing between consecutive tile origins along each
	// axis, floor(TileSize * (1 - overlap)).
	Stride int

	// Origins lists every tile origin in row-major order.
	Origins []Origin
}

// NewPlan computes the tile grid for an image of the given dimensions.
// overlapFactor must satisfy 0 <= overlapFactor < 1. If tileSize meets or
// exceeds a dimension, a single tile at origin 0 covers that axis.
func NewPlan(height, width, tileSize int, overlapFactor float64) (*Plan, error) {
	if tileSize <= 0 {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("tile size %d must be positive", tileSize)}
	}
	if overlapFactor < 0 {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("overlap factor %.3f must not be negative", overlapFactor)}
	}
	if overlapFactor >= 1 {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("overlap factor %.3f must be below 1", overlapFactor)}
	}
	if height <= 0 || width <= 0 {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("image dimensions %dx%d must be positive", height, width)}
	}

	stride := int(float64(tileSize) * (1 - overlapFactor))
	if stride < 1 {
		stride = 1
	}

	rows := axisOffsets(height, tileSize, stride)
	cols := axisOffsets(width, tileSize, stride)

	origins := make([]Origin, 0, len(rows)*len(cols))
	for _, r := range rows {
		for _, c := range cols {
			origins = append(origins, Origin{Row: r, Col: c})
		}
	}

	return &Plan{
		Height:   height,
		Width:    width,
		TileSize: tileSize,
		Stride:   stride,
		Origins:  origins,
	}, nil
}

// NumTiles returns the number of tiles in the plan.
func (p *Plan) NumTiles() int {
	return len(p.Origins)
}

// axisOffsets returns the tile offsets along one axis. Offsets advance by
// stride; the final offset is clamped to dim-tileSize so the last tile ends
// on the image border instead of being padded past it.
func axisOffsets(dim, tileSize, stride int) []int {
	if tileSize >= dim {
		return []int{0}
	}

	last := dim - tileSize
	offsets := []int{}
	for off := 0; off < last; off += stride {
		offsets = append(offsets, off)
	}
	offsets = append(offsets, last)
	return offsets
}
