// Package stitch composes a project's rectangle into a single canonical
// image from cached tiles, following the bounds-checked paste loop of the
// teacher's internal/composite package, generalized from alpha-blended
// NRGBA layers to direct palette-index copies.
package stitch

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/wplace-monitor/wplace-monitor/internal/geometry"
	"github.com/wplace-monitor/wplace-monitor/internal/palette"
)

// Stitcher composes rectangles out of a tile cache directory.
type Stitcher struct {
	cacheDir string
}

// New returns a Stitcher reading tiles from cacheDir.
func New(cacheDir string) *Stitcher {
	return &Stitcher{cacheDir: cacheDir}
}

// Result is the outcome of stitching a rectangle.
type Result struct {
	// Image is the composed canonical image, sized exactly rect.Size().
	Image *image.Paletted
	// MissingTiles lists tiles that were not present in the cache; their
	// area in Image is left fully transparent (§4.5).
	MissingTiles []geometry.Tile
}

// Stitch composes rect from the cache, leaving any missing tile's area
// transparent and reporting which tiles were missing.
func (s *Stitcher) Stitch(rect geometry.Rectangle) (Result, error) {
	size := rect.Size()
	out := palette.New(size.W, size.H)

	var missing []geometry.Tile
	for _, tile := range rect.Tiles() {
		path := s.tilePath(tile)
		tileImg, err := palette.OpenFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				missing = append(missing, tile)
				continue
			}
			return Result{}, fmt.Errorf("stitch: read tile %s: %w", tile, err)
		}

		offset := tile.Origin().Sub(rect.Point())
		palette.Paste(out, tileImg, offset.X, offset.Y)
	}

	return Result{Image: out, MissingTiles: missing}, nil
}

func (s *Stitcher) tilePath(t geometry.Tile) string {
	return filepath.Join(s.cacheDir, fmt.Sprintf("tile-%s.png", t.String()))
}
