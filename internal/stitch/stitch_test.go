package stitch

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wplace-monitor/wplace-monitor/internal/geometry"
	"github.com/wplace-monitor/wplace-monitor/internal/palette"
)

func writeTile(t *testing.T, dir string, tile geometry.Tile, index uint8) {
	t.Helper()
	img := palette.New(geometry.TileSize, geometry.TileSize)
	for y := 0; y < geometry.TileSize; y++ {
		for x := 0; x < geometry.TileSize; x++ {
			img.SetColorIndex(x, y, index)
		}
	}
	path := filepath.Join(dir, "tile-"+tile.String()+".png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestStitchSingleTileExact(t *testing.T) {
	dir := t.TempDir()
	writeTile(t, dir, geometry.Tile{X: 2, Y: 3}, 8)

	rect := geometry.Rectangle{Left: 2000, Top: 3000, Right: 3000, Bottom: 4000}
	result, err := New(dir).Stitch(rect)
	require.NoError(t, err)
	assert.Empty(t, result.MissingTiles)
	assert.Equal(t, geometry.TileSize, result.Image.Bounds().Dx())
	assert.Equal(t, uint8(8), result.Image.ColorIndexAt(0, 0))
	assert.Equal(t, uint8(8), result.Image.ColorIndexAt(999, 999))
}

func TestStitchMissingTileLeavesTransparent(t *testing.T) {
	dir := t.TempDir()

	rect := geometry.Rectangle{Left: 0, Top: 0, Right: 1000, Bottom: 1000}
	result, err := New(dir).Stitch(rect)
	require.NoError(t, err)
	require.Len(t, result.MissingTiles, 1)
	assert.Equal(t, geometry.Tile{X: 0, Y: 0}, result.MissingTiles[0])
	assert.Equal(t, uint8(palette.TransparentIndex), result.Image.ColorIndexAt(5, 5))
}

func TestStitchSpansMultipleTilesWithOffset(t *testing.T) {
	dir := t.TempDir()
	writeTile(t, dir, geometry.Tile{X: 0, Y: 0}, 8)
	writeTile(t, dir, geometry.Tile{X: 1, Y: 0}, 20)

	// A rectangle straddling the boundary between tile (0,0) and (1,0),
	// offset from the tile grid so the paste offsets are non-trivial.
	rect := geometry.Rectangle{Left: 500, Top: 0, Right: 1500, Bottom: 100}
	result, err := New(dir).Stitch(rect)
	require.NoError(t, err)
	assert.Empty(t, result.MissingTiles)
	assert.Equal(t, uint8(8), result.Image.ColorIndexAt(0, 0))
	assert.Equal(t, uint8(20), result.Image.ColorIndexAt(999, 0))
}
