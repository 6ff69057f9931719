// Package palette implements the canonical paletted image representation
// used to canonicalize fetched tiles and target project images before
// comparison. Index 0 is always the reserved transparent entry.
package palette

import (
	"fmt"
	"image"
	"image/color"
	_ "image/png"
	"os"
)

// Colors is the fixed, ordered list of canvas colors. Index 0 is the
// reserved transparent entry and has no RGB meaning.
var Colors = []color.RGBA{
	{0, 0, 0, 0},       // 0: transparent (reserved)
	{0, 0, 0, 255},     // 1: black
	{61, 61, 61, 255},  // 2: dark gray
	{120, 120, 120, 255}, // 3: gray
	{170, 170, 170, 255}, // 4: medium gray
	{210, 210, 210, 255}, // 5: light gray
	{255, 255, 255, 255}, // 6: white
	{96, 0, 24, 255},   // 7: deep red
	{237, 28, 36, 255}, // 8: red
	{255, 127, 39, 255}, // 9: orange
	{246, 170, 9, 255}, // 10: gold
	{249, 221, 59, 255}, // 11: yellow
	{255, 250, 188, 255}, // 12: light yellow
	{14, 185, 104, 255}, // 13: green
	{19, 230, 123, 255}, // 14: light green
	{135, 255, 94, 255}, // 15: lime
	{12, 129, 110, 255}, // 16: teal
	{16, 174, 166, 255}, // 17: cyan-teal
	{19, 225, 190, 255}, // 18: light teal
	{96, 247, 242, 255}, // 19: cyan
	{40, 80, 158, 255},  // 20: blue
	{64, 147, 228, 255}, // 21: light blue
	{107, 80, 246, 255}, // 22: indigo
	{153, 177, 251, 255}, // 23: light indigo
	{120, 12, 153, 255}, // 24: purple
	{170, 56, 185, 255}, // 25: light purple
	{224, 159, 249, 255}, // 26: pale purple
	{203, 0, 122, 255},  // 27: magenta
	{236, 31, 128, 255}, // 28: pink
	{243, 141, 169, 255}, // 29: light pink
	{104, 70, 52, 255},  // 30: brown
	{149, 104, 42, 255}, // 31: light brown
	{248, 178, 119, 255}, // 32: tan
}

// TransparentIndex is the palette index representing transparency.
const TransparentIndex = 0

// ColorNotInPalette is returned when an opaque pixel's color has no
// matching palette entry.
type ColorNotInPalette struct {
	// Colors maps packed 0xRRGGBB values to the number of pixels observed
	// with that color.
	Colors map[uint32]int
}

func (e *ColorNotInPalette) Error() string {
	return fmt.Sprintf("palette: %d distinct color(s) not in palette", len(e.Colors))
}

var rgbToIndex map[uint32]int

func init() {
	rgbToIndex = make(map[uint32]int, len(Colors))
	for i, c := range Colors {
		if i == TransparentIndex {
			continue
		}
		rgbToIndex[pack(c.R, c.G, c.B)] = i
	}
}

func pack(r, g, b uint8) uint32 {
	return uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

// ColorModel returns the standard library color.Palette built from Colors,
// suitable for use with image.NewPaletted.
func ColorModel() color.Palette {
	pal := make(color.Palette, len(Colors))
	for i, c := range Colors {
		pal[i] = c
	}
	return pal
}

// Lookup maps an RGBA pixel to its palette index. Alpha 0 always maps to
// the transparent index. An opaque color with no palette entry maps to
// the transparent index as well, and is recorded in report (keyed by the
// packed 0xRRGGBB value) for the caller to surface as ColorNotInPalette.
func Lookup(report map[uint32]int, r, g, b, a uint8) int {
	if a == 0 {
		return TransparentIndex
	}
	rgb := pack(r, g, b)
	if idx, ok := rgbToIndex[rgb]; ok {
		return idx
	}
	if report != nil {
		report[rgb]++
	}
	return TransparentIndex
}

// New allocates a paletted image of the given size, fully transparent.
func New(w, h int) *image.Paletted {
	img := image.NewPaletted(image.Rect(0, 0, w, h), ColorModel())
	return img
}

// Ensure converts any image to the canonical indexed representation.
// It returns ColorNotInPalette if any opaque pixel's color has no palette
// entry; the returned image is fully converted even then, with unmappable
// pixels set to transparent. Project loading rejects a file on this error;
// Ingest logs it and keeps the converted image.
func Ensure(src image.Image) (*image.Paletted, error) {
	bounds := src.Bounds()
	out := New(bounds.Dx(), bounds.Dy())
	report := make(map[uint32]int)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := src.At(x, y).RGBA()
			idx := Lookup(report, uint8(r>>8), uint8(g>>8), uint8(b>>8), uint8(a>>8))
			out.SetColorIndex(x-bounds.Min.X, y-bounds.Min.Y, uint8(idx))
		}
	}

	if len(report) > 0 {
		return out, &ColorNotInPalette{Colors: report}
	}
	return out, nil
}

// OpenFile loads an image file from disk and canonicalizes it via Ensure.
func OpenFile(path string) (*image.Paletted, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("palette: decode %s: %w", path, err)
	}
	return Ensure(img)
}

// Equal reports whether two paletted images have identical dimensions and
// byte-identical index data — the comparison Ingest and the Diff Engine
// rely on for change detection.
func Equal(a, b *image.Paletted) bool {
	if a.Bounds() != b.Bounds() {
		return false
	}
	return string(a.Pix) == string(b.Pix)
}

// Paste copies src onto dst at the given offset using a direct index copy
// (no alpha blending — palette tiles are pasted verbatim). Pixels of src
// that fall outside dst's bounds are silently dropped.
func Paste(dst *image.Paletted, src *image.Paletted, offsetX, offsetY int) {
	db := dst.Bounds()
	sb := src.Bounds()

	for sy := sb.Min.Y; sy < sb.Max.Y; sy++ {
		dy := db.Min.Y + offsetY + (sy - sb.Min.Y)
		if dy < db.Min.Y || dy >= db.Max.Y {
			continue
		}
		for sx := sb.Min.X; sx < sb.Max.X; sx++ {
			dx := db.Min.X + offsetX + (sx - sb.Min.X)
			if dx < db.Min.X || dx >= db.Max.X {
				continue
			}
			dst.SetColorIndex(dx, dy, src.ColorIndexAt(sx, sy))
		}
	}
}
