// Package geometry implements coordinate conversions between tile, pixel,
// and geographic space for the 2048x2048 tile lattice that covers the
// canvas, and rectangle-to-tile-set enumeration.
package geometry

import (
	"fmt"
	"math"
)

// TileSize is the pixel width and height of a single tile.
const TileSize = 1000

// LatticeSize is the number of tiles along each axis of the lattice.
const LatticeSize = 2048

// CanvasSize is the total pixel width/height of the canvas.
const CanvasSize = LatticeSize * TileSize

// Tile identifies a single cell of the tile lattice.
type Tile struct {
	X, Y int
}

// ID returns the canonical identity of the tile: ty*2048 + tx.
func (t Tile) ID() int {
	return t.Y*LatticeSize + t.X
}

// Valid reports whether the tile lies within the lattice bounds.
func (t Tile) Valid() bool {
	return t.X >= 0 && t.X < LatticeSize && t.Y >= 0 && t.Y < LatticeSize
}

// String renders the tile as "x_y", matching the cache file naming scheme.
func (t Tile) String() string {
	return fmt.Sprintf("%d_%d", t.X, t.Y)
}

// Origin returns the pixel Point at the top-left corner of the tile.
func (t Tile) Origin() Point {
	return Point{X: t.X * TileSize, Y: t.Y * TileSize}
}

// TileFromID recovers a Tile from its canonical id.
func TileFromID(id int) Tile {
	return Tile{X: id % LatticeSize, Y: id / LatticeSize}
}

// Point is a pixel coordinate in canvas space.
type Point struct {
	X, Y int
}

// PointFrom4 builds a Point from the (tx, ty, px, py) quadruple used in
// project file names. px and py must be in [0, TileSize) and tx, ty must
// be in [0, LatticeSize).
func PointFrom4(tx, ty, px, py int) (Point, error) {
	if tx < 0 || ty < 0 || px < 0 || py < 0 {
		return Point{}, fmt.Errorf("geometry: tile and pixel coordinates must be non-negative")
	}
	if px >= TileSize || py >= TileSize {
		return Point{}, fmt.Errorf("geometry: pixel coordinates must be less than %d", TileSize)
	}
	if tx >= LatticeSize || ty >= LatticeSize {
		return Point{}, fmt.Errorf("geometry: tile coordinates must be less than %d", LatticeSize)
	}
	return Point{X: tx*TileSize + px, Y: ty*TileSize + py}, nil
}

// To4 decomposes the point back into its (tx, ty, px, py) quadruple.
func (p Point) To4() (tx, ty, px, py int) {
	tx, px = divmod(p.X, TileSize)
	ty, py = divmod(p.Y, TileSize)
	return
}

// Sub returns p offset by subtracting other.
func (p Point) Sub(other Point) Point {
	return Point{X: p.X - other.X, Y: p.Y - other.Y}
}

func divmod(a, b int) (q, r int) {
	q = a / b
	r = a % b
	if r < 0 {
		q--
		r += b
	}
	return
}

// Size is a pixel width/height pair.
type Size struct {
	W, H int
}

// Empty reports whether the size has zero area.
func (s Size) Empty() bool {
	return s.W == 0 || s.H == 0
}

// Rectangle is an axis-aligned pixel rectangle using PIL-style
// half-open coordinates: [Left, Right) x [Top, Bottom).
type Rectangle struct {
	Left, Top, Right, Bottom int
}

// RectFromPointSize builds a Rectangle from its top-left point and size.
func RectFromPointSize(p Point, s Size) Rectangle {
	return Rectangle{Left: p.X, Top: p.Y, Right: p.X + s.W, Bottom: p.Y + s.H}
}

// Point returns the top-left corner of the rectangle.
func (r Rectangle) Point() Point {
	return Point{X: min(r.Left, r.Right), Y: min(r.Top, r.Bottom)}
}

// Size returns the width/height of the rectangle.
func (r Rectangle) Size() Size {
	return Size{W: abs(r.Right - r.Left), H: abs(r.Bottom - r.Top)}
}

// Empty reports whether the rectangle has zero area.
func (r Rectangle) Empty() bool {
	return r.Left == r.Right || r.Top == r.Bottom
}

// InCanvas reports whether the rectangle lies entirely within the canvas.
func (r Rectangle) InCanvas() bool {
	return r.Left >= 0 && r.Top >= 0 && r.Right <= CanvasSize && r.Bottom <= CanvasSize
}

// Tiles enumerates the set of lattice tiles overlapped by the rectangle.
func (r Rectangle) Tiles() []Tile {
	left := r.Left / TileSize
	top := r.Top / TileSize
	right := ceilDiv(r.Right, TileSize)
	bottom := ceilDiv(r.Bottom, TileSize)

	tiles := make([]Tile, 0, (right-left)*(bottom-top))
	for tx := left; tx < right; tx++ {
		for ty := top; ty < bottom; ty++ {
			tiles = append(tiles, Tile{X: tx, Y: ty})
		}
	}
	return tiles
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// GeoPoint is a WGS84 latitude/longitude pair.
type GeoPoint struct {
	Lat, Lon float64
}

// ToGeo projects a canvas pixel point to WGS84 using the inverse
// Web Mercator projection over the CanvasSize x CanvasSize canvas.
func (p Point) ToGeo() GeoPoint {
	lon := float64(p.X)/CanvasSize*360 - 180
	lat := math.Atan(math.Sinh(math.Pi*(1-2*float64(p.Y)/CanvasSize))) * 180 / math.Pi
	return GeoPoint{Lat: lat, Lon: lon}
}

// ToPixel projects a WGS84 point forward to canvas pixel space. Rounding
// makes the round trip pixel-exact within 1 unit for interior points.
func (g GeoPoint) ToPixel() Point {
	x := (g.Lon + 180) / 360 * CanvasSize
	latRad := g.Lat * math.Pi / 180
	y := (1 - math.Asinh(math.Tan(latRad))/math.Pi) / 2 * CanvasSize
	return Point{X: int(math.Round(x)), Y: int(math.Round(y))}
}
