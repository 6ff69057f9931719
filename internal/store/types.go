package store

import "github.com/wplace-monitor/wplace-monitor/internal/geometry"

// Heat values with reserved meanings (§3 of the spec).
const (
	HeatInactive = 0
	HeatBurning  = 999
)

// Tile is the persisted state of a single lattice tile.
type Tile struct {
	ID          int
	X, Y        int
	Heat        int
	LastChecked int64
	LastUpdate  int64
	ETag        string
}

// GeometryTile returns the geometry.Tile identity for this row.
func (t Tile) GeometryTile() geometry.Tile {
	return geometry.Tile{X: t.X, Y: t.Y}
}

// ProjectState is the lifecycle state of a project.
type ProjectState string

const (
	ProjectActive   ProjectState = "active"
	ProjectInactive ProjectState = "inactive"
)

// TileUpdate records that a tile overlapping a project was observed to
// change at a given time; used for the rolling 24h window
// (TileUpdates24h).
type TileUpdate struct {
	TileID    int   `json:"tile_id"`
	Timestamp int64 `json:"timestamp"`
}

// Project is the persisted state of a single project.
type Project struct {
	ID       int
	OwnerID  string
	Name     string
	Path     string
	Rect     geometry.Rectangle
	State    ProjectState
	Mtime    float64

	FirstSeen int64
	LastCheck int64

	MaxCompletionPixels  int
	MaxCompletionPercent float64
	MaxCompletionTime    int64

	TotalProgress        int64
	TotalRegress         int64
	LargestRegressPixels int

	HasMissingTiles bool

	// TileLastUpdate maps tile id -> last observed change time for tiles
	// overlapping this project's rectangle.
	TileLastUpdate map[int]int64
	// TileUpdates24h is the rolling window of tile-change events within
	// the last 24h of LastCheck.
	TileUpdates24h []TileUpdate
}

// HistoryChange is one append-only progress record for a project.
type HistoryChange struct {
	ID                int
	ProjectID         int
	Timestamp         int64
	Status            string
	NumRemaining      int
	NumTarget         int
	CompletionPercent float64
	ProgressPixels    int
	RegressPixels     int
}

const (
	StatusInProgress = "in_progress"
	StatusComplete   = "complete"
)
