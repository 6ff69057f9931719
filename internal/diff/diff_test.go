package diff

import (
	"context"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wplace-monitor/wplace-monitor/internal/geometry"
	"github.com/wplace-monitor/wplace-monitor/internal/palette"
	"github.com/wplace-monitor/wplace-monitor/internal/stitch"
	"github.com/wplace-monitor/wplace-monitor/internal/store"
)

// testRect is a 2x2 region fully inside tile (0,0), small enough to set up
// by hand without paying for a full 1000x1000 tile comparison.
var testRect = geometry.Rectangle{Left: 0, Top: 0, Right: 2, Bottom: 2}

func writeFullTile(t *testing.T, dir string, corner [2][2]uint8) {
	t.Helper()
	img := palette.New(geometry.TileSize, geometry.TileSize)
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.SetColorIndex(x, y, corner[y][x])
		}
	}
	path := filepath.Join(dir, "tile-"+(geometry.Tile{X: 0, Y: 0}).String()+".png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func writeTargetImage(t *testing.T, dir string, corner [2][2]uint8) string {
	t.Helper()
	img := palette.New(2, 2)
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.SetColorIndex(x, y, corner[y][x])
		}
	}
	path := filepath.Join(dir, "target_0_0_0_0.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func newTestEngine(t *testing.T) (*Engine, *store.Store, string) {
	t.Helper()
	tileDir := t.TempDir()
	snapDir := t.TempDir()
	s, err := store.Open(filepath.Join(t.TempDir(), "diff-test.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	eng := New(s, stitch.New(tileDir), Config{SnapshotDir: snapDir})
	return eng, s, tileDir
}

func newTestProject(t *testing.T, s *store.Store, targetPath string) *store.Project {
	t.Helper()
	p := &store.Project{
		OwnerID:   "tester",
		Name:      "test",
		Path:      targetPath,
		Rect:      testRect,
		FirstSeen: 1,
	}
	id, err := s.CreateProject(p)
	require.NoError(t, err)
	p.ID = id
	return p
}

func TestRunFirstObservationMatchingTargetEmitsNoHistory(t *testing.T) {
	eng, s, tileDir := newTestEngine(t)
	corner := [2][2]uint8{{8, 8}, {8, 8}}
	writeFullTile(t, tileDir, corner)
	targetPath := writeTargetImage(t, t.TempDir(), corner)
	p := newTestProject(t, s, targetPath)

	result, err := eng.Run(context.Background(), p, nil)
	require.NoError(t, err)
	assert.False(t, result.HistoryEmitted)

	hist, err := s.HistoryForProject(p.ID)
	require.NoError(t, err)
	assert.Empty(t, hist)
}

func TestRunFirstDivergentObservationEmitsHistory(t *testing.T) {
	eng, s, tileDir := newTestEngine(t)
	writeFullTile(t, tileDir, [2][2]uint8{{0, 0}, {0, 0}})
	targetPath := writeTargetImage(t, t.TempDir(), [2][2]uint8{{8, 8}, {8, 8}})
	p := newTestProject(t, s, targetPath)

	result, err := eng.Run(context.Background(), p, nil)
	require.NoError(t, err)
	require.True(t, result.HistoryEmitted)
	assert.Equal(t, 4, result.History.NumRemaining)
	assert.Equal(t, 4, result.History.NumTarget)
	assert.Equal(t, store.StatusInProgress, result.History.Status)
	assert.Equal(t, 0, result.History.ProgressPixels)
	assert.Equal(t, 0, result.History.RegressPixels)

	hist, err := s.HistoryForProject(p.ID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
}

func TestRunTracksProgressAndRegressAcrossRuns(t *testing.T) {
	eng, s, tileDir := newTestEngine(t)
	writeFullTile(t, tileDir, [2][2]uint8{{0, 0}, {0, 0}})
	targetPath := writeTargetImage(t, t.TempDir(), [2][2]uint8{{8, 20}, {8, 20}})
	p := newTestProject(t, s, targetPath)

	_, err := eng.Run(context.Background(), p, nil)
	require.NoError(t, err)

	// Second run: (0,0) and (1,0) now match target (progress); (0,1) and
	// (1,1) are left unchanged at 0, still not matching target.
	writeFullTile(t, tileDir, [2][2]uint8{{8, 20}, {0, 0}})
	result, err := eng.Run(context.Background(), p, nil)
	require.NoError(t, err)
	require.True(t, result.HistoryEmitted)
	assert.Equal(t, 2, result.History.ProgressPixels)
	assert.Equal(t, 0, result.History.RegressPixels)
	assert.Equal(t, 2, result.History.NumRemaining)

	reloaded, err := s.GetProjectByPath(targetPath)
	require.NoError(t, err)
	assert.EqualValues(t, 2, reloaded.TotalProgress)
	assert.EqualValues(t, 0, reloaded.TotalRegress)
}

func TestRunDetectsRegress(t *testing.T) {
	eng, s, tileDir := newTestEngine(t)
	targetPath := writeTargetImage(t, t.TempDir(), [2][2]uint8{{8, 8}, {8, 8}})
	writeFullTile(t, tileDir, [2][2]uint8{{8, 8}, {8, 8}})
	p := newTestProject(t, s, targetPath)

	// First run is the "matches on first observation" not-started path, so
	// seed a real baseline by diverging once first, then matching, then
	// regressing.
	writeFullTile(t, tileDir, [2][2]uint8{{0, 8}, {8, 8}})
	_, err := eng.Run(context.Background(), p, nil)
	require.NoError(t, err)

	writeFullTile(t, tileDir, [2][2]uint8{{8, 8}, {8, 8}})
	_, err = eng.Run(context.Background(), p, nil)
	require.NoError(t, err)

	writeFullTile(t, tileDir, [2][2]uint8{{0, 8}, {8, 8}})
	result, err := eng.Run(context.Background(), p, nil)
	require.NoError(t, err)
	require.True(t, result.HistoryEmitted)
	assert.Equal(t, 1, result.History.RegressPixels)
}

func TestRunCompleteSetsStatusComplete(t *testing.T) {
	eng, s, tileDir := newTestEngine(t)
	targetPath := writeTargetImage(t, t.TempDir(), [2][2]uint8{{8, 8}, {8, 8}})
	writeFullTile(t, tileDir, [2][2]uint8{{0, 0}, {0, 0}})
	p := newTestProject(t, s, targetPath)

	_, err := eng.Run(context.Background(), p, nil)
	require.NoError(t, err)

	writeFullTile(t, tileDir, [2][2]uint8{{8, 8}, {8, 8}})
	result, err := eng.Run(context.Background(), p, nil)
	require.NoError(t, err)
	require.True(t, result.HistoryEmitted)
	assert.Equal(t, store.StatusComplete, result.History.Status)
	assert.Equal(t, 0, result.History.NumRemaining)
}

func TestRunIdenticalConsecutiveRunsEmitHistoryOnce(t *testing.T) {
	eng, s, tileDir := newTestEngine(t)
	targetPath := writeTargetImage(t, t.TempDir(), [2][2]uint8{{8, 8}, {8, 8}})
	writeFullTile(t, tileDir, [2][2]uint8{{0, 0}, {0, 0}})
	p := newTestProject(t, s, targetPath)

	first, err := eng.Run(context.Background(), p, nil)
	require.NoError(t, err)
	require.True(t, first.HistoryEmitted)

	second, err := eng.Run(context.Background(), p, nil)
	require.NoError(t, err)
	assert.False(t, second.HistoryEmitted)

	hist, err := s.HistoryForProject(p.ID)
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func TestRunRecordsTriggerTileUpdate(t *testing.T) {
	eng, s, tileDir := newTestEngine(t)
	targetPath := writeTargetImage(t, t.TempDir(), [2][2]uint8{{8, 8}, {8, 8}})
	writeFullTile(t, tileDir, [2][2]uint8{{0, 0}, {0, 0}})
	p := newTestProject(t, s, targetPath)

	tile := geometry.Tile{X: 0, Y: 0}
	result, err := eng.Run(context.Background(), p, &tile)
	require.NoError(t, err)
	require.NotNil(t, result.Project)
	assert.Contains(t, result.Project.TileLastUpdate, tile.ID())
	require.Len(t, result.Project.TileUpdates24h, 1)
	assert.Equal(t, tile.ID(), result.Project.TileUpdates24h[0].TileID)
}

func TestRunMissingTileSetsHasMissingTiles(t *testing.T) {
	eng, s, _ := newTestEngine(t)
	targetPath := writeTargetImage(t, t.TempDir(), [2][2]uint8{{8, 8}, {8, 8}})
	p := newTestProject(t, s, targetPath)

	result, err := eng.Run(context.Background(), p, nil)
	require.NoError(t, err)
	assert.True(t, result.Project.HasMissingTiles)
}

func TestMetricsAccumulateAcrossRuns(t *testing.T) {
	eng, s, tileDir := newTestEngine(t)
	targetPath := writeTargetImage(t, t.TempDir(), [2][2]uint8{{8, 8}, {8, 8}})
	writeFullTile(t, tileDir, [2][2]uint8{{0, 0}, {0, 0}})
	p := newTestProject(t, s, targetPath)

	_, err := eng.Run(context.Background(), p, nil)
	require.NoError(t, err)

	// An identical second run counts as a run but emits no history.
	_, err = eng.Run(context.Background(), p, nil)
	require.NoError(t, err)

	snap := eng.Metrics().Snapshot()
	assert.EqualValues(t, 2, snap.Runs)
	assert.EqualValues(t, 1, snap.HistoryEmitted)
}
