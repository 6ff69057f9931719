package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wplace-monitor/wplace-monitor/internal/geometry"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wplace-monitor-test.sqlite")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsertTileStartsBurning(t *testing.T) {
	s := openTestStore(t)

	tile, err := s.UpsertTile(3, 5)
	require.NoError(t, err)
	assert.Equal(t, HeatBurning, tile.Heat)
	assert.Equal(t, geometry.Tile{X: 3, Y: 5}.ID(), tile.ID)

	again, err := s.UpsertTile(3, 5)
	require.NoError(t, err)
	assert.Equal(t, tile.ID, again.ID)
	assert.Equal(t, HeatBurning, again.Heat)
}

func TestGetTileNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetTile(1, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkCheckedOnlyAdvancesLastUpdateOnChange(t *testing.T) {
	s := openTestStore(t)
	tile, err := s.UpsertTile(1, 1)
	require.NoError(t, err)

	require.NoError(t, s.MarkChecked(tile.ID, 100, false, "etag-a"))
	unchanged, err := s.GetTile(1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), unchanged.LastChecked)
	assert.Equal(t, int64(0), unchanged.LastUpdate)
	assert.Equal(t, "etag-a", unchanged.ETag)

	require.NoError(t, s.MarkChecked(tile.ID, 200, true, "etag-b"))
	changed, err := s.GetTile(1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(200), changed.LastChecked)
	assert.Equal(t, int64(200), changed.LastUpdate)
}

func TestSetTileHeatIsOptimisticNoOp(t *testing.T) {
	s := openTestStore(t)
	tile, err := s.UpsertTile(2, 2)
	require.NoError(t, err)

	require.NoError(t, s.SetTileHeat(tile.ID, 7))
	got, err := s.GetTile(2, 2)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Heat)

	// Writing the same heat again must not error and must leave state intact.
	require.NoError(t, s.SetTileHeat(tile.ID, 7))
	got2, err := s.GetTile(2, 2)
	require.NoError(t, err)
	assert.Equal(t, 7, got2.Heat)
}

func TestTilesInHeatAndOrderedByLastChecked(t *testing.T) {
	s := openTestStore(t)

	t1, err := s.UpsertTile(0, 0)
	require.NoError(t, err)
	t2, err := s.UpsertTile(0, 1)
	require.NoError(t, err)

	require.NoError(t, s.SetTileHeat(t1.ID, 5))
	require.NoError(t, s.SetTileHeat(t2.ID, 5))
	require.NoError(t, s.MarkChecked(t1.ID, 50, false, ""))
	require.NoError(t, s.MarkChecked(t2.ID, 10, false, ""))

	inHeat, err := s.TilesInHeat(5)
	require.NoError(t, err)
	assert.Len(t, inHeat, 2)

	ordered, err := s.TilesInHeatOrderedByLastChecked(5)
	require.NoError(t, err)
	require.Len(t, ordered, 2)
	assert.Equal(t, t2.ID, ordered[0].ID, "least recently checked tile should come first")
}

func TestTilesForRedistributionSelectsBurningWithUpdateAndTemperature(t *testing.T) {
	s := openTestStore(t)

	burningUnchecked, err := s.UpsertTile(0, 0)
	require.NoError(t, err)
	burningChecked, err := s.UpsertTile(0, 1)
	require.NoError(t, err)
	require.NoError(t, s.MarkChecked(burningChecked.ID, 10, true, ""))

	temperatureTile, err := s.UpsertTile(0, 2)
	require.NoError(t, err)
	require.NoError(t, s.SetTileHeat(temperatureTile.ID, 3))

	inactiveTile, err := s.UpsertTile(0, 3)
	require.NoError(t, err)
	require.NoError(t, s.SetTileHeat(inactiveTile.ID, HeatInactive))

	candidates, err := s.TilesForRedistribution()
	require.NoError(t, err)

	ids := make(map[int]bool)
	for _, c := range candidates {
		ids[c.ID] = true
	}
	assert.False(t, ids[burningUnchecked.ID], "burning tile with no observed update must not be eligible")
	assert.True(t, ids[burningChecked.ID], "burning tile with an observed update must be eligible")
	assert.True(t, ids[temperatureTile.ID], "temperature-queue tile must be eligible")
	assert.False(t, ids[inactiveTile.ID], "inactive tile must not be eligible")
}

func TestNumTemperatureQueues(t *testing.T) {
	s := openTestStore(t)

	n, err := s.NumTemperatureQueues()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	tile, err := s.UpsertTile(1, 1)
	require.NoError(t, err)
	require.NoError(t, s.SetTileHeat(tile.ID, 4))

	n, err = s.NumTemperatureQueues()
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestProjectLifecycleAndOverlap(t *testing.T) {
	s := openTestStore(t)

	rect := geometry.Rectangle{Left: 0, Top: 0, Right: 1500, Bottom: 1500}
	p := &Project{
		OwnerID:   "alice",
		Name:      "banner",
		Path:      "/projects/alice/banner",
		Rect:      rect,
		FirstSeen: 1000,
	}
	id, err := s.CreateProject(p)
	require.NoError(t, err)
	assert.NotZero(t, id)

	got, err := s.GetProjectByPath(p.Path)
	require.NoError(t, err)
	assert.Equal(t, ProjectActive, got.State)
	assert.Equal(t, rect, got.Rect)

	for _, tile := range rect.Tiles() {
		row, err := s.UpsertTile(tile.X, tile.Y)
		require.NoError(t, err)
		require.NoError(t, s.LinkTileProject(row.ID, got.ID))
	}
	assert.Len(t, rect.Tiles(), 4, "a 1500x1500 rect at the origin spans 4 tiles")

	overlapping, err := s.ProjectsOverlappingTile(geometry.Tile{X: 0, Y: 0}.ID())
	require.NoError(t, err)
	require.Len(t, overlapping, 1)
	assert.Equal(t, got.ID, overlapping[0].ID)

	active, err := s.ListActiveProjects()
	require.NoError(t, err)
	assert.Len(t, active, 1)

	require.NoError(t, s.SetProjectState(got.ID, ProjectInactive))
	active, err = s.ListActiveProjects()
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestUpdateProjectMetadataRoundTripsJSONFields(t *testing.T) {
	s := openTestStore(t)

	p := &Project{
		OwnerID:   "bob",
		Name:      "flag",
		Path:      "/projects/bob/flag",
		Rect:      geometry.Rectangle{Left: 0, Top: 0, Right: 10, Bottom: 10},
		FirstSeen: 5,
	}
	id, err := s.CreateProject(p)
	require.NoError(t, err)

	saved, err := s.GetProjectByPath(p.Path)
	require.NoError(t, err)
	saved.TotalProgress = 42
	saved.TotalRegress = 3
	saved.HasMissingTiles = true
	saved.TileLastUpdate = map[int]int64{7: 123}
	saved.TileUpdates24h = []TileUpdate{{TileID: 7, Timestamp: 123}}

	require.NoError(t, s.UpdateProjectMetadata(saved))

	reloaded, err := s.GetProjectByPath(p.Path)
	require.NoError(t, err)
	assert.Equal(t, int64(42), reloaded.TotalProgress)
	assert.Equal(t, int64(3), reloaded.TotalRegress)
	assert.True(t, reloaded.HasMissingTiles)
	assert.Equal(t, int64(123), reloaded.TileLastUpdate[7])
	require.Len(t, reloaded.TileUpdates24h, 1)
	assert.Equal(t, 7, reloaded.TileUpdates24h[0].TileID)
	assert.Equal(t, id, reloaded.ID)
}

func TestHistoryIsAppendOnlyAndOrderedByTimestamp(t *testing.T) {
	s := openTestStore(t)
	p := &Project{OwnerID: "c", Name: "p", Path: "/p", Rect: geometry.Rectangle{Right: 10, Bottom: 10}, FirstSeen: 1}
	id, err := s.CreateProject(p)
	require.NoError(t, err)

	_, err = s.AppendHistory(&HistoryChange{ProjectID: id, Timestamp: 200, Status: StatusInProgress, NumRemaining: 5, NumTarget: 10})
	require.NoError(t, err)
	_, err = s.AppendHistory(&HistoryChange{ProjectID: id, Timestamp: 100, Status: StatusInProgress, NumRemaining: 8, NumTarget: 10})
	require.NoError(t, err)

	history, err := s.HistoryForProject(id)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(100), history[0].Timestamp)
	assert.Equal(t, int64(200), history[1].Timestamp)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s := openTestStore(t)

	err := s.WithTx(context.Background(), func(tx *Tx) error {
		if _, err := tx.UpsertTile(9, 9); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	_, err = s.GetTile(9, 9)
	assert.ErrorIs(t, err, ErrNotFound, "transaction must be rolled back on error")
}

func TestWithTxCommitsOnSuccess(t *testing.T) {
	s := openTestStore(t)

	err := s.WithTx(context.Background(), func(tx *Tx) error {
		_, err := tx.UpsertTile(4, 4)
		return err
	})
	require.NoError(t, err)

	tile, err := s.GetTile(4, 4)
	require.NoError(t, err)
	assert.Equal(t, HeatBurning, tile.Heat)
}

func TestWithRetryRetriesTransientOnce(t *testing.T) {
	attempts := 0
	err := WithRetry(func() error {
		attempts++
		if attempts < 2 {
			return ErrTransient
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestWithRetryDoesNotRetryFatal(t *testing.T) {
	attempts := 0
	err := WithRetry(func() error {
		attempts++
		return ErrFatal
	})
	assert.ErrorIs(t, err, ErrFatal)
	assert.Equal(t, 1, attempts)
}
