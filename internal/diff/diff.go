// Package diff implements the per-project incremental comparison of §4.7:
// stitch a project's rectangle, compare it against the project's target
// image and its previous snapshot, accumulate progress/regress pixel
// counts, and emit a HistoryChange when the comparison is not a no-op. It
// follows the original ingest.py's stitch-then-compare shape
// (original_source/src/wwpppp/projects.py: run_diff/pixel_compare),
// enriched with the snapshot/prev-state tracking and rolling aggregates
// §4.7 adds on top of that simpler one-shot comparison.
package diff

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/wplace-monitor/wplace-monitor/internal/geometry"
	"github.com/wplace-monitor/wplace-monitor/internal/palette"
	"github.com/wplace-monitor/wplace-monitor/internal/stitch"
	"github.com/wplace-monitor/wplace-monitor/internal/store"
)

// tile24h is the rolling window width for tile_updates_24h (§4.7 step 8).
const tile24h = 86400

// Config configures an Engine.
type Config struct {
	// SnapshotDir holds one PNG per project, named "project-{id}.png".
	SnapshotDir string
	// Logger receives corrupt-snapshot and progress events; defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Metrics tracks process-local diff engine activity using atomic counters,
// in the style of the golivekit diff engine's instrumentation (other
// examples: pkg/diff-engine.go). These are in-memory only; the durable
// per-project rolling aggregates live in Store.
type Metrics struct {
	Runs           atomic.Int64
	HistoryEmitted atomic.Int64
	TotalProgress  atomic.Int64
	TotalRegress   atomic.Int64
}

// MetricsSnapshot is a plain-value copy of Metrics, returned by
// Metrics.Snapshot.
type MetricsSnapshot struct {
	Runs           int64
	HistoryEmitted int64
	TotalProgress  int64
	TotalRegress   int64
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Runs:           m.Runs.Load(),
		HistoryEmitted: m.HistoryEmitted.Load(),
		TotalProgress:  m.TotalProgress.Load(),
		TotalRegress:   m.TotalRegress.Load(),
	}
}

// Engine runs the Diff Engine algorithm of §4.7 for one project at a time.
// Callers are responsible for serializing runs per project (§5: at most
// one Diff in flight per project).
type Engine struct {
	store    *store.Store
	stitcher *stitch.Stitcher
	cfg      Config
	metrics  *Metrics
	now      func() int64
}

// New constructs an Engine.
func New(s *store.Store, stitcher *stitch.Stitcher, cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		store:    s,
		stitcher: stitcher,
		cfg:      cfg,
		metrics:  &Metrics{},
		now:      func() int64 { return time.Now().Unix() },
	}
}

// Metrics returns the engine's process-local counters.
func (e *Engine) Metrics() *Metrics { return e.metrics }

// Result describes the outcome of one Run.
type Result struct {
	Project        *store.Project
	HistoryEmitted bool
	History        *store.HistoryChange
}

// Run executes the §4.7 algorithm for project p. trigger, if non-nil, is
// the tile whose change prompted this run; its id is recorded into
// p.TileLastUpdate/TileUpdates24h. Run mutates p in place and persists it
// via Store before returning.
func (e *Engine) Run(ctx context.Context, p *store.Project, trigger *geometry.Tile) (Result, error) {
	target, err := palette.OpenFile(p.Path)
	if err != nil {
		return Result{}, fmt.Errorf("diff: load target for project %d: %w", p.ID, err)
	}

	stitched, err := e.stitcher.Stitch(p.Rect)
	if err != nil {
		return Result{}, fmt.Errorf("diff: stitch project %d: %w", p.ID, err)
	}
	current := stitched.Image
	p.HasMissingTiles = len(stitched.MissingTiles) > 0

	prev, err := e.loadSnapshot(p.ID)
	if err != nil {
		return Result{}, err
	}

	now := e.now()
	if trigger != nil {
		e.recordTileUpdate(p, trigger.ID(), now)
	}
	p.LastCheck = now
	e.metrics.Runs.Add(1)

	if prev != nil && palette.Equal(current, prev) {
		// §8 idempotence: no content change since the last observation, so
		// this run produces zero additional history rows.
		if err := e.store.UpdateProjectMetadata(p); err != nil {
			return Result{}, err
		}
		return Result{Project: p}, nil
	}

	progressPixels, regressPixels, numRemaining, numTarget := comparePixels(current, target, prev)
	if numTarget == 0 {
		numTarget = 1 // §4.7 tie-break: num_target is floored to 1.
	}

	if prev == nil && palette.Equal(current, target) {
		// §4.7 step 6 / tie-break: a project that already matches its
		// target on its very first observation has made no progress we
		// watched happen. Persist the bookkeeping but emit no history and
		// no snapshot; the first genuinely divergent observation becomes
		// the baseline instead.
		if err := e.store.UpdateProjectMetadata(p); err != nil {
			return Result{}, err
		}
		return Result{Project: p}, nil
	}

	percent := 100 * (1 - float64(numRemaining)/float64(numTarget))
	status := store.StatusInProgress
	if numRemaining == 0 {
		status = store.StatusComplete
	}

	p.TotalProgress += int64(progressPixels)
	p.TotalRegress += int64(regressPixels)
	if regressPixels > p.LargestRegressPixels {
		p.LargestRegressPixels = regressPixels
	}
	if p.MaxCompletionPixels == 0 || numRemaining < p.MaxCompletionPixels {
		p.MaxCompletionPixels = numRemaining
		p.MaxCompletionPercent = percent
		p.MaxCompletionTime = now
	}

	if err := e.writeSnapshot(p.ID, current); err != nil {
		return Result{}, err
	}

	h := &store.HistoryChange{
		ProjectID:         p.ID,
		Timestamp:         now,
		Status:            status,
		NumRemaining:      numRemaining,
		NumTarget:         numTarget,
		CompletionPercent: percent,
		ProgressPixels:    progressPixels,
		RegressPixels:     regressPixels,
	}
	id, err := e.store.AppendHistory(h)
	if err != nil {
		return Result{}, err
	}
	h.ID = id

	if err := e.store.UpdateProjectMetadata(p); err != nil {
		return Result{}, err
	}

	e.metrics.HistoryEmitted.Add(1)
	e.metrics.TotalProgress.Add(int64(progressPixels))
	e.metrics.TotalRegress.Add(int64(regressPixels))

	return Result{Project: p, HistoryEmitted: true, History: h}, nil
}

// comparePixels implements §4.7 step 4: for every pixel the target cares
// about (target != transparent), accumulate progress/regress against the
// previous snapshot (if any) and count how many still differ from target.
func comparePixels(current, target, prev *image.Paletted) (progressPixels, regressPixels, numRemaining, numTarget int) {
	for i, tgt := range target.Pix {
		if tgt == palette.TransparentIndex {
			continue
		}
		numTarget++

		cur := current.Pix[i]
		if prev != nil {
			p := prev.Pix[i]
			if p == tgt && cur != tgt {
				regressPixels++
			}
			if p != tgt && cur == tgt {
				progressPixels++
			}
		}
		if cur != tgt {
			numRemaining++
		}
	}
	return
}

func (e *Engine) recordTileUpdate(p *store.Project, tileID int, now int64) {
	if p.TileLastUpdate == nil {
		p.TileLastUpdate = make(map[int]int64)
	}
	p.TileLastUpdate[tileID] = now
	p.TileUpdates24h = append(p.TileUpdates24h, store.TileUpdate{TileID: tileID, Timestamp: now})
	p.TileUpdates24h = pruneOlderThan(p.TileUpdates24h, now-tile24h)
}

// pruneOlderThan drops entries with Timestamp < cutoff, in place.
func pruneOlderThan(updates []store.TileUpdate, cutoff int64) []store.TileUpdate {
	out := updates[:0]
	for _, u := range updates {
		if u.Timestamp >= cutoff {
			out = append(out, u)
		}
	}
	return out
}

func (e *Engine) snapshotPath(projectID int) string {
	return filepath.Join(e.cfg.SnapshotDir, fmt.Sprintf("project-%d.png", projectID))
}

// loadSnapshot loads the previous snapshot for a project. A missing file
// means no prior observation; a corrupt one is discarded per §7's
// CorruptSnapshot policy ("discard snapshot; treat as no prior; continue").
func (e *Engine) loadSnapshot(projectID int) (*image.Paletted, error) {
	img, err := palette.OpenFile(e.snapshotPath(projectID))
	if err == nil {
		return img, nil
	}
	if os.IsNotExist(err) {
		return nil, nil
	}
	e.cfg.Logger.Warn("discarding corrupt snapshot", "project", projectID, "err", err)
	return nil, nil
}

func (e *Engine) writeSnapshot(projectID int, img *image.Paletted) error {
	path := e.snapshotPath(projectID)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("diff: create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.png.tmp")
	if err != nil {
		return fmt.Errorf("diff: create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return fmt.Errorf("diff: encode snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("diff: close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("diff: rename snapshot into place: %w", err)
	}
	return nil
}
