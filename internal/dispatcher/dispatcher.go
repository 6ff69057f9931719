// Package dispatcher owns the main loop of §4.8: sync the project
// directory against the Store, poll one tile per cycle through the
// Scheduler, run Ingest, and fan out to the Diff Engine for every project
// overlapping a changed tile. It follows the shape of the original
// wwpppp/main.py's Main class (check_tiles/check_projects/run_forever),
// restructured around the teacher's signal-handling shutdown pattern
// (internal/cmd/generate.go's context.WithCancel + os/signal.Notify).
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/wplace-monitor/wplace-monitor/internal/diff"
	"github.com/wplace-monitor/wplace-monitor/internal/geometry"
	"github.com/wplace-monitor/wplace-monitor/internal/ingest"
	"github.com/wplace-monitor/wplace-monitor/internal/palette"
	"github.com/wplace-monitor/wplace-monitor/internal/scheduler"
	"github.com/wplace-monitor/wplace-monitor/internal/store"
)

// DefaultPollInterval is the base sleep between full cycles (§4.8: "~127s
// in reference"); deliberately not a round number, the same way the
// original picked 127 to avoid always waking on the minute.
const DefaultPollInterval = 127 * time.Second

// projectFilePattern matches the four trailing "{tx}_{ty}_{px}_{py}.png"
// coordinates in a project filename, accepting '-', '_', or a space as the
// separator, grounded on wwpppp/projects.py's _RE_HAS_COORDS.
var projectFilePattern = regexp.MustCompile(`(?i)[-_ ](\d+)[-_ ](\d+)[-_ ](\d+)[-_ ](\d+)\.png$`)

// ErrRectangleOutOfBounds is returned when a project's rectangle is not
// fully contained within the canvas (§9 Open Question: rejected, never
// clamped).
var ErrRectangleOutOfBounds = errors.New("dispatcher: project rectangle is out of canvas bounds")

// Config configures a Dispatcher.
type Config struct {
	// ProjectDir is scanned for project image files.
	ProjectDir string
	// RejectedDir receives files that fail validation (§6); defaults to
	// ProjectDir/rejected.
	RejectedDir string
	// PollInterval is the base sleep between cycles; defaults to
	// DefaultPollInterval. A small random jitter is added on top.
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Dispatcher owns the top-level loop.
type Dispatcher struct {
	store     *store.Store
	scheduler *scheduler.QueueSystem
	fetcher   *ingest.Fetcher
	engine    *diff.Engine
	cfg       Config

	tileLocks    *keyedLocks
	projectLocks *keyedLocks
}

// New constructs a Dispatcher from its collaborators.
func New(s *store.Store, qs *scheduler.QueueSystem, fetcher *ingest.Fetcher, engine *diff.Engine, cfg Config) *Dispatcher {
	if cfg.RejectedDir == "" {
		cfg.RejectedDir = filepath.Join(cfg.ProjectDir, "rejected")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Dispatcher{
		store:        s,
		scheduler:    qs,
		fetcher:      fetcher,
		engine:       engine,
		cfg:          cfg,
		tileLocks:    newKeyedLocks(),
		projectLocks: newKeyedLocks(),
	}
}

// Run executes the main loop until ctx is cancelled (typically by a
// SIGINT/SIGTERM handler installed by the caller), returning nil on clean
// shutdown. A cycle that fails with a StoreTransient error is retried once
// (store.WithRetry). A StoreFatal error aborts the current iteration
// (logged) but does not stop the loop; any other error from a cycle stops
// it and is returned to the caller.
func (d *Dispatcher) Run(ctx context.Context) error {
	if err := d.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("dispatcher: start scheduler: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := store.WithRetry(func() error { return d.cycle(ctx) }); err != nil {
			if store.IsFatal(err) {
				d.cfg.Logger.Error("fatal store error, aborting iteration", "err", err)
			} else {
				return err
			}
		}
		d.logMetrics()

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(d.jitteredInterval()):
		}
	}
}

// logMetrics emits the Diff Engine's process-local counters once per
// cycle (§6/C12). Rebuild runs a Dispatcher with no engine attached, so
// this is a no-op there.
func (d *Dispatcher) logMetrics() {
	if d.engine == nil {
		return
	}
	m := d.engine.Metrics().Snapshot()
	d.cfg.Logger.Info("diff engine metrics",
		"runs", m.Runs,
		"history_emitted", m.HistoryEmitted,
		"total_progress", m.TotalProgress,
		"total_regress", m.TotalRegress,
	)
}

func (d *Dispatcher) jitteredInterval() time.Duration {
	base := d.cfg.PollInterval
	jitter := time.Duration(rand.Int63n(int64(base) / 5)) // up to 20% jitter
	return base + jitter
}

// cycle runs one iteration of project_sync followed by one poll_one_tile,
// per §4.8.
func (d *Dispatcher) cycle(ctx context.Context) error {
	d.cfg.Logger.Debug("syncing project directory")
	if err := d.ProjectSync(ctx); err != nil {
		return err
	}

	d.cfg.Logger.Debug("polling next tile")
	if err := d.PollOneTile(ctx); err != nil {
		return err
	}
	return nil
}

// --- project_sync -------------------------------------------------------

type coords struct{ tx, ty, px, py int }

func parseProjectFilename(name string) (coords, bool) {
	m := projectFilePattern.FindStringSubmatch(name)
	if m == nil {
		return coords{}, false
	}
	vals := make([]int, 4)
	for i, s := range m[1:] {
		n, err := strconv.Atoi(s)
		if err != nil {
			return coords{}, false
		}
		vals[i] = n
	}
	return coords{tx: vals[0], ty: vals[1], px: vals[2], py: vals[3]}, true
}

// ProjectSync lists ProjectDir, registering added/modified project files
// with the Store and retiring removed ones, per §4.8 step 1.
func (d *Dispatcher) ProjectSync(ctx context.Context) error {
	if err := os.MkdirAll(d.cfg.ProjectDir, 0o755); err != nil {
		return fmt.Errorf("dispatcher: create project dir: %w", err)
	}

	entries, err := os.ReadDir(d.cfg.ProjectDir)
	if err != nil {
		return fmt.Errorf("dispatcher: read project dir: %w", err)
	}

	active, err := d.store.ListActiveProjects()
	if err != nil {
		return err
	}
	byPath := make(map[string]store.Project, len(active))
	for _, p := range active {
		byPath[p.Path] = p
	}

	seen := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(d.cfg.ProjectDir, entry.Name())
		if _, ok := parseProjectFilename(entry.Name()); !ok {
			continue
		}
		seen[path] = true

		info, err := entry.Info()
		if err != nil {
			d.cfg.Logger.Warn("stat project file failed", "path", path, "err", err)
			continue
		}
		mtime := float64(info.ModTime().UnixNano()) / 1e9

		existing, known := byPath[path]
		if known && existing.Mtime == mtime {
			continue
		}

		existingID := 0
		if known {
			existingID = existing.ID
		}
		if err := d.loadProject(path, mtime, existingID); err != nil {
			d.cfg.Logger.Warn("failed to load project", "path", path, "err", err)
		}
	}

	for _, p := range active {
		if seen[p.Path] {
			continue
		}
		if err := d.forgetProject(p.ID); err != nil {
			return err
		}
		d.cfg.Logger.Info("project file removed", "path", p.Path)
	}

	return nil
}

func (d *Dispatcher) forgetProject(projectID int) error {
	if err := d.store.UnlinkProjectTiles(projectID); err != nil {
		return err
	}
	return d.store.RetireProject(projectID)
}

// loadProject validates and registers (or re-registers) a single project
// file, following wwpppp/projects.py: Project.try_open. existingID is the
// id of the active project currently on file for this path, or 0 if
// none — it is retired before the replacement row is created.
func (d *Dispatcher) loadProject(path string, mtime float64, existingID int) error {
	unlock := d.projectLocks.lock(pathLockKey(path))
	defer unlock()

	c, ok := parseProjectFilename(filepath.Base(path))
	if !ok {
		return nil
	}

	img, err := palette.OpenFile(path)
	if err != nil {
		var notInPalette *palette.ColorNotInPalette
		if errors.As(err, &notInPalette) {
			return d.reject(path, "color not in palette")
		}
		return d.reject(path, fmt.Sprintf("invalid image: %v", err))
	}

	point, err := geometry.PointFrom4(c.tx, c.ty, c.px, c.py)
	if err != nil {
		return d.reject(path, err.Error())
	}
	bounds := img.Bounds()
	rect := geometry.RectFromPointSize(point, geometry.Size{W: bounds.Dx(), H: bounds.Dy()})
	if !rect.InCanvas() {
		return d.reject(path, ErrRectangleOutOfBounds.Error())
	}

	if existingID != 0 {
		if err := d.forgetProject(existingID); err != nil {
			return err
		}
	}

	p := &store.Project{
		Name:      filepath.Base(path),
		Path:      path,
		Rect:      rect,
		Mtime:     mtime,
		FirstSeen: time.Now().Unix(),
	}
	id, err := d.store.CreateProject(p)
	if err != nil {
		return err
	}
	p.ID = id

	for _, tile := range rect.Tiles() {
		tileRow, err := d.store.UpsertTile(tile.X, tile.Y)
		if err != nil {
			return err
		}
		if err := d.store.LinkTileProject(tileRow.ID, id); err != nil {
			return err
		}
	}

	d.cfg.Logger.Info("loaded project", "path", path, "rect", rect)
	return nil
}

// reject moves an invalid project file to RejectedDir, per §6/§7.
func (d *Dispatcher) reject(path, reason string) error {
	d.cfg.Logger.Warn("rejecting project file", "path", path, "reason", reason)
	if err := os.MkdirAll(d.cfg.RejectedDir, 0o755); err != nil {
		return fmt.Errorf("dispatcher: create rejected dir: %w", err)
	}
	dest := filepath.Join(d.cfg.RejectedDir, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		return fmt.Errorf("dispatcher: move rejected project: %w", err)
	}
	return nil
}

func pathLockKey(path string) int {
	h := 0
	for _, r := range path {
		h = h*31 + int(r)
	}
	return h
}

// --- poll_one_tile -------------------------------------------------------

// PollOneTile asks the Scheduler for the next tile, runs Ingest against it,
// and on a detected change runs the Diff Engine for every project
// overlapping that tile, per §4.8 step 2.
func (d *Dispatcher) PollOneTile(ctx context.Context) error {
	tileRow, err := d.scheduler.SelectNextTile(ctx)
	if err != nil {
		return err
	}
	if tileRow == nil {
		return nil
	}

	unlock := d.tileLocks.lock(tileRow.ID)
	defer unlock()

	geomTile := tileRow.GeometryTile()
	outcome, etag, err := d.fetcher.FetchTile(ctx, geomTile)
	if err != nil {
		return err
	}

	now := time.Now().Unix()
	switch outcome {
	case ingest.Unavailable:
		return nil
	case ingest.Changed:
		if err := d.store.MarkChecked(tileRow.ID, now, true, etag); err != nil {
			return err
		}
	case ingest.Unchanged:
		if err := d.store.MarkChecked(tileRow.ID, now, false, etag); err != nil {
			return err
		}
		return nil
	}

	projects, err := d.store.ProjectsOverlappingTile(tileRow.ID)
	if err != nil {
		return err
	}
	for i := range projects {
		if err := d.runDiff(ctx, &projects[i], &geomTile); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) runDiff(ctx context.Context, p *store.Project, trigger *geometry.Tile) error {
	unlock := d.projectLocks.lock(p.ID)
	defer unlock()

	_, err := d.engine.Run(ctx, p, trigger)
	return err
}
