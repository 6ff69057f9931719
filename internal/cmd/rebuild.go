package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wplace-monitor/wplace-monitor/internal/dispatcher"
	"github.com/wplace-monitor/wplace-monitor/internal/ingest"
	"github.com/wplace-monitor/wplace-monitor/internal/worker"
)

// rebuildCmd is the one-shot "reconstruct Store from the filesystem" tool
// of §6/§4.8. It is deliberately thin: project_sync already knows how to
// (re)derive Tile/Project/TileProject rows from the project directory, so
// rebuild's only added work is re-ingesting every known tile's cache file
// through a bounded worker pool, grounded on the teacher's
// internal/worker/pool.go.
var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Reconstruct the database and tile cache from the project directory",
	RunE:  runRebuild,
}

func init() {
	rootCmd.AddCommand(rebuildCmd)

	rebuildCmd.Flags().Int("workers", 8, "Number of concurrent tile fetches")
	rebuildCmd.Flags().Bool("progress", true, "Show a progress bar while re-ingesting tiles")
	for _, name := range []string{"workers", "progress"} {
		if err := viper.BindPFlag(name, rebuildCmd.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", name, err))
		}
	}
}

func runRebuild(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	s, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	cacheDir := dataPath(viper.GetString("cache-dir"), "tiles")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received interrupt signal, stopping rebuild")
		cancel()
	}()

	// Step 1: rebuild Tile/Project/TileProject rows from the project
	// directory, the same project_sync used by the monitor loop (§4.8).
	d := dispatcher.New(s, nil, nil, nil, dispatcher.Config{
		ProjectDir: viper.GetString("project-dir"),
		Logger:     logger,
	})
	logger.Info("rebuilding projects from filesystem", "project_dir", viper.GetString("project-dir"))
	if err := d.ProjectSync(ctx); err != nil {
		return fmt.Errorf("rebuild: project sync: %w", err)
	}

	// Step 2: re-ingest the cache file for every tile now known to the
	// Store, fanned out across a bounded worker pool.
	tiles, err := s.AllActiveTiles()
	if err != nil {
		return fmt.Errorf("rebuild: list tiles: %w", err)
	}
	logger.Info("re-ingesting tile cache", "tile_count", len(tiles))

	fetchTimeout := viper.GetDuration("fetch-timeout")
	if fetchTimeout <= 0 {
		fetchTimeout = ingest.DefaultFetchTimeout
	}
	fetcher := ingest.New(ingest.Config{
		BaseURL:    viper.GetString("canvas-base-url"),
		CacheDir:   cacheDir,
		HTTPClient: &http.Client{Timeout: fetchTimeout},
		Logger:     logger,
	})

	tasks := make([]worker.Task, len(tiles))
	for i, t := range tiles {
		tile := t
		tasks[i] = worker.Task{
			ID: tile.GeometryTile().String(),
			Fn: func(ctx context.Context) error {
				outcome, etag, err := fetcher.FetchTile(ctx, tile.GeometryTile())
				if err != nil {
					return err
				}
				now := time.Now().Unix()
				switch outcome {
				case ingest.Changed:
					return s.MarkChecked(tile.ID, now, true, etag)
				case ingest.Unchanged:
					return s.MarkChecked(tile.ID, now, false, etag)
				default:
					return nil
				}
			},
		}
	}

	progress := worker.NewProgress(len(tasks), viper.GetBool("progress"))
	pool := worker.New(worker.Config{
		Workers:    viper.GetInt("workers"),
		OnProgress: progress.Callback(),
	})
	results := pool.Run(ctx, tasks)
	progress.Done()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			logger.Warn("rebuild: tile re-ingest failed", "tile", r.ID, "err", r.Err)
		}
	}

	logger.Info("rebuild complete", "tiles", len(tasks), "failed", failed)
	if failed > 0 {
		return fmt.Errorf("rebuild: %d/%d tiles failed to re-ingest", failed, len(tasks))
	}
	return nil
}
