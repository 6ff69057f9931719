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

	"github.com/wplace-monitor/wplace-monitor/internal/diff"
	"github.com/wplace-monitor/wplace-monitor/internal/dispatcher"
	"github.com/wplace-monitor/wplace-monitor/internal/ingest"
	"github.com/wplace-monitor/wplace-monitor/internal/scheduler"
	"github.com/wplace-monitor/wplace-monitor/internal/stitch"
	"github.com/wplace-monitor/wplace-monitor/internal/store"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the monitor loop: sync projects, poll tiles, diff progress",
	RunE:  runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().Duration("poll-interval", dispatcher.DefaultPollInterval, "Base interval between poll cycles")
	if err := viper.BindPFlag("poll-interval", monitorCmd.Flags().Lookup("poll-interval")); err != nil {
		panic(fmt.Sprintf("failed to bind flag poll-interval: %v", err))
	}
}

func openStore() (*store.Store, error) {
	dbPath := dataPath(viper.GetString("db-path"), "monitor.sqlite")
	return store.Open(dbPath)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	s, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	cacheDir := dataPath(viper.GetString("cache-dir"), "tiles")
	snapshotDir := dataPath("", "snapshots")

	qs := scheduler.New(s, viper.GetInt("min-hottest-size"))
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
	engine := diff.New(s, stitch.New(cacheDir), diff.Config{SnapshotDir: snapshotDir, Logger: logger})

	d := dispatcher.New(s, qs, fetcher, engine, dispatcher.Config{
		ProjectDir:   viper.GetString("project-dir"),
		PollInterval: viper.GetDuration("poll-interval"),
		Logger:       logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received interrupt signal, shutting down")
		cancel()
	}()

	logger.Info("monitor starting",
		"project_dir", viper.GetString("project-dir"),
		"cache_dir", cacheDir,
		"poll_interval", viper.GetDuration("poll-interval").String(),
	)

	start := time.Now()
	if err := d.Run(ctx); err != nil {
		return fmt.Errorf("monitor loop: %w", err)
	}
	logger.Info("monitor stopped", "ran_for", time.Since(start).Round(time.Second))
	return nil
}
