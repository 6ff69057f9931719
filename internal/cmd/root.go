// Package cmd wires the wplace-monitor cobra commands together: layered
// configuration (flags > env > YAML > defaults) and slog logging, in the
// shape of the teacher's internal/cmd/root.go, generalized from a map
// renderer's flags to a tile monitor's.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wplace-monitor/wplace-monitor/internal/ingest"
)

var cfgFile string
var logger *slog.Logger

var rootCmd = &cobra.Command{
	Use:   "wplace-monitor",
	Short: "Tracks project progress against the wplace.live canvas",
	Long: `wplace-monitor polls the wplace.live tile canvas, detects which tiles have
changed, and compares tracked "project" images against the live canvas to
report progress and regression for each one.`,
}

func Execute() {
	if logger == nil {
		initLogging() // fallback in case cobra init didn't fire
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initLogging)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "./data", "Root directory for persistent state (db, cache, snapshots)")
	rootCmd.PersistentFlags().String("cache-dir", "", "Tile cache directory (default: {data-dir}/tiles)")
	rootCmd.PersistentFlags().String("project-dir", "./projects", "Directory scanned for project image files")
	rootCmd.PersistentFlags().String("db-path", "", "SQLite database path (default: {data-dir}/monitor.sqlite)")
	rootCmd.PersistentFlags().String("canvas-base-url", "https://backend.wplace.live", "Canvas tile server root")
	rootCmd.PersistentFlags().Int("min-hottest-size", 5, "Minimum size of the coldest scheduler queue")
	rootCmd.PersistentFlags().Duration("fetch-timeout", ingest.DefaultFetchTimeout, "HTTP timeout per tile fetch (0 or less uses the default)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	bindFlags := []string{
		"data-dir", "cache-dir", "project-dir", "db-path", "canvas-base-url",
		"min-hottest-size", "fetch-timeout", "log-level",
	}
	for _, name := range bindFlags {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", name, err))
		}
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("WPLACEMONITOR")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if logger != nil {
			logger.Debug("using config file", "path", viper.ConfigFileUsed())
		}
	}
}

func initLogging() {
	levelStr := strings.ToLower(viper.GetString("log-level"))
	level := slog.LevelInfo
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error", "err":
		level = slog.LevelError
	default:
		fmt.Fprintf(os.Stderr, "Unknown log level %q, defaulting to info\n", levelStr)
		level = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// dataPath joins a relative default onto --data-dir unless an explicit
// override was supplied.
func dataPath(override, defaultName string) string {
	if override != "" {
		return override
	}
	return filepath.Join(viper.GetString("data-dir"), defaultName)
}
