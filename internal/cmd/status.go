package cmd

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wplace-monitor/wplace-monitor/internal/store"
)

// statusCmd prints a snapshot of the current monitor state: scheduler
// queue occupancy and per-project completion, without running a cycle.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print a snapshot of tracked projects and scheduler queue occupancy",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	if err := printQueueSummary(s); err != nil {
		return err
	}
	return printProjectSummary(s)
}

func printQueueSummary(s *store.Store) error {
	n, err := s.NumTemperatureQueues()
	if err != nil {
		return fmt.Errorf("status: queue count: %w", err)
	}

	burning, err := s.TilesInHeat(store.HeatBurning)
	if err != nil {
		return fmt.Errorf("status: burning tiles: %w", err)
	}

	unchecked := 0
	for _, t := range burning {
		if t.LastUpdate == 0 {
			unchecked++
		}
	}

	bold := color.New(color.Bold)
	bold.Println("Scheduler")
	fmt.Printf("  temperature queues: %d\n", n)
	fmt.Printf("  burning tiles:      %d (%d never seen to change)\n", len(burning), unchecked)

	for heat := n; heat >= 1; heat-- {
		tiles, err := s.TilesInHeat(heat)
		if err != nil {
			return fmt.Errorf("status: heat %d tiles: %w", heat, err)
		}
		fmt.Printf("  heat %-4d tiles:    %d\n", heat, len(tiles))
	}
	fmt.Println()
	return nil
}

func printProjectSummary(s *store.Store) error {
	projects, err := s.ListActiveProjects()
	if err != nil {
		return fmt.Errorf("status: list projects: %w", err)
	}

	bold := color.New(color.Bold)
	bold.Printf("Projects (%d active)\n", len(projects))

	ok := color.New(color.FgGreen)
	warn := color.New(color.FgYellow)

	for _, p := range projects {
		pct := p.MaxCompletionPercent
		lastChecked := "never"
		if p.LastCheck > 0 {
			lastChecked = humanize.Time(time.Unix(p.LastCheck, 0))
		}
		line := fmt.Sprintf("  %-30s %6.2f%% done, progress=%s regress=%s, last checked %s",
			p.Name, pct, humanize.Comma(p.TotalProgress), humanize.Comma(p.TotalRegress), lastChecked)
		if p.HasMissingTiles {
			line += " (missing tiles)"
		}
		if pct >= 100 {
			ok.Println(line)
		} else if p.LargestRegressPixels > 0 {
			warn.Println(line)
		} else {
			fmt.Println(line)
		}
	}
	return nil
}
