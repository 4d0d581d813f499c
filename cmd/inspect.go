package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/wegman-software/osm2voxel-go/internal/config"
	"github.com/wegman-software/osm2voxel-go/internal/pipeline"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [input.osm.pbf]",
	Short: "Show what generate would produce without writing anything",
	Long: `Read the input exactly as generate does and print node and way counts,
ways per type and the region grid the data extent is split into.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) {
	if len(args) == 1 {
		cfg.InputFile = args[0]
	}
	if err := cfg.Validate(); err != nil {
		exitWithError("invalid configuration", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := inspect(ctx, cmd.OutOrStdout())
	stop()
	if err != nil {
		exitWithError("inspect failed", err)
	}
}

// inspect prints the store summary and region grid for the configured input
func inspect(ctx context.Context, out io.Writer) error {
	st, err := loadStyle()
	if err != nil {
		return fmt.Errorf("failed to load style: %w", err)
	}
	s, err := openStore(ctx, st)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	defer s.Close()

	grid, err := pipeline.Partition(s.Bounds(), config.RegionPixels)
	if err != nil {
		return fmt.Errorf("failed to partition: %w", err)
	}

	stats := s.Stats()
	fmt.Fprintf(out, "Input:   %s\n", inputName())
	fmt.Fprintf(out, "Zoom:    %d\n", s.Zoom())
	fmt.Fprintf(out, "Nodes:   %d\n", stats.Nodes)
	fmt.Fprintf(out, "Ways:    %d\n", stats.Ways)

	types := make([]string, 0, len(stats.WaysByType))
	for t := range stats.WaysByType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(out, "  %-12s %d\n", t, stats.WaysByType[t])
	}

	if b := s.Bounds(); !b.Empty() {
		fmt.Fprintf(out, "Extent:  (%.1f, %.1f) - (%.1f, %.1f) px\n", b.Min.X, b.Min.Y, b.Max.X, b.Max.Y)
	}
	fmt.Fprintf(out, "Grid:    %s\n", grid)
	fmt.Fprintf(out, "Regions: %d (%d chunks)\n", grid.Regions(), grid.TotalChunks())
	return nil
}
