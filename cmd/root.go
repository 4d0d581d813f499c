package cmd

import (
	"os"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/osm2voxel-go/internal/config"
	"github.com/wegman-software/osm2voxel-go/internal/logger"
)

var (
	cfg     = config.DefaultConfig()
	bboxStr string
)

var rootCmd = &cobra.Command{
	Use:   "osm2voxel",
	Short: "Render OpenStreetMap data into Minecraft region files",
	Long: `osm2voxel renders OpenStreetMap ways into a flat Minecraft world.

Ways are projected at a fixed zoom so that one pixel becomes one block,
rasterized per 512x512 region, quantized into a few block materials and
written as Anvil region files (.mca).

Features:
  - Parallel region rendering with bounded progress reporting
  - PBF and OSM XML input, or the slim tables of an osm2pgsql-go import
  - YAML styles and optional Lua way classification
  - Local or S3-compatible output`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.InitWithOptions(logger.Options{
			Debug: cfg.Verbose,
			Quiet: cfg.Quiet,
			File:  cfg.LogFile,
		})

		bbox, err := config.ParseBBox(bboxStr)
		if err != nil {
			return err
		}
		cfg.BBox = bbox
		return nil
	},
}

func Execute() error {
	defer logger.Sync()
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Quiet, "quiet", "q", false, "Only log warnings and errors to the console")
	rootCmd.PersistentFlags().StringVar(&cfg.LogFile, "log-file", "", "Path to log file for persistent logging (JSON format)")
	rootCmd.PersistentFlags().IntVarP(&cfg.Workers, "workers", "j", cfg.Workers, "Number of parallel workers")

	// Input flags shared by generate and inspect
	rootCmd.PersistentFlags().StringVar(&bboxStr, "bbox", "", "Only ingest nodes inside minlon,minlat,maxlon,maxlat")
	rootCmd.PersistentFlags().IntVarP(&cfg.Zoom, "zoom", "z", cfg.Zoom, "Projection zoom level (one pixel per block)")
	rootCmd.PersistentFlags().StringVarP(&cfg.StyleFile, "style", "S", "", "Style YAML with classes, colors and materials")
	rootCmd.PersistentFlags().StringVar(&cfg.StyleLua, "style-lua", "", "Lua script classifying ways (defines osm2voxel.classify_way)")
	rootCmd.PersistentFlags().StringVar(&cfg.FlatNodesFile, "flat-nodes", "", "Store nodes in a memory-mapped file instead of RAM")
	rootCmd.PersistentFlags().Int64Var(&cfg.FlatNodesCapacity, "flat-nodes-capacity", cfg.FlatNodesCapacity, "Largest node id + 1 the flat nodes file can hold")
	rootCmd.PersistentFlags().DurationVar(&cfg.ProgressInterval, "progress-interval", cfg.ProgressInterval, "Interval between progress log lines")

	// Database flags (--from-db reads the slim tables of an osm2pgsql-go import)
	rootCmd.PersistentFlags().BoolVar(&cfg.FromDB, "from-db", false, "Read nodes and ways from PostgreSQL middle tables")
	rootCmd.PersistentFlags().StringVar(&cfg.DBHost, "db-host", cfg.DBHost, "PostgreSQL host")
	rootCmd.PersistentFlags().IntVar(&cfg.DBPort, "db-port", cfg.DBPort, "PostgreSQL port")
	rootCmd.PersistentFlags().StringVarP(&cfg.DBName, "db-name", "d", cfg.DBName, "PostgreSQL database name")
	rootCmd.PersistentFlags().StringVarP(&cfg.DBUser, "db-user", "U", cfg.DBUser, "PostgreSQL user")
	rootCmd.PersistentFlags().StringVarP(&cfg.DBPassword, "db-password", "W", cfg.DBPassword, "PostgreSQL password")
	rootCmd.PersistentFlags().StringVar(&cfg.DBSchema, "db-schema", cfg.DBSchema, "PostgreSQL schema")
}

func exitWithError(msg string, err error) {
	log := logger.Get()
	if err != nil {
		log.Error(msg, zap.Error(err))
	} else {
		log.Error(msg)
	}
	logger.Sync()
	os.Exit(1)
}
