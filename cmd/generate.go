package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/osm2voxel-go/internal/config"
	"github.com/wegman-software/osm2voxel-go/internal/logger"
	"github.com/wegman-software/osm2voxel-go/internal/metrics"
	"github.com/wegman-software/osm2voxel-go/internal/pipeline"
	"github.com/wegman-software/osm2voxel-go/internal/report"
	"github.com/wegman-software/osm2voxel-go/internal/storage"
)

var generateCmd = &cobra.Command{
	Use:   "generate [input.osm.pbf]",
	Short: "Render OSM data into Minecraft region files",
	Long: `Read an OSM file (or the slim tables of a database with --from-db),
render every 512x512 block region and write one Anvil file per region:

  <output-dir>/region/r.<rx>.<ry>.mca

With --s3-bucket the regions are uploaded instead. The command exits with
status 1 when any region failed, after every region has been attempted.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVarP(&cfg.OutputDir, "output-dir", "o", cfg.OutputDir, "World directory the region folder is written to")
	generateCmd.Flags().Float64Var(&cfg.LineWidth, "line-width", cfg.LineWidth, "Stroke width of line classes in blocks")
	generateCmd.Flags().IntVar(&cfg.SectionY, "section-y", cfg.SectionY, "Vertical section index (0-15) the map slab is placed in")
	generateCmd.Flags().IntVar(&cfg.CompressionLevel, "compression-level", cfg.CompressionLevel, "zlib level for chunk data (-1 = default)")
	generateCmd.Flags().IntVar(&cfg.ProgressBuffer, "progress-buffer", cfg.ProgressBuffer, "Capacity of the progress channel")
	generateCmd.Flags().IntVar(&cfg.WriteRetries, "write-retries", cfg.WriteRetries, "Extra attempts for a failed region write")
	generateCmd.Flags().DurationVar(&cfg.WriteBackoff, "write-backoff", cfg.WriteBackoff, "Delay before the first write retry, doubled each attempt")
	generateCmd.Flags().StringVar(&cfg.ReportFile, "report", "", "Write a per-region Parquet report to this path")

	generateCmd.Flags().StringVar(&cfg.S3Endpoint, "s3-endpoint", "", "S3-compatible endpoint (host:port)")
	generateCmd.Flags().StringVar(&cfg.S3Bucket, "s3-bucket", "", "Upload regions to this bucket instead of the output directory")
	generateCmd.Flags().StringVar(&cfg.S3Prefix, "s3-prefix", "", "Key prefix for uploaded regions")
	generateCmd.Flags().StringVar(&cfg.S3AccessKey, "s3-access-key", os.Getenv("S3_ACCESS_KEY"), "S3 access key (default $S3_ACCESS_KEY)")
	generateCmd.Flags().StringVar(&cfg.S3SecretKey, "s3-secret-key", os.Getenv("S3_SECRET_KEY"), "S3 secret key (default $S3_SECRET_KEY)")
	generateCmd.Flags().BoolVar(&cfg.S3UseSSL, "s3-ssl", true, "Use TLS for the S3 endpoint")

	generateCmd.Flags().DurationVar(&cfg.MetricsInterval, "metrics-interval", cfg.MetricsInterval, "Interval for system metrics logging, 0 disables")
	generateCmd.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
}

func runGenerate(cmd *cobra.Command, args []string) {
	if len(args) == 1 {
		cfg.InputFile = args[0]
	}
	if err := cfg.Validate(); err != nil {
		exitWithError("invalid configuration", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := generate(ctx)
	stop()
	if err != nil {
		exitWithError("generation failed", err)
	}
}

// generate runs one generation with the global configuration. Every
// resource it opens is released before it returns.
func generate(ctx context.Context) error {
	log := logger.Get()

	host := metrics.NewHostCollector(metrics.Run)
	if cfg.MetricsAddr != "" {
		if err := metrics.RegisterHost(host); err != nil {
			return err
		}
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, log); err != nil {
				log.Warn("Metrics server stopped", zap.Error(err))
			}
		}()
	}
	if cfg.MetricsInterval > 0 {
		reportCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go host.Report(reportCtx, cfg.MetricsInterval, log)
	}

	log.Info("Starting generation",
		zap.String("input", inputName()),
		zap.String("output", outputName()),
		zap.Int("zoom", cfg.Zoom),
		zap.Int("workers", cfg.Workers))
	start := time.Now()

	st, err := loadStyle()
	if err != nil {
		return fmt.Errorf("failed to load style: %w", err)
	}
	s, err := openStore(ctx, st)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	defer s.Close()

	sink, err := newSink(ctx)
	if err != nil {
		return fmt.Errorf("failed to open output: %w", err)
	}

	orch, err := pipeline.NewOrchestrator(s, st, sink, pipeline.Options{
		Workers:          cfg.Workers,
		ProgressBuffer:   cfg.ProgressBuffer,
		RegionPixels:     config.RegionPixels,
		LineWidth:        cfg.LineWidth,
		SectionY:         cfg.SectionY,
		CompressionLevel: cfg.CompressionLevel,
		ProgressInterval: cfg.ProgressInterval,
	})
	if err != nil {
		return fmt.Errorf("failed to prepare generation: %w", err)
	}

	res, err := orch.Run(ctx)
	if err != nil {
		return err
	}

	if cfg.ReportFile != "" {
		rows, err := report.WriteResult(cfg.ReportFile, res)
		if err != nil {
			log.Error("Failed to write report", zap.Error(err))
		} else {
			log.Info("Report written", zap.String("path", cfg.ReportFile), zap.Int("regions", rows))
		}
	}

	if failed := res.Failed(); len(failed) > 0 {
		for _, r := range failed {
			log.Error("Region failed",
				zap.Int("rx", r.RX),
				zap.Int("ry", r.RY),
				zap.String("stage", r.Err.Stage),
				zap.Error(r.Err.Err))
		}
		return fmt.Errorf("%d regions failed: %w", len(failed), res.Err())
	}

	log.Info("World generated",
		zap.Stringer("grid", res.Grid),
		zap.Int64("chunks", res.Chunks),
		zap.Duration("duration", time.Since(start).Round(time.Second)))
	return nil
}

// newSink builds the region sink for the configured output
func newSink(ctx context.Context) (storage.Sink, error) {
	var sink storage.Sink
	if cfg.UseS3() {
		ms, err := storage.OpenMinioSink(storage.MinioConfig{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			return nil, err
		}
		if err := ms.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		sink = ms
	} else {
		if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
			return nil, err
		}
		sink = storage.NewFileSink(cfg.OutputDir)
	}
	return storage.NewRetrySink(sink, cfg.WriteRetries, cfg.WriteBackoff), nil
}

func inputName() string {
	if cfg.FromDB {
		return "postgres://" + cfg.DBHost + "/" + cfg.DBName
	}
	return cfg.InputFile
}

func outputName() string {
	if cfg.UseS3() {
		return "s3://" + cfg.S3Bucket + "/" + cfg.S3Prefix
	}
	return cfg.OutputDir
}
