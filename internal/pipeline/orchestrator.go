package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wegman-software/osm2voxel-go/internal/anvil"
	"github.com/wegman-software/osm2voxel-go/internal/logger"
	"github.com/wegman-software/osm2voxel-go/internal/metrics"
	"github.com/wegman-software/osm2voxel-go/internal/quantize"
	"github.com/wegman-software/osm2voxel-go/internal/raster"
	"github.com/wegman-software/osm2voxel-go/internal/render"
	"github.com/wegman-software/osm2voxel-go/internal/storage"
	"github.com/wegman-software/osm2voxel-go/internal/store"
	"github.com/wegman-software/osm2voxel-go/internal/style"
	"github.com/wegman-software/osm2voxel-go/internal/voxel"
)

// Stages a region can fail in
const (
	StageStart  = "start"
	StageRender = "render"
	StageEncode = "encode"
	StageWrite  = "write"
)

// paletteSize matches the 16-entry palette the game writes for small sections
const paletteSize = 16

// Options tunes a run
type Options struct {
	Workers          int
	ProgressBuffer   int
	RegionPixels     int
	LineWidth        float64
	SectionY         int
	CompressionLevel int
	ProgressInterval time.Duration
	// NewEngine returns a rasterizer for one region; nil uses raster.NewVectorEngine
	NewEngine func() raster.Engine
}

// Progress is one increment of encoded chunks reported by a region task
type Progress struct {
	RX, RY int
	Chunks int
}

// RegionError records where and why a region failed
type RegionError struct {
	RX, RY int
	Stage  string
	Err    error
}

func (e *RegionError) Error() string {
	return fmt.Sprintf("region %d,%d failed at %s: %v", e.RX, e.RY, e.Stage, e.Err)
}

func (e *RegionError) Unwrap() error {
	return e.Err
}

// RegionResult is the outcome of one region task
type RegionResult struct {
	RX, RY   int
	Chunks   int
	Bytes    int
	Areas    int
	Lines    int
	Duration time.Duration
	Err      *RegionError
}

// Result summarizes a run
type Result struct {
	Grid    Grid
	Regions []RegionResult // row-major: index rx + ry*CountX
	Chunks  int64          // total reported by the progress aggregator
	Elapsed time.Duration
}

// Failed returns the failed regions in row-major order
func (r *Result) Failed() []RegionResult {
	var failed []RegionResult
	for _, reg := range r.Regions {
		if reg.Err != nil {
			failed = append(failed, reg)
		}
	}
	return failed
}

// Err combines every region failure, nil when all regions succeeded
func (r *Result) Err() error {
	var err error
	for _, reg := range r.Regions {
		if reg.Err != nil {
			err = multierr.Append(err, reg.Err)
		}
	}
	return err
}

// Orchestrator renders, encodes and writes every region of a store
type Orchestrator struct {
	store   *store.Store
	style   *style.Config
	sink    storage.Sink
	opts    Options
	grid    Grid
	quant   *quantize.Table
	encoder *voxel.Encoder
}

// NewOrchestrator prepares a run over the whole extent of s
func NewOrchestrator(s *store.Store, st *style.Config, sink storage.Sink, opts Options) (*Orchestrator, error) {
	if opts.Workers < 1 {
		return nil, fmt.Errorf("workers must be at least 1")
	}
	if opts.ProgressBuffer < 1 {
		return nil, fmt.Errorf("progress buffer must be at least 1")
	}
	if opts.RegionPixels <= 0 {
		opts.RegionPixels = anvil.RegionChunks * voxel.ChunkSize
	}
	if opts.RegionPixels%voxel.ChunkSize != 0 || opts.RegionPixels/voxel.ChunkSize != anvil.RegionChunks {
		return nil, fmt.Errorf("region size must be %d pixels, got %d", anvil.RegionChunks*voxel.ChunkSize, opts.RegionPixels)
	}
	if opts.LineWidth <= 0 {
		opts.LineWidth = render.DefaultLineWidth
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = 5 * time.Second
	}
	if opts.NewEngine == nil {
		opts.NewEngine = func() raster.Engine { return raster.NewVectorEngine() }
	}

	grid, err := Partition(s.Bounds(), opts.RegionPixels)
	if err != nil {
		return nil, err
	}
	quant, err := quantize.NewTable(st)
	if err != nil {
		return nil, fmt.Errorf("failed to build color table: %w", err)
	}
	m := st.Materials
	encoder, err := voxel.NewEncoder([]string{m.Background, m.Area, m.Line, m.Fallback}, paletteSize, opts.SectionY)
	if err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}
	// fail fast on style errors instead of once per region
	if _, err := render.NewRenderer(opts.NewEngine(), st, opts.LineWidth); err != nil {
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	return &Orchestrator{
		store:   s,
		style:   st,
		sink:    sink,
		opts:    opts,
		grid:    grid,
		quant:   quant,
		encoder: encoder,
	}, nil
}

// Grid returns the region partition the run covers
func (o *Orchestrator) Grid() Grid {
	return o.grid
}

// Run processes every region with at most Workers in flight and returns
// once all of them have settled. Region failures do not stop other regions;
// they are reported through Result.Err.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	log := logger.Get()
	start := time.Now()
	result := &Result{
		Grid:    o.grid,
		Regions: make([]RegionResult, o.grid.Regions()),
	}
	if o.grid.Regions() == 0 {
		log.Warn("No nodes in store, nothing to generate")
		return result, nil
	}

	log.Info("Generating regions",
		zap.Stringer("grid", o.grid),
		zap.Int64("chunks", o.grid.TotalChunks()),
		zap.Int("workers", o.opts.Workers))

	metrics.Run.Begin(o.grid.TotalChunks(), int64(o.grid.Regions()))
	events := make(chan Progress, o.opts.ProgressBuffer)
	var aggWG sync.WaitGroup
	aggWG.Add(1)
	go func() {
		defer aggWG.Done()
		result.Chunks = o.aggregate(events, o.grid.TotalChunks())
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Workers)
	for ry := 0; ry < o.grid.CountY; ry++ {
		for rx := 0; rx < o.grid.CountX; rx++ {
			g.Go(func() error {
				result.Regions[rx+ry*o.grid.CountX] = o.processRegion(gctx, rx, ry, events)
				return nil
			})
		}
	}
	_ = g.Wait()
	close(events)
	aggWG.Wait()

	result.Elapsed = time.Since(start)
	failed := len(result.Failed())
	log.Info("Generation complete",
		zap.Int("regions", o.grid.Regions()),
		zap.Int("failed", failed),
		zap.Int64("chunks", result.Chunks),
		zap.Duration("duration", result.Elapsed.Round(time.Millisecond)))
	return result, nil
}

// processRegion runs render, quantize, encode and write for one region
func (o *Orchestrator) processRegion(ctx context.Context, rx, ry int, events chan<- Progress) RegionResult {
	log := logger.Get()
	start := time.Now()
	res := RegionResult{RX: rx, RY: ry}

	fail := func(stage string, err error) RegionResult {
		res.Err = &RegionError{RX: rx, RY: ry, Stage: stage, Err: err}
		res.Duration = time.Since(start)
		metrics.Run.FinishRegion(false)
		log.Error("Region failed",
			zap.Int("rx", rx),
			zap.Int("ry", ry),
			zap.String("stage", stage),
			zap.Error(err))
		return res
	}

	if err := ctx.Err(); err != nil {
		return fail(StageStart, err)
	}

	stageStart := time.Now()
	renderer, err := render.NewRenderer(o.opts.NewEngine(), o.style, o.opts.LineWidth)
	if err != nil {
		return fail(StageRender, err)
	}
	canvas, stats, err := renderer.Render(o.store, o.grid.Tile(rx, ry), o.grid.Size)
	if err != nil {
		return fail(StageRender, err)
	}
	res.Areas, res.Lines = stats.Areas, stats.Lines
	cells := o.quant.QuantizeCanvas(canvas)
	metrics.StageDuration.WithLabelValues(StageRender).Observe(time.Since(stageStart).Seconds())

	stageStart = time.Now()
	region := anvil.NewRegionLevel(o.opts.CompressionLevel)
	for cz := 0; cz < anvil.RegionChunks; cz++ {
		for cx := 0; cx < anvil.RegionChunks; cx++ {
			chunkX := int32(rx*anvil.RegionChunks + cx)
			chunkZ := int32(ry*anvil.RegionChunks + cz)
			chunk, err := o.encoder.EncodeChunk(cells, o.grid.Size, cx, cz, chunkX, chunkZ)
			if err != nil {
				return fail(StageEncode, err)
			}
			data, err := chunk.Marshal()
			if err != nil {
				return fail(StageEncode, err)
			}
			if err := region.SetChunk(int(chunkX), int(chunkZ), data); err != nil {
				return fail(StageEncode, err)
			}
		}
		res.Chunks += anvil.RegionChunks
		events <- Progress{RX: rx, RY: ry, Chunks: anvil.RegionChunks}
	}
	metrics.StageDuration.WithLabelValues(StageEncode).Observe(time.Since(stageStart).Seconds())

	stageStart = time.Now()
	data := region.Bytes()
	if err := o.sink.Write(ctx, storage.RegionName(rx, ry), data); err != nil {
		return fail(StageWrite, err)
	}
	metrics.StageDuration.WithLabelValues(StageWrite).Observe(time.Since(stageStart).Seconds())
	metrics.RegionBytes.Observe(float64(len(data)))
	metrics.Run.FinishRegion(true)

	res.Bytes = len(data)
	res.Duration = time.Since(start)
	log.Debug("Region written",
		zap.Int("rx", rx),
		zap.Int("ry", ry),
		zap.Int("areas", res.Areas),
		zap.Int("lines", res.Lines),
		zap.String("size", FormatBytes(int64(res.Bytes))),
		zap.Duration("duration", res.Duration.Round(time.Millisecond)))
	return res
}

// aggregate is the only reader of events. It sums increments until the
// channel is closed, logging progress on a ticker, and returns the total.
func (o *Orchestrator) aggregate(events <-chan Progress, total int64) int64 {
	log := logger.Get()
	tracker := NewProgressTracker(total, "chunks")
	ticker := time.NewTicker(o.opts.ProgressInterval)
	defer ticker.Stop()

	var done int64
	report := func() {
		st := tracker.Calculate(done)
		log.Info("Progress",
			zap.String("chunks", fmt.Sprintf("%d/%d", st.Current, st.Total)),
			zap.String("percent", fmt.Sprintf("%.1f%%", st.Percentage)),
			zap.String("rate", FormatThroughput(st.Throughput)),
			zap.String("eta", FormatETA(st.ETA)))
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				report()
				return done
			}
			done += int64(ev.Chunks)
			metrics.Run.AddChunks(ev.Chunks)
		case <-ticker.C:
			report()
		}
	}
}
