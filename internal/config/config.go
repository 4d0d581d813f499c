package config

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// RegionPixels is the edge length of one region tile in pixels; one pixel
// becomes one block column, so a region is 32x32 chunks of 16 blocks
const RegionPixels = 512

// BBox represents a geographic bounding box
type BBox struct {
	MinLon, MinLat, MaxLon, MaxLat float64
	IsSet                          bool
}

// Contains checks if a point is within the bounding box
func (b *BBox) Contains(lat, lon float64) bool {
	if b == nil || !b.IsSet {
		return true
	}
	return lon >= b.MinLon && lon <= b.MaxLon && lat >= b.MinLat && lat <= b.MaxLat
}

// String formats the box the way ParseBBox reads it
func (b *BBox) String() string {
	if b == nil || !b.IsSet {
		return ""
	}
	return fmt.Sprintf("%g,%g,%g,%g", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
}

// ParseBBox parses a bbox string in format "minlon,minlat,maxlon,maxlat"
func ParseBBox(s string) (*BBox, error) {
	if s == "" {
		return &BBox{IsSet: false}, nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox must have 4 values: minlon,minlat,maxlon,maxlat")
	}

	var coords [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid bbox coordinate %q: %w", p, err)
		}
		coords[i] = v
	}

	bbox := &BBox{
		MinLon: coords[0],
		MinLat: coords[1],
		MaxLon: coords[2],
		MaxLat: coords[3],
		IsSet:  true,
	}

	if bbox.MinLon > bbox.MaxLon {
		return nil, fmt.Errorf("minlon (%f) must be <= maxlon (%f)", bbox.MinLon, bbox.MaxLon)
	}
	if bbox.MinLat > bbox.MaxLat {
		return nil, fmt.Errorf("minlat (%f) must be <= maxlat (%f)", bbox.MinLat, bbox.MaxLat)
	}

	return bbox, nil
}

// Config holds the global configuration for a conversion run
type Config struct {
	// Input settings
	InputFile string
	BBox      *BBox // Geographic bounding box filter
	FromDB    bool  // Read nodes and ways from slim middle tables instead of a file

	// Rendering settings
	Zoom      int     // Projection zoom; one pixel per block at this zoom
	LineWidth float64 // Stroke width of line classes in pixels
	StyleFile string  // Path to style YAML (classes, colors, materials)
	StyleLua  string  // Optional Lua script classifying ways by tags

	// Output settings
	OutputDir        string
	SectionY         int // Vertical section index the slab is written to
	CompressionLevel int // zlib level for chunk payloads, -1 = default
	ReportFile       string

	// S3-compatible output (used when S3Bucket is set)
	S3Endpoint  string
	S3Bucket    string
	S3Prefix    string
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool

	// Database settings (--from-db)
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSchema   string

	// Processing settings
	Workers           int
	ProgressBuffer    int           // Capacity of the progress channel
	WriteRetries      int           // Extra attempts per region write
	WriteBackoff      time.Duration // Delay before the first retry, doubled each time
	FlatNodesFile     string        // Path to flat nodes file (memory-mapped node table)
	FlatNodesCapacity int64         // Largest node id + 1 the flat nodes file can hold

	// Logging and metrics
	Verbose          bool
	Quiet            bool
	LogFile          string        // Path to log file (empty = no file logging)
	MetricsInterval  time.Duration // Interval for system metrics logging, 0 = off
	MetricsAddr      string        // Address for the Prometheus endpoint, empty = off
	ProgressInterval time.Duration
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Zoom:              17,
		LineWidth:         3,
		OutputDir:         "./world",
		SectionY:          4,
		CompressionLevel:  -1,
		DBHost:            "localhost",
		DBPort:            5432,
		DBName:            "osm",
		DBUser:            "postgres",
		DBSchema:          "public",
		Workers:           runtime.NumCPU(),
		ProgressBuffer:    64,
		WriteBackoff:      500 * time.Millisecond,
		FlatNodesCapacity: 16_000_000_000,
		MetricsInterval:   30 * time.Second,
		ProgressInterval:  5 * time.Second,
	}
}

// ConnectionString returns a PostgreSQL connection string
func (c *Config) ConnectionString() string {
	connStr := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBName, c.DBUser,
	)
	if c.DBPassword != "" {
		connStr += fmt.Sprintf(" password=%s", c.DBPassword)
	}
	if c.DBSchema != "" && c.DBSchema != "public" {
		connStr += fmt.Sprintf(" search_path=%s", c.DBSchema)
	}
	return connStr
}

// UseS3 reports whether regions go to S3-compatible storage
func (c *Config) UseS3() bool {
	return c.S3Bucket != ""
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.InputFile == "" && !c.FromDB {
		return fmt.Errorf("input file is required")
	}
	if c.InputFile != "" && c.FromDB {
		return fmt.Errorf("input file and --from-db are mutually exclusive")
	}
	if c.Zoom < 0 || c.Zoom > 30 {
		return fmt.Errorf("zoom must be between 0 and 30, got %d", c.Zoom)
	}
	if c.LineWidth <= 0 {
		return fmt.Errorf("line width must be positive")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.ProgressBuffer < 1 {
		return fmt.Errorf("progress buffer must be at least 1")
	}
	if c.WriteRetries < 0 {
		return fmt.Errorf("write retries must not be negative")
	}
	if c.SectionY < 0 || c.SectionY > 15 {
		return fmt.Errorf("section Y must be between 0 and 15, got %d", c.SectionY)
	}
	if c.CompressionLevel < -1 || c.CompressionLevel > 9 {
		return fmt.Errorf("compression level must be between -1 and 9")
	}
	if c.UseS3() && c.S3Endpoint == "" {
		return fmt.Errorf("S3 endpoint is required when a bucket is set")
	}
	if c.FlatNodesFile != "" && c.FlatNodesCapacity < 1 {
		return fmt.Errorf("flat nodes capacity must be positive")
	}
	return nil
}
