package middle

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/wegman-software/osm2voxel-go/internal/config"
	"github.com/wegman-software/osm2voxel-go/internal/logger"
	"github.com/wegman-software/osm2voxel-go/internal/pbf"
	"github.com/wegman-software/osm2voxel-go/internal/store"
)

// Source reads nodes and ways from the slim middle tables of an
// osm2pgsql-go import
type Source struct {
	pool   *pgxpool.Pool
	schema string
	bbox   *config.BBox
	idx    *pbf.Indexer
}

// Connect opens a connection pool for the configured database
func Connect(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// NewSource creates a source; idx applies the bbox, the filter and the
// classification exactly as file ingestion does
func NewSource(pool *pgxpool.Pool, schema string, bbox *config.BBox, idx *pbf.Indexer) *Source {
	if schema == "" {
		schema = "public"
	}
	return &Source{pool: pool, schema: schema, bbox: bbox, idx: idx}
}

// Load adds every node in the bounding box and then every way to b
func (s *Source) Load(ctx context.Context, b *store.Builder) (*pbf.Stats, error) {
	log := logger.Get()
	start := time.Now()

	log.Info("Reading middle tables", zap.String("schema", s.schema), zap.Stringer("bbox", s.bbox))

	query, args := nodeQuery(s.schema, s.bbox)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	var n RawNode
	_, err = pgx.ForEachRow(rows, []any{&n.ID, &n.Lat, &n.Lon}, func() error {
		return s.idx.AddNode(b, n.ID, UnscaleCoord(n.Lat), UnscaleCoord(n.Lon))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read nodes: %w", err)
	}
	log.Debug("Nodes read", zap.Int64("nodes", s.idx.Stats().Nodes))

	rows, err = s.pool.Query(ctx, wayQuery(s.schema))
	if err != nil {
		return nil, fmt.Errorf("failed to query ways: %w", err)
	}
	var w RawWay
	var tagsJSON []byte
	_, err = pgx.ForEachRow(rows, []any{&w.ID, &w.Nodes, &tagsJSON}, func() error {
		tags, err := parseTags(tagsJSON)
		if err != nil {
			return fmt.Errorf("way %d: %w", w.ID, err)
		}
		return s.idx.AddWay(b, w.ID, w.Nodes, tags)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read ways: %w", err)
	}

	stats := s.idx.Stats()
	stats.Duration = time.Since(start)
	stats.Log("Middle tables read")
	return &stats, nil
}

// nodeQuery selects nodes ordered by id, restricted to the box when set
func nodeQuery(schema string, bbox *config.BBox) (string, []any) {
	q := fmt.Sprintf("SELECT id, lat, lon FROM %s.planet_osm_nodes", pgx.Identifier{schema}.Sanitize())
	if bbox == nil || !bbox.IsSet {
		return q + " ORDER BY id", nil
	}
	q += " WHERE lat BETWEEN $1 AND $2 AND lon BETWEEN $3 AND $4 ORDER BY id"
	return q, []any{
		scaleFloor(bbox.MinLat), scaleCeil(bbox.MaxLat),
		scaleFloor(bbox.MinLon), scaleCeil(bbox.MaxLon),
	}
}

func wayQuery(schema string) string {
	return fmt.Sprintf("SELECT id, nodes, tags FROM %s.planet_osm_ways ORDER BY id", pgx.Identifier{schema}.Sanitize())
}

// scaleFloor and scaleCeil widen the box to whole scaled units so the
// query never drops a node the exact float test would keep
func scaleFloor(v float64) int32 { return int32(math.Floor(v * 1e7)) }
func scaleCeil(v float64) int32  { return int32(math.Ceil(v * 1e7)) }

// parseTags decodes a JSONB tag object; NULL yields no tags
func parseTags(data []byte) (map[string]string, error) {
	if len(data) == 0 {
		return map[string]string{}, nil
	}
	tags := make(map[string]string)
	if err := json.Unmarshal(data, &tags); err != nil {
		return nil, fmt.Errorf("failed to parse tags: %w", err)
	}
	return tags, nil
}
