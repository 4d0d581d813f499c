package store

import (
	"github.com/paulmach/orb"

	"github.com/wegman-software/osm2voxel-go/internal/geo"
)

// WaysInTile returns the ids of ways touching the tile, sorted ascending.
// When typeFilter is non-empty only ways indexed under that type are
// considered; an unknown type yields no ways.
//
// A way is accepted when one of its resolved points lies strictly inside the
// tile, or else when its polyline intersects the tile border. A way that
// encloses the tile without a vertex inside or a border crossing is not
// returned.
func (s *Store) WaysInTile(tile geo.Tile, typeFilter string) []int64 {
	border := tile.Border()

	candidates := s.wayIDs
	if typeFilter != "" {
		candidates = s.byType[typeFilter]
	}

	var ids []int64
	points := make([]geo.Point, 0, 64)
	for _, id := range candidates {
		way, ok := s.ways[id]
		if !ok {
			continue
		}

		points = points[:0]
		for _, nid := range way.NodeIDs {
			if n, ok := s.nodes.Get(nid); ok {
				points = append(points, n.Point)
			}
		}

		if anyInside(tile, points) || crossesBorder(border, points) {
			ids = append(ids, id)
		}
	}
	return ids
}

func anyInside(tile geo.Tile, points []geo.Point) bool {
	for _, p := range points {
		if tile.ContainsStrict(p) {
			return true
		}
	}
	return false
}

// crossesBorder reports whether any segment of the polyline touches any
// segment of the border ring. A polyline needs at least two points.
func crossesBorder(border orb.LineString, points []geo.Point) bool {
	for i := 1; i < len(points); i++ {
		a, b := points[i-1].Orb(), points[i].Orb()
		for j := 1; j < len(border); j++ {
			if segmentsIntersect(a, b, border[j-1], border[j]) {
				return true
			}
		}
	}
	return false
}

// segmentsIntersect reports whether closed segments p1p2 and q1q2 share a point,
// including endpoint contact and collinear overlap.
func segmentsIntersect(p1, p2, q1, q2 orb.Point) bool {
	d1 := orientation(q1, q2, p1)
	d2 := orientation(q1, q2, p2)
	d3 := orientation(p1, p2, q1)
	d4 := orientation(p1, p2, q2)

	if d1*d2 < 0 && d3*d4 < 0 {
		return true
	}

	switch {
	case d1 == 0 && onSegment(q1, q2, p1):
		return true
	case d2 == 0 && onSegment(q1, q2, p2):
		return true
	case d3 == 0 && onSegment(p1, p2, q1):
		return true
	case d4 == 0 && onSegment(p1, p2, q2):
		return true
	}
	return false
}

// orientation returns the sign of the cross product (b-a) x (c-a)
func orientation(a, b, c orb.Point) int {
	v := (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// onSegment reports whether c, known to be collinear with ab, lies within ab's bounds
func onSegment(a, b, c orb.Point) bool {
	return min(a[0], b[0]) <= c[0] && c[0] <= max(a[0], b[0]) &&
		min(a[1], b[1]) <= c[1] && c[1] <= max(a[1], b[1])
}
