// Package cluster groups point features into zoom-dependent clusters in
// web mercator space, producing the same feature shape MapLibre's GeoJSON
// cluster source exposes (cluster, cluster_id, point_count).
package cluster

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/quadtree"

	"github.com/samirrijal/geomap/internal/pkg/geospatial"
)

// ErrUnknownCluster is returned for an ID the index did not produce.
var ErrUnknownCluster = errors.New("unknown cluster id")

// Feature property names set on cluster features.
const (
	PropCluster           = "cluster"
	PropClusterID         = "cluster_id"
	PropPointCount        = "point_count"
	PropPointCountAbbrev  = "point_count_abbreviated"
	unprocessed           = math.MaxInt32
	maxSupportedZoomLevel = 30
)

// Options configures an Index. Zero values take the defaults.
type Options struct {
	// Radius is the cluster radius in pixels.
	Radius float64
	// Extent is the tile extent the radius is relative to.
	Extent    float64
	MinZoom   int
	MaxZoom   int
	MinPoints int
}

func (o Options) withDefaults() Options {
	if o.Radius <= 0 {
		o.Radius = 50
	}
	if o.Extent <= 0 {
		o.Extent = 512
	}
	if o.MaxZoom <= 0 {
		o.MaxZoom = 16
	}
	if o.MaxZoom > maxSupportedZoomLevel {
		o.MaxZoom = maxSupportedZoomLevel
	}
	if o.MinZoom < 0 || o.MinZoom > o.MaxZoom {
		o.MinZoom = 0
	}
	if o.MinPoints < 2 {
		o.MinPoints = 2
	}
	return o
}

type node struct {
	x, y      float64
	zoom      int
	index     int // source feature index, -1 for clusters
	parentID  int
	numPoints int
	id        int // cluster id, -1 for leaves
}

func (n *node) Point() orb.Point { return orb.Point{n.x, n.y} }

type level struct {
	nodes []*node
	tree  *quadtree.Quadtree
}

func newLevel(nodes []*node) (*level, error) {
	tree := quadtree.New(orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}})
	for _, n := range nodes {
		if err := tree.Add(n); err != nil {
			return nil, fmt.Errorf("index node: %w", err)
		}
	}
	return &level{nodes: nodes, tree: tree}, nil
}

func (l *level) within(x, y, r float64) []*node {
	found := l.tree.InBound(nil, orb.Bound{
		Min: orb.Point{x - r, y - r},
		Max: orb.Point{x + r, y + r},
	})
	out := make([]*node, 0, len(found))
	r2 := r * r
	for _, p := range found {
		n := p.(*node)
		dx, dy := n.x-x, n.y-y
		if dx*dx+dy*dy <= r2 {
			out = append(out, n)
		}
	}
	return out
}

// Index is an immutable hierarchy of clusters, one level per zoom.
type Index struct {
	opts     Options
	features []*geojson.Feature
	levels   []*level
}

// New clusters the point features of fc.
func New(fc *geojson.FeatureCollection, opts Options) (*Index, error) {
	opts = opts.withDefaults()
	idx := &Index{opts: opts, levels: make([]*level, opts.MaxZoom+2)}

	leaves := make([]*node, 0, len(fc.Features))
	for i, f := range fc.Features {
		p, ok := f.Geometry.(orb.Point)
		if !ok {
			return nil, fmt.Errorf("feature %d: geometry %T is not a point", i, f.Geometry)
		}
		x, y := geospatial.ToUnit(p)
		leaves = append(leaves, &node{
			x: x, y: y,
			zoom:      unprocessed,
			index:     i,
			parentID:  -1,
			numPoints: 1,
			id:        -1,
		})
		idx.features = append(idx.features, f)
	}

	lvl, err := newLevel(leaves)
	if err != nil {
		return nil, err
	}
	idx.levels[opts.MaxZoom+1] = lvl

	nodes := leaves
	for z := opts.MaxZoom; z >= opts.MinZoom; z-- {
		nodes = idx.cluster(nodes, z)
		if idx.levels[z], err = newLevel(nodes); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

func (idx *Index) radiusAt(z int) float64 {
	return idx.opts.Radius / (idx.opts.Extent * math.Pow(2, float64(z)))
}

// cluster merges the nodes of level z+1 into the nodes of level z.
func (idx *Index) cluster(nodes []*node, z int) []*node {
	r := idx.radiusAt(z)
	prev := idx.levels[z+1]
	next := make([]*node, 0, len(nodes))

	for i, p := range nodes {
		if p.zoom <= z {
			continue
		}
		p.zoom = z

		neighbors := prev.within(p.x, p.y, r)
		count := p.numPoints
		for _, nb := range neighbors {
			if nb.zoom > z {
				count += nb.numPoints
			}
		}

		if count > p.numPoints && count >= idx.opts.MinPoints {
			wx := p.x * float64(p.numPoints)
			wy := p.y * float64(p.numPoints)
			id := (i << 5) + (z + 1)
			for _, nb := range neighbors {
				if nb.zoom <= z {
					continue
				}
				nb.zoom = z
				wx += nb.x * float64(nb.numPoints)
				wy += nb.y * float64(nb.numPoints)
				nb.parentID = id
			}
			p.parentID = id
			next = append(next, &node{
				x:         wx / float64(count),
				y:         wy / float64(count),
				zoom:      unprocessed,
				index:     -1,
				parentID:  -1,
				numPoints: count,
				id:        id,
			})
			continue
		}

		cp := *p
		next = append(next, &cp)
		if count > 1 {
			for _, nb := range neighbors {
				if nb.zoom <= z {
					continue
				}
				nb.zoom = z
				cp := *nb
				next = append(next, &cp)
			}
		}
	}
	return next
}

func (idx *Index) limitZoom(z float64) int {
	zi := int(math.Floor(z))
	if zi < idx.opts.MinZoom {
		return idx.opts.MinZoom
	}
	if zi > idx.opts.MaxZoom+1 {
		return idx.opts.MaxZoom + 1
	}
	return zi
}

// Len returns the number of indexed points.
func (idx *Index) Len() int { return len(idx.features) }

// MaxZoom returns the last zoom at which points may still be clustered.
func (idx *Index) MaxZoom() int { return idx.opts.MaxZoom }

// Clusters returns the clusters and unclustered points inside bound at zoom.
func (idx *Index) Clusters(bound orb.Bound, zoom float64) []*geojson.Feature {
	lvl := idx.levels[idx.limitZoom(zoom)]
	minLng := math.Max(-180, bound.Min.Lon())
	maxLng := math.Min(180, bound.Max.Lon())
	x0, y0 := geospatial.ToUnit(orb.Point{minLng, bound.Max.Lat()})
	x1, y1 := geospatial.ToUnit(orb.Point{maxLng, bound.Min.Lat()})

	found := lvl.tree.InBound(nil, orb.Bound{Min: orb.Point{x0, y0}, Max: orb.Point{x1, y1}})
	out := make([]*geojson.Feature, 0, len(found))
	for _, p := range found {
		out = append(out, idx.feature(p.(*node)))
	}
	return out
}

// World returns every cluster and point at zoom.
func (idx *Index) World(zoom float64) []*geojson.Feature {
	return idx.Clusters(orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}}, zoom)
}

// Children returns the features one zoom level below a cluster.
func (idx *Index) Children(clusterID int) ([]*geojson.Feature, error) {
	originID := clusterID >> 5
	originZoom := clusterID & 31
	if originZoom < 1 || originZoom >= len(idx.levels) || idx.levels[originZoom] == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCluster, clusterID)
	}
	lvl := idx.levels[originZoom]
	if originID < 0 || originID >= len(lvl.nodes) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCluster, clusterID)
	}
	origin := lvl.nodes[originID]
	var children []*geojson.Feature
	for _, n := range lvl.within(origin.x, origin.y, idx.radiusAt(originZoom-1)) {
		if n.parentID == clusterID {
			children = append(children, idx.feature(n))
		}
	}
	if len(children) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCluster, clusterID)
	}
	return children, nil
}

// Leaves returns up to limit source features of a cluster, skipping offset.
func (idx *Index) Leaves(clusterID, limit, offset int) ([]*geojson.Feature, error) {
	var out []*geojson.Feature
	skipped := 0
	var walk func(id int) error
	walk = func(id int) error {
		children, err := idx.Children(id)
		if err != nil {
			return err
		}
		for _, c := range children {
			if limit > 0 && len(out) >= limit {
				return nil
			}
			if cid, ok := ClusterID(c); ok {
				if err := walk(cid); err != nil {
					return err
				}
				continue
			}
			if skipped < offset {
				skipped++
				continue
			}
			out = append(out, c)
		}
		return nil
	}
	if err := walk(clusterID); err != nil {
		return nil, err
	}
	return out, nil
}

// ExpansionZoom returns the zoom at which the cluster splits into more
// than one feature.
func (idx *Index) ExpansionZoom(clusterID int) (int, error) {
	z := (clusterID & 31) - 1
	for z <= idx.opts.MaxZoom {
		children, err := idx.Children(clusterID)
		if err != nil {
			return 0, err
		}
		z++
		if len(children) != 1 {
			break
		}
		next, ok := ClusterID(children[0])
		if !ok {
			break
		}
		clusterID = next
	}
	return z, nil
}

func (idx *Index) feature(n *node) *geojson.Feature {
	if n.id < 0 {
		return idx.features[n.index]
	}
	f := geojson.NewFeature(geospatial.FromUnit(n.x, n.y))
	f.ID = n.id
	f.Properties = geojson.Properties{
		PropCluster:          true,
		PropClusterID:        n.id,
		PropPointCount:       n.numPoints,
		PropPointCountAbbrev: Abbreviate(n.numPoints),
	}
	return f
}

// ClusterID returns the cluster id of a feature produced by an Index.
func ClusterID(f *geojson.Feature) (int, bool) {
	if f == nil || f.Properties == nil {
		return 0, false
	}
	if c, _ := f.Properties[PropCluster].(bool); !c {
		return 0, false
	}
	id, ok := f.Properties[PropClusterID].(int)
	return id, ok
}

// PointCount returns the number of points of a cluster feature, 1 for a
// plain point.
func PointCount(f *geojson.Feature) int {
	if _, ok := ClusterID(f); !ok {
		return 1
	}
	n, _ := f.Properties[PropPointCount].(int)
	return n
}

// Abbreviate formats a point count the way map labels show it.
func Abbreviate(count int) string {
	switch {
	case count >= 10000:
		return strconv.Itoa(int(math.Round(float64(count)/1000))) + "k"
	case count >= 1000:
		return strconv.FormatFloat(math.Round(float64(count)/100)/10, 'f', -1, 64) + "k"
	default:
		return strconv.Itoa(count)
	}
}
