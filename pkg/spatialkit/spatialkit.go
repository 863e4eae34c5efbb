package spatialkit

import (
	"spatialkit/internal/core"
	"spatialkit/internal/spatial"

	"go.uber.org/zap"
)

type (
	Vector3 = core.Vector3
	Vector2 = core.Vector2
	AABB3D  = core.AABB3D
	Rect    = core.Rect
	Plane   = core.Plane
	Kind    = core.Kind
	Stats   = core.Stats
	Entity  = core.Entity
)

const (
	KindGrid     = core.KindGrid
	KindQuadTree = core.KindQuadTree
	KindOctree   = core.KindOctree

	PlaneXZ = core.PlaneXZ
	PlaneXY = core.PlaneXY

	// ErrTypeInvalidArgument is the type of configuration errors returned by
	// New.
	ErrTypeInvalidArgument = core.ErrTypeInvalidArgument
)

// SpatialIndex is the contract shared by every index New can build.
type SpatialIndex[E Entity] interface {
	core.SpatialIndex[E]
}

// Config selects and configures an index implementation. Zero numeric
// fields fall back to the defaults of the selected kind.
type Config struct {
	Kind Kind `json:"kind"`

	// Bounds is the world volume of the trees. The quadtree uses its
	// footprint on Plane. The grid ignores it.
	Bounds AABB3D `json:"bounds"`

	// CellSize is the side of a grid cell.
	CellSize float64 `json:"cell_size,omitempty"`

	MaxDepth           int   `json:"max_depth,omitempty"`
	MaxEntitiesPerNode int   `json:"max_entities_per_node,omitempty"`
	Plane              Plane `json:"plane"`

	// MetricsName, when set, wraps the index so that its operations are
	// exported as Prometheus metrics labelled with that name.
	MetricsName string `json:"metrics_name,omitempty"`

	Logger *zap.Logger `json:"-"`
}

// DefaultConfig returns a grid configuration over a 2048 unit wide world.
func DefaultConfig() Config {
	return Config{
		Kind:     KindGrid,
		Bounds:   NewAABB3D(-1024, -1024, -1024, 1024, 1024, 1024),
		CellSize: spatial.DefaultCellSize,
		Plane:    PlaneXZ,
	}
}

// New builds the index described by cfg.
func New[E Entity](cfg Config) (SpatialIndex[E], error) {
	var opts []spatial.Option
	if cfg.Logger != nil {
		opts = append(opts, spatial.WithLogger(cfg.Logger))
	}

	var (
		idx core.SpatialIndex[E]
		err error
	)

	switch cfg.Kind {
	case KindGrid, "":
		idx, err = newHashGrid[E](cfg, opts)
	case KindQuadTree:
		idx, err = spatial.NewQuadTree[E](
			cfg.Plane.ProjectBounds(cfg.Bounds),
			orDefault(cfg.MaxDepth, spatial.DefaultMaxQuadTreeDepth),
			orDefault(cfg.MaxEntitiesPerNode, spatial.DefaultMaxEntitiesPerQuadNode),
			cfg.Plane,
			opts...,
		)
	case KindOctree:
		idx, err = spatial.NewOctree[E](
			cfg.Bounds,
			orDefault(cfg.MaxDepth, spatial.DefaultMaxOctreeDepth),
			orDefault(cfg.MaxEntitiesPerNode, spatial.DefaultMaxEntitiesPerOctNode),
			opts...,
		)
	default:
		return nil, core.InvalidArgument("unknown index kind", "kind", string(cfg.Kind))
	}
	if err != nil {
		return nil, err
	}

	if cfg.MetricsName != "" {
		return spatial.Instrument(cfg.MetricsName, idx), nil
	}
	return idx, nil
}

func newHashGrid[E Entity](cfg Config, opts []spatial.Option) (core.SpatialIndex[E], error) {
	cellSize := cfg.CellSize
	if cellSize == 0 {
		cellSize = spatial.DefaultCellSize
	}

	g, err := spatial.NewHashGrid[E](cellSize, cfg.Plane, opts...)
	if err != nil {
		return nil, err
	}
	return g, nil
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// ParseKind parses an index kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindGrid, KindQuadTree, KindOctree:
		return k, nil
	default:
		return "", core.InvalidArgument("unknown index kind", "kind", s)
	}
}

// ParsePlane parses "xz" or "xy".
func ParsePlane(s string) (Plane, error) {
	return core.ParsePlane(s)
}
