package core

import "github.com/go-gl/mathgl/mgl64"

// Vector3 is a 3D coordinate/vector
type Vector3 = mgl64.Vec3

// Vector2 is a coordinate projected onto a Plane
type Vector2 = mgl64.Vec2

// AABB3D (Axis-Aligned Bounding Box) represents a box boundary in world space
type AABB3D struct {
	Min, Max Vector3
}

// Rect represents a rectangular boundary on a Plane
type Rect struct {
	Min, Max Vector2
}

// Entity is the capability a value must expose to be indexed.
//
// The index keeps its own copy of every entity it is given. Changing the
// caller's value after insertion has no effect until Update is called with
// the new value.
type Entity interface {
	SpatialID() int
	Position() Vector3
}

// FilterFunc reports whether an entity is an acceptable QueryNearest result.
// A nil FilterFunc accepts every entity.
type FilterFunc[E Entity] func(E) bool

// SpatialIndex is the contract shared by the grid, quadtree and octree.
//
// Implementations are not safe for concurrent use. Query methods append to the
// caller-owned results slice and return it; they never clear it.
type SpatialIndex[E Entity] interface {
	// Insert adds the entity, replacing any entity with the same id.
	Insert(entity E)

	// Remove removes the entity with the same id. It returns false when no
	// such entity is indexed.
	Remove(entity E) bool

	// Update relocates the stored copy of the entity. Unknown ids are
	// inserted.
	Update(entity E)

	// UpdateBatch calls Update for each entity, in order.
	UpdateBatch(entities []E)

	// Clear drops every entity while keeping the configuration.
	Clear()

	QueryRadius(center Vector3, radius float64, results []E) []E
	QueryBounds(bounds AABB3D, results []E) []E

	// QueryNearest returns the closest entity accepted by filter within
	// maxDistance (inclusive). Use math.Inf(1) for an unbounded search. The
	// boolean is false when nothing qualifies.
	QueryNearest(position Vector3, maxDistance float64, filter FilterFunc[E]) (E, bool)

	Count() int

	// Get returns the stored copy of the entity with the given id.
	Get(id int) (E, bool)

	Stats() Stats
}

// Kind names a SpatialIndex implementation.
type Kind string

const (
	KindGrid     Kind = "grid"
	KindQuadTree Kind = "quadtree"
	KindOctree   Kind = "octree"
)

// Stats is a structural snapshot of an index, meant for debugging and metrics.
type Stats struct {
	Kind     Kind `json:"kind"`
	Entities int  `json:"entities"`

	// Tree implementations.
	Nodes    int `json:"nodes,omitempty"`
	Leaves   int `json:"leaves,omitempty"`
	MaxDepth int `json:"max_depth,omitempty"`

	// Grid implementation.
	Cells       int `json:"cells,omitempty"`
	LargestCell int `json:"largest_cell,omitempty"`
}
