package spatial

import (
	"spatialkit/internal/core"

	"go.uber.org/zap"
)

const (
	// DefaultMaxQuadTreeDepth is the depth limit used by the facade when none
	// is configured.
	DefaultMaxQuadTreeDepth = 8
	// DefaultMaxEntitiesPerQuadNode is the split threshold used by the facade
	// when none is configured.
	DefaultMaxEntitiesPerQuadNode = 10
)

// QuadTree implements a 2.5D spatial index over a rectangle on a Plane.
//
// Routing and pruning only look at the two in-plane coordinates. QueryRadius
// is a pure in-plane circle test (a vertical cylinder for PlaneXZ) while
// QueryBounds tests full 3D containment on the entities it reaches.
//
// As with the Octree, entities outside the rectangle are routed as if
// clamped onto it and may be missed by queries that never reach their leaf.
type QuadTree[E core.Entity] struct {
	bounds             core.Rect
	plane              core.Plane
	maxDepth           int
	maxEntitiesPerNode int
	entities           map[int]E
	root               *quadNode[E]
	logger             *zap.Logger
}

// quadNode is either a leaf holding entities or an internal node holding
// exactly 4 children, never both.
type quadNode[E core.Entity] struct {
	bounds   core.Rect
	center   core.Vector2
	entities []E
	children [4]*quadNode[E] // indexed by quadrant bits: a=1, b=2
	depth    int
}

// NewQuadTree creates an empty quadtree over bounds, expressed in the
// coordinates of plane.
func NewQuadTree[E core.Entity](bounds core.Rect, maxDepth, maxEntitiesPerNode int, plane core.Plane, opts ...Option) (*QuadTree[E], error) {
	if err := core.ValidateRect(bounds); err != nil {
		return nil, err
	}
	if err := core.ValidatePositiveInt("max_depth", maxDepth); err != nil {
		return nil, err
	}
	if err := core.ValidatePositiveInt("max_entities_per_node", maxEntitiesPerNode); err != nil {
		return nil, err
	}
	if err := core.ValidatePlane(plane); err != nil {
		return nil, err
	}

	o := newOptions(opts)
	o.logger.Debug("quadtree created",
		zap.Any("bounds", bounds),
		zap.Stringer("plane", plane),
		zap.Int("max_depth", maxDepth),
		zap.Int("max_entities_per_node", maxEntitiesPerNode),
	)

	return &QuadTree[E]{
		bounds:             bounds,
		plane:              plane,
		maxDepth:           maxDepth,
		maxEntitiesPerNode: maxEntitiesPerNode,
		entities:           make(map[int]E),
		root:               newQuadNode[E](bounds, 0),
		logger:             o.logger,
	}, nil
}

func newQuadNode[E core.Entity](bounds core.Rect, depth int) *quadNode[E] {
	return &quadNode[E]{
		bounds: bounds,
		center: bounds.Center(),
		depth:  depth,
	}
}

// Bounds returns the configured rectangle.
func (qt *QuadTree[E]) Bounds() core.Rect {
	return qt.bounds
}

// Plane returns the plane the tree partitions over.
func (qt *QuadTree[E]) Plane() core.Plane {
	return qt.plane
}

// Insert adds an entity, replacing any entity with the same id.
func (qt *QuadTree[E]) Insert(entity E) {
	id := entity.SpatialID()
	if old, exists := qt.entities[id]; exists {
		qt.root.remove(id, qt.routePoint(old))
	}

	qt.entities[id] = entity
	qt.root.insert(entity, qt.routePoint(entity), qt.plane, qt.maxDepth, qt.maxEntitiesPerNode)
}

// Remove removes the entity with the same id.
func (qt *QuadTree[E]) Remove(entity E) bool {
	id := entity.SpatialID()
	old, exists := qt.entities[id]
	if !exists {
		return false
	}

	delete(qt.entities, id)
	qt.root.remove(id, qt.routePoint(old))
	return true
}

// Update moves the stored copy of the entity to its new position by removing
// and re-inserting it.
func (qt *QuadTree[E]) Update(entity E) {
	qt.Insert(entity)
}

// UpdateBatch updates each entity in order.
func (qt *QuadTree[E]) UpdateBatch(entities []E) {
	for _, e := range entities {
		qt.Update(e)
	}
}

// Clear removes all entities and collapses the tree back to a single leaf.
func (qt *QuadTree[E]) Clear() {
	qt.logger.Debug("quadtree cleared", zap.Int("entities", len(qt.entities)))
	clear(qt.entities)
	qt.root = newQuadNode[E](qt.bounds, 0)
}

// QueryRadius appends every entity whose in-plane distance to center is at
// most radius. The out-of-plane coordinate is ignored.
func (qt *QuadTree[E]) QueryRadius(center core.Vector3, radius float64, results []E) []E {
	if !(radius >= 0) {
		return results
	}
	return qt.root.queryRadius(qt.plane.Project(center), radius*radius, qt.plane, results)
}

// QueryBounds appends every entity whose 3D position lies inside bounds.
// Nodes are pruned with the footprint of bounds on the plane.
func (qt *QuadTree[E]) QueryBounds(bounds core.AABB3D, results []E) []E {
	return qt.root.queryBounds(bounds, qt.plane.ProjectBounds(bounds), results)
}

// QueryNearest returns the entity accepted by filter with the smallest
// in-plane distance to position, within maxDistance. Ties are broken by
// traversal order.
func (qt *QuadTree[E]) QueryNearest(position core.Vector3, maxDistance float64, filter core.FilterFunc[E]) (E, bool) {
	limitSq, ok := core.SearchRadiusSq(maxDistance)
	if !ok || len(qt.entities) == 0 {
		var zero E
		return zero, false
	}

	best := core.NewNearest[E](limitSq)
	qt.root.nearest(qt.plane.Project(position), qt.plane, filter, &best)
	return best.Entity, best.Found
}

// Count returns the number of indexed entities.
func (qt *QuadTree[E]) Count() int {
	return len(qt.entities)
}

// Get returns the stored copy of the entity with the given id.
func (qt *QuadTree[E]) Get(id int) (E, bool) {
	e, ok := qt.entities[id]
	return e, ok
}

// Stats walks the tree and reports its shape.
func (qt *QuadTree[E]) Stats() core.Stats {
	s := core.Stats{
		Kind:     core.KindQuadTree,
		Entities: len(qt.entities),
	}
	qt.root.stats(&s)
	return s
}

func (qt *QuadTree[E]) routePoint(e E) core.Vector2 {
	return core.ClampToRect(qt.plane.Project(e.Position()), qt.bounds)
}

func (qn *quadNode[E]) isLeaf() bool {
	return qn.children[0] == nil
}

func (qn *quadNode[E]) insert(entity E, p core.Vector2, plane core.Plane, maxDepth, maxEntities int) {
	node := qn
	for !node.isLeaf() {
		node = node.children[node.quadrant(p)]
	}

	node.entities = append(node.entities, entity)

	if len(node.entities) > maxEntities && node.depth < maxDepth {
		node.split(plane, maxDepth, maxEntities)
	}
}

func (qn *quadNode[E]) remove(id int, p core.Vector2) bool {
	node := qn
	for !node.isLeaf() {
		node = node.children[node.quadrant(p)]
	}

	for i, e := range node.entities {
		if e.SpatialID() == id {
			last := len(node.entities) - 1
			node.entities[i] = node.entities[last]
			var zero E
			node.entities[last] = zero
			node.entities = node.entities[:last]
			return true
		}
	}
	return false
}

// split divides this leaf into four children and hands its entities down.
func (qn *quadNode[E]) split(plane core.Plane, maxDepth, maxEntities int) {
	for i := 0; i < 4; i++ {
		qn.children[i] = newQuadNode[E](qn.childBounds(i), qn.depth+1)
	}

	entities := qn.entities
	qn.entities = nil

	for _, e := range entities {
		p := core.ClampToRect(plane.Project(e.Position()), qn.bounds)
		qn.children[qn.quadrant(p)].insert(e, p, plane, maxDepth, maxEntities)
	}
}

func (qn *quadNode[E]) quadrant(p core.Vector2) int {
	i := 0
	if p[0] >= qn.center[0] {
		i |= 1
	}
	if p[1] >= qn.center[1] {
		i |= 2
	}
	return i
}

func (qn *quadNode[E]) childBounds(quadrant int) core.Rect {
	r := core.Rect{Min: qn.bounds.Min, Max: qn.center}
	for axis := 0; axis < 2; axis++ {
		if quadrant&(1<<axis) != 0 {
			r.Min[axis] = qn.center[axis]
			r.Max[axis] = qn.bounds.Max[axis]
		}
	}
	return r
}

func (qn *quadNode[E]) queryRadius(center core.Vector2, radiusSq float64, plane core.Plane, results []E) []E {
	if core.RectDistanceSq(center, qn.bounds) > radiusSq {
		return results
	}

	if qn.isLeaf() {
		for _, e := range qn.entities {
			if core.DistanceSq2(center, plane.Project(e.Position())) <= radiusSq {
				results = append(results, e)
			}
		}
		return results
	}

	for _, child := range qn.children {
		results = child.queryRadius(center, radiusSq, plane, results)
	}
	return results
}

func (qn *quadNode[E]) queryBounds(bounds core.AABB3D, footprint core.Rect, results []E) []E {
	if !core.RectsIntersect(footprint, qn.bounds) {
		return results
	}

	if qn.isLeaf() {
		for _, e := range qn.entities {
			if core.BoxContains(bounds, e.Position()) {
				results = append(results, e)
			}
		}
		return results
	}

	for _, child := range qn.children {
		results = child.queryBounds(bounds, footprint, results)
	}
	return results
}

func (qn *quadNode[E]) nearest(p core.Vector2, plane core.Plane, filter core.FilterFunc[E], best *core.Nearest[E]) {
	if qn.isLeaf() {
		for _, e := range qn.entities {
			if filter != nil && !filter(e) {
				continue
			}
			best.Offer(e, core.DistanceSq2(p, plane.Project(e.Position())))
		}
		return
	}

	var (
		order [4]int
		dist  [4]float64
	)
	for i, child := range qn.children {
		d := core.RectDistanceSq(p, child.bounds)
		j := i
		for ; j > 0 && dist[j-1] > d; j-- {
			dist[j] = dist[j-1]
			order[j] = order[j-1]
		}
		dist[j] = d
		order[j] = i
	}

	for k := 0; k < 4; k++ {
		if !best.CanImprove(dist[k]) {
			return
		}
		qn.children[order[k]].nearest(p, plane, filter, best)
	}
}

func (qn *quadNode[E]) stats(s *core.Stats) {
	s.Nodes++
	if qn.depth > s.MaxDepth {
		s.MaxDepth = qn.depth
	}
	if qn.isLeaf() {
		s.Leaves++
		return
	}
	for _, child := range qn.children {
		child.stats(s)
	}
}
