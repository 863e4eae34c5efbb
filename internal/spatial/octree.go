package spatial

import (
	"spatialkit/internal/core"

	"go.uber.org/zap"
)

const (
	// DefaultMaxOctreeDepth is the depth limit used by the facade when none is
	// configured.
	DefaultMaxOctreeDepth = 8
	// DefaultMaxEntitiesPerOctNode is the split threshold used by the facade
	// when none is configured.
	DefaultMaxEntitiesPerOctNode = 8
)

// Octree implements a 3D spatial index over a fixed bounding box.
//
// Entities outside the configured bounds are still indexed: they are routed
// as if clamped onto the bounds but keep their true position. Radius and box
// queries can miss such entities when the query never reaches the boundary
// leaf they were routed to, so entities should stay inside the bounds for
// complete query results.
type Octree[E core.Entity] struct {
	bounds             core.AABB3D
	maxDepth           int
	maxEntitiesPerNode int
	entities           map[int]E
	root               *octNode[E]
	logger             *zap.Logger
}

// octNode is either a leaf holding entities or an internal node holding
// exactly 8 children, never both.
type octNode[E core.Entity] struct {
	bounds   core.AABB3D
	center   core.Vector3
	entities []E
	children [8]*octNode[E] // indexed by octant bits: x=1, y=2, z=4
	depth    int
}

// NewOctree creates an empty octree. maxDepth and maxEntitiesPerNode must be
// positive and bounds must have a positive extent on every axis.
func NewOctree[E core.Entity](bounds core.AABB3D, maxDepth, maxEntitiesPerNode int, opts ...Option) (*Octree[E], error) {
	if err := core.ValidateBounds(bounds); err != nil {
		return nil, err
	}
	if err := core.ValidatePositiveInt("max_depth", maxDepth); err != nil {
		return nil, err
	}
	if err := core.ValidatePositiveInt("max_entities_per_node", maxEntitiesPerNode); err != nil {
		return nil, err
	}

	o := newOptions(opts)
	o.logger.Debug("octree created",
		zap.Any("bounds", bounds),
		zap.Int("max_depth", maxDepth),
		zap.Int("max_entities_per_node", maxEntitiesPerNode),
	)

	return &Octree[E]{
		bounds:             bounds,
		maxDepth:           maxDepth,
		maxEntitiesPerNode: maxEntitiesPerNode,
		entities:           make(map[int]E),
		root:               newOctNode[E](bounds, 0),
		logger:             o.logger,
	}, nil
}

func newOctNode[E core.Entity](bounds core.AABB3D, depth int) *octNode[E] {
	return &octNode[E]{
		bounds: bounds,
		center: bounds.Center(),
		depth:  depth,
	}
}

// Bounds returns the configured world volume.
func (ot *Octree[E]) Bounds() core.AABB3D {
	return ot.bounds
}

// Insert adds an entity, replacing any entity with the same id.
func (ot *Octree[E]) Insert(entity E) {
	id := entity.SpatialID()
	if old, exists := ot.entities[id]; exists {
		ot.root.remove(id, ot.routePoint(old))
	}

	ot.entities[id] = entity
	ot.root.insert(entity, ot.routePoint(entity), ot.maxDepth, ot.maxEntitiesPerNode)
}

// Remove removes the entity with the same id.
func (ot *Octree[E]) Remove(entity E) bool {
	id := entity.SpatialID()
	old, exists := ot.entities[id]
	if !exists {
		return false
	}

	delete(ot.entities, id)
	ot.root.remove(id, ot.routePoint(old))
	return true
}

// Update moves the stored copy of the entity to its new position by removing
// and re-inserting it.
func (ot *Octree[E]) Update(entity E) {
	ot.Insert(entity)
}

// UpdateBatch updates each entity in order.
func (ot *Octree[E]) UpdateBatch(entities []E) {
	for _, e := range entities {
		ot.Update(e)
	}
}

// Clear removes all entities and collapses the tree back to a single leaf.
func (ot *Octree[E]) Clear() {
	ot.logger.Debug("octree cleared", zap.Int("entities", len(ot.entities)))
	clear(ot.entities)
	ot.root = newOctNode[E](ot.bounds, 0)
}

// QueryRadius appends every entity whose true position is within radius of
// center.
func (ot *Octree[E]) QueryRadius(center core.Vector3, radius float64, results []E) []E {
	if !(radius >= 0) {
		return results
	}
	return ot.root.queryRadius(center, radius*radius, results)
}

// QueryBounds appends every entity whose true position lies inside bounds.
func (ot *Octree[E]) QueryBounds(bounds core.AABB3D, results []E) []E {
	return ot.root.queryBounds(bounds, results)
}

// QueryNearest returns the closest entity accepted by filter within
// maxDistance. Ties are broken by traversal order.
func (ot *Octree[E]) QueryNearest(position core.Vector3, maxDistance float64, filter core.FilterFunc[E]) (E, bool) {
	limitSq, ok := core.SearchRadiusSq(maxDistance)
	if !ok || len(ot.entities) == 0 {
		var zero E
		return zero, false
	}

	best := core.NewNearest[E](limitSq)
	ot.root.nearest(position, filter, &best)
	return best.Entity, best.Found
}

// Count returns the number of indexed entities.
func (ot *Octree[E]) Count() int {
	return len(ot.entities)
}

// Get returns the stored copy of the entity with the given id.
func (ot *Octree[E]) Get(id int) (E, bool) {
	e, ok := ot.entities[id]
	return e, ok
}

// Stats walks the tree and reports its shape.
func (ot *Octree[E]) Stats() core.Stats {
	s := core.Stats{
		Kind:     core.KindOctree,
		Entities: len(ot.entities),
	}
	ot.root.stats(&s)
	return s
}

func (ot *Octree[E]) routePoint(e E) core.Vector3 {
	return core.ClampToBox(e.Position(), ot.bounds)
}

func (on *octNode[E]) isLeaf() bool {
	return on.children[0] == nil
}

// insert routes the entity down to a leaf using p, which is the entity
// position clamped to the tree bounds.
func (on *octNode[E]) insert(entity E, p core.Vector3, maxDepth, maxEntities int) {
	node := on
	for !node.isLeaf() {
		node = node.children[node.octant(p)]
	}

	node.entities = append(node.entities, entity)

	if len(node.entities) > maxEntities && node.depth < maxDepth {
		node.split(maxDepth, maxEntities)
	}
}

// remove deletes the entity with the given id from the leaf p routes to.
func (on *octNode[E]) remove(id int, p core.Vector3) bool {
	node := on
	for !node.isLeaf() {
		node = node.children[node.octant(p)]
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

// split divides this leaf into eight children and hands its entities down.
func (on *octNode[E]) split(maxDepth, maxEntities int) {
	for i := 0; i < 8; i++ {
		on.children[i] = newOctNode[E](on.childBounds(i), on.depth+1)
	}

	entities := on.entities
	on.entities = nil

	for _, e := range entities {
		// Children bounds are inside the root, so clamping to them keeps the
		// routing identical to a clamp against the root.
		p := core.ClampToBox(e.Position(), on.bounds)
		on.children[on.octant(p)].insert(e, p, maxDepth, maxEntities)
	}
}

// octant returns the child index p belongs to.
func (on *octNode[E]) octant(p core.Vector3) int {
	i := 0
	if p[0] >= on.center[0] {
		i |= 1
	}
	if p[1] >= on.center[1] {
		i |= 2
	}
	if p[2] >= on.center[2] {
		i |= 4
	}
	return i
}

func (on *octNode[E]) childBounds(octant int) core.AABB3D {
	b := core.AABB3D{Min: on.bounds.Min, Max: on.center}
	for axis := 0; axis < 3; axis++ {
		if octant&(1<<axis) != 0 {
			b.Min[axis] = on.center[axis]
			b.Max[axis] = on.bounds.Max[axis]
		}
	}
	return b
}

func (on *octNode[E]) queryRadius(center core.Vector3, radiusSq float64, results []E) []E {
	if core.BoxDistanceSq(center, on.bounds) > radiusSq {
		return results
	}

	if on.isLeaf() {
		for _, e := range on.entities {
			if core.DistanceSq3(center, e.Position()) <= radiusSq {
				results = append(results, e)
			}
		}
		return results
	}

	for _, child := range on.children {
		results = child.queryRadius(center, radiusSq, results)
	}
	return results
}

func (on *octNode[E]) queryBounds(bounds core.AABB3D, results []E) []E {
	if !core.BoxesIntersect(bounds, on.bounds) {
		return results
	}

	if on.isLeaf() {
		for _, e := range on.entities {
			if core.BoxContains(bounds, e.Position()) {
				results = append(results, e)
			}
		}
		return results
	}

	for _, child := range on.children {
		results = child.queryBounds(bounds, results)
	}
	return results
}

// nearest visits children closest-first and skips any whose box cannot hold
// a better candidate than best.
func (on *octNode[E]) nearest(p core.Vector3, filter core.FilterFunc[E], best *core.Nearest[E]) {
	if on.isLeaf() {
		for _, e := range on.entities {
			if filter != nil && !filter(e) {
				continue
			}
			best.Offer(e, core.DistanceSq3(p, e.Position()))
		}
		return
	}

	var (
		order [8]int
		dist  [8]float64
	)
	for i, child := range on.children {
		d := core.BoxDistanceSq(p, child.bounds)
		j := i
		for ; j > 0 && dist[j-1] > d; j-- {
			dist[j] = dist[j-1]
			order[j] = order[j-1]
		}
		dist[j] = d
		order[j] = i
	}

	for k := 0; k < 8; k++ {
		if !best.CanImprove(dist[k]) {
			// dist is sorted, nothing further can improve either.
			return
		}
		on.children[order[k]].nearest(p, filter, best)
	}
}

func (on *octNode[E]) stats(s *core.Stats) {
	s.Nodes++
	if on.depth > s.MaxDepth {
		s.MaxDepth = on.depth
	}
	if on.isLeaf() {
		s.Leaves++
		return
	}
	for _, child := range on.children {
		child.stats(s)
	}
}
