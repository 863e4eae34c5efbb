package spatial

import (
	"math"

	"spatialkit/internal/core"

	"github.com/colega/zeropool"
	"go.uber.org/zap"
)

const (
	// DefaultCellSize is the cell side used by the facade when none is
	// configured.
	DefaultCellSize = 16.0

	bucketCapacity = 8
)

// HashGrid is an unbounded uniform grid of square cells on a Plane. Cells are
// keyed by their packed integer coordinates and only exist while they hold at
// least one entity; emptied buckets are recycled through a private pool.
//
// Cell selection is 2D but QueryRadius and QueryNearest measure full 3D
// distance on the candidates they reach.
type HashGrid[E core.Entity] struct {
	cellSize float64
	plane    core.Plane
	cells    map[int64][]E
	entities map[int]E
	buckets  zeropool.Pool[[]E]
	logger   *zap.Logger
}

// NewHashGrid creates an empty grid with square cells of side cellSize.
func NewHashGrid[E core.Entity](cellSize float64, plane core.Plane, opts ...Option) (*HashGrid[E], error) {
	if err := core.ValidatePositive("cell_size", cellSize); err != nil {
		return nil, err
	}
	if err := core.ValidatePlane(plane); err != nil {
		return nil, err
	}

	o := newOptions(opts)
	o.logger.Debug("hash grid created",
		zap.Float64("cell_size", cellSize),
		zap.Stringer("plane", plane),
	)

	return &HashGrid[E]{
		cellSize: cellSize,
		plane:    plane,
		cells:    make(map[int64][]E),
		entities: make(map[int]E),
		buckets: zeropool.New(func() []E {
			return make([]E, 0, bucketCapacity)
		}),
		logger: o.logger,
	}, nil
}

// PackCellKey packs two signed cell coordinates into a single key.
func PackCellKey(a, b int32) int64 {
	return int64(uint64(uint32(a))<<32 | uint64(uint32(b)))
}

// UnpackCellKey is the inverse of PackCellKey.
func UnpackCellKey(key int64) (a, b int32) {
	return int32(uint64(key) >> 32), int32(uint32(uint64(key)))
}

// CellSize returns the side of a cell.
func (g *HashGrid[E]) CellSize() float64 {
	return g.cellSize
}

// Plane returns the plane cells are laid out on.
func (g *HashGrid[E]) Plane() core.Plane {
	return g.plane
}

// CellCoords returns the coordinates of the cell holding position.
func (g *HashGrid[E]) CellCoords(position core.Vector3) (a, b int32) {
	p := g.plane.Project(position)
	return core.FastFloor(p[0] / g.cellSize), core.FastFloor(p[1] / g.cellSize)
}

// CellKey returns the key of the cell holding position.
func (g *HashGrid[E]) CellKey(position core.Vector3) int64 {
	return PackCellKey(g.CellCoords(position))
}

// Insert adds an entity, replacing any entity with the same id.
func (g *HashGrid[E]) Insert(entity E) {
	id := entity.SpatialID()
	if old, exists := g.entities[id]; exists {
		g.removeFromCell(g.CellKey(old.Position()), id)
	}

	g.entities[id] = entity
	g.addToCell(g.CellKey(entity.Position()), entity)
}

// Remove removes the entity with the same id.
func (g *HashGrid[E]) Remove(entity E) bool {
	id := entity.SpatialID()
	old, exists := g.entities[id]
	if !exists {
		return false
	}

	delete(g.entities, id)
	g.removeFromCell(g.CellKey(old.Position()), id)
	return true
}

// Update replaces the stored copy of the entity in place when it stays in the
// same cell and migrates it between buckets otherwise.
func (g *HashGrid[E]) Update(entity E) {
	id := entity.SpatialID()
	old, exists := g.entities[id]
	if !exists {
		g.Insert(entity)
		return
	}

	g.entities[id] = entity

	oldKey := g.CellKey(old.Position())
	newKey := g.CellKey(entity.Position())
	if oldKey == newKey {
		bucket := g.cells[oldKey]
		for i := range bucket {
			if bucket[i].SpatialID() == id {
				bucket[i] = entity
				return
			}
		}
		return
	}

	g.removeFromCell(oldKey, id)
	g.addToCell(newKey, entity)
}

// UpdateBatch updates each entity in order.
func (g *HashGrid[E]) UpdateBatch(entities []E) {
	for _, e := range entities {
		g.Update(e)
	}
}

// Clear removes all entities and returns every bucket to the pool.
func (g *HashGrid[E]) Clear() {
	g.logger.Debug("hash grid cleared",
		zap.Int("entities", len(g.entities)),
		zap.Int("cells", len(g.cells)),
	)

	for _, bucket := range g.cells {
		g.releaseBucket(bucket)
	}
	clear(g.cells)
	clear(g.entities)
}

// QueryRadius appends every entity within radius of center, measured in 3D.
// Candidates come from the cells overlapping the circle's bounding square.
func (g *HashGrid[E]) QueryRadius(center core.Vector3, radius float64, results []E) []E {
	if !(radius >= 0) || len(g.entities) == 0 {
		return results
	}

	p := g.plane.Project(center)
	r := g.cellRange(core.Rect{
		Min: core.Vector2{p[0] - radius, p[1] - radius},
		Max: core.Vector2{p[0] + radius, p[1] + radius},
	})
	radiusSq := radius * radius

	return g.collect(r, results, func(e E) bool {
		return core.DistanceSq3(center, e.Position()) <= radiusSq
	})
}

// QueryBounds appends every entity whose 3D position lies inside bounds.
func (g *HashGrid[E]) QueryBounds(bounds core.AABB3D, results []E) []E {
	if len(g.entities) == 0 {
		return results
	}

	r := g.cellRange(g.plane.ProjectBounds(bounds))
	return g.collect(r, results, func(e E) bool {
		return core.BoxContains(bounds, e.Position())
	})
}

// QueryNearest returns the entity accepted by filter closest to position in
// 3D, within maxDistance.
//
// A finite maxDistance searches rings of cells outward from the cell holding
// position. An infinite one scans every entity, since no ring count bounds
// the search.
func (g *HashGrid[E]) QueryNearest(position core.Vector3, maxDistance float64, filter core.FilterFunc[E]) (E, bool) {
	limitSq, ok := core.SearchRadiusSq(maxDistance)
	if !ok || len(g.entities) == 0 {
		var zero E
		return zero, false
	}

	best := core.NewNearest[E](limitSq)
	switch {
	case math.IsInf(maxDistance, 1):
		g.nearestScan(position, filter, &best)
	default:
		g.nearestRings(position, maxDistance, filter, &best)
	}
	return best.Entity, best.Found
}

// Count returns the number of indexed entities.
func (g *HashGrid[E]) Count() int {
	return len(g.entities)
}

// Get returns the stored copy of the entity with the given id.
func (g *HashGrid[E]) Get(id int) (E, bool) {
	e, ok := g.entities[id]
	return e, ok
}

// Stats reports the number of live cells and the most crowded one.
func (g *HashGrid[E]) Stats() core.Stats {
	s := core.Stats{
		Kind:     core.KindGrid,
		Entities: len(g.entities),
		Cells:    len(g.cells),
	}
	for _, bucket := range g.cells {
		if len(bucket) > s.LargestCell {
			s.LargestCell = len(bucket)
		}
	}
	return s
}

func (g *HashGrid[E]) addToCell(key int64, entity E) {
	bucket, ok := g.cells[key]
	if !ok {
		bucket = g.buckets.Get()[:0]
	}
	g.cells[key] = append(bucket, entity)
}

func (g *HashGrid[E]) removeFromCell(key int64, id int) {
	bucket, ok := g.cells[key]
	if !ok {
		return
	}

	for i := range bucket {
		if bucket[i].SpatialID() != id {
			continue
		}

		last := len(bucket) - 1
		bucket[i] = bucket[last]
		var zero E
		bucket[last] = zero
		bucket = bucket[:last]

		if len(bucket) == 0 {
			delete(g.cells, key)
			g.buckets.Put(bucket)
			return
		}
		g.cells[key] = bucket
		return
	}
}

func (g *HashGrid[E]) releaseBucket(bucket []E) {
	clear(bucket)
	g.buckets.Put(bucket[:0])
}

// cellRange is an inclusive range of cell coordinates.
type cellRange struct {
	minA, maxA, minB, maxB int64
}

func (r cellRange) empty() bool {
	return r.minA > r.maxA || r.minB > r.maxB
}

func (r cellRange) area() float64 {
	return float64(r.maxA-r.minA+1) * float64(r.maxB-r.minB+1)
}

func (r cellRange) contains(a, b int32) bool {
	return int64(a) >= r.minA && int64(a) <= r.maxA &&
		int64(b) >= r.minB && int64(b) <= r.maxB
}

func (g *HashGrid[E]) cellRange(footprint core.Rect) cellRange {
	return cellRange{
		minA: int64(core.FastFloor(footprint.Min[0] / g.cellSize)),
		maxA: int64(core.FastFloor(footprint.Max[0] / g.cellSize)),
		minB: int64(core.FastFloor(footprint.Min[1] / g.cellSize)),
		maxB: int64(core.FastFloor(footprint.Max[1] / g.cellSize)),
	}
}

func (g *HashGrid[E]) cellRect(a, b int64) core.Rect {
	cs := g.cellSize
	return core.Rect{
		Min: core.Vector2{float64(a) * cs, float64(b) * cs},
		Max: core.Vector2{float64(a+1) * cs, float64(b+1) * cs},
	}
}

// collect appends the entities of the cells in r accepted by match. When r
// spans more cells than are alive, live cells are walked instead.
func (g *HashGrid[E]) collect(r cellRange, results []E, match func(E) bool) []E {
	if r.empty() {
		return results
	}

	if r.area() > float64(len(g.cells)) {
		for key, bucket := range g.cells {
			if !r.contains(UnpackCellKey(key)) {
				continue
			}
			for _, e := range bucket {
				if match(e) {
					results = append(results, e)
				}
			}
		}
		return results
	}

	for a := r.minA; a <= r.maxA; a++ {
		for b := r.minB; b <= r.maxB; b++ {
			bucket, ok := g.cells[PackCellKey(int32(a), int32(b))]
			if !ok {
				continue
			}
			for _, e := range bucket {
				if match(e) {
					results = append(results, e)
				}
			}
		}
	}
	return results
}

func (g *HashGrid[E]) nearestScan(position core.Vector3, filter core.FilterFunc[E], best *core.Nearest[E]) {
	for _, e := range g.entities {
		if filter != nil && !filter(e) {
			continue
		}
		best.Offer(e, core.DistanceSq3(position, e.Position()))
		if best.Found && best.DistSq == 0 {
			return
		}
	}
}

func (g *HashGrid[E]) nearestRings(position core.Vector3, maxDistance float64, filter core.FilterFunc[E], best *core.Nearest[E]) {
	p := g.plane.Project(position)
	ha, hb := g.CellCoords(position)
	homeA, homeB := int64(ha), int64(hb)

	rings := math.Ceil(maxDistance / g.cellSize)
	side := 2*rings + 1
	if side*side > float64(len(g.cells)) {
		g.nearestLiveCells(position, p, filter, best)
		return
	}

	visit := func(a, b int64) bool {
		if a < math.MinInt32 || a > math.MaxInt32 || b < math.MinInt32 || b > math.MaxInt32 {
			return false
		}
		bucket, ok := g.cells[PackCellKey(int32(a), int32(b))]
		if !ok || !best.CanImprove(core.RectDistanceSq(p, g.cellRect(a, b))) {
			return false
		}
		for _, e := range bucket {
			if filter != nil && !filter(e) {
				continue
			}
			best.Offer(e, core.DistanceSq3(position, e.Position()))
		}
		return best.Found && best.DistSq == 0
	}

	n := int64(rings)
	for k := int64(0); k <= n; k++ {
		if k > 0 {
			// Every cell of ring k is at least (k-1) cells away in the plane.
			gap := float64(k-1) * g.cellSize
			if !best.CanImprove(gap * gap) {
				return
			}
		}

		if k == 0 {
			if visit(homeA, homeB) {
				return
			}
			continue
		}

		for a := homeA - k; a <= homeA+k; a++ {
			if visit(a, homeB-k) || visit(a, homeB+k) {
				return
			}
		}
		for b := homeB - k + 1; b <= homeB+k-1; b++ {
			if visit(homeA-k, b) || visit(homeA+k, b) {
				return
			}
		}
	}
}

// nearestLiveCells is the bounded search used when the ring square would
// cover more cells than exist.
func (g *HashGrid[E]) nearestLiveCells(position core.Vector3, p core.Vector2, filter core.FilterFunc[E], best *core.Nearest[E]) {
	for key, bucket := range g.cells {
		a, b := UnpackCellKey(key)
		if !best.CanImprove(core.RectDistanceSq(p, g.cellRect(int64(a), int64(b)))) {
			continue
		}
		for _, e := range bucket {
			if filter != nil && !filter(e) {
				continue
			}
			best.Offer(e, core.DistanceSq3(position, e.Position()))
			if best.Found && best.DistSq == 0 {
				return
			}
		}
	}
}
