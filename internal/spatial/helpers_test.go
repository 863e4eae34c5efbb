package spatial

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"spatialkit/internal/core"

	"github.com/stretchr/testify/require"
)

type testEntity struct {
	id  int
	pos core.Vector3
}

func (e testEntity) SpatialID() int         { return e.id }
func (e testEntity) Position() core.Vector3 { return e.pos }

func ent(id int, x, y, z float64) testEntity {
	return testEntity{id: id, pos: core.Vector3{x, y, z}}
}

var testWorld = core.AABB3D{
	Min: core.Vector3{-100, -100, -100},
	Max: core.Vector3{100, 100, 100},
}

type indexFactory struct {
	name string
	new  func(t *testing.T) core.SpatialIndex[testEntity]
	// planar is true when radius and nearest queries ignore the Y axis.
	planar bool
}

func indexFactories() []indexFactory {
	return []indexFactory{
		{
			name: "grid",
			new: func(t *testing.T) core.SpatialIndex[testEntity] {
				g, err := NewHashGrid[testEntity](10, core.PlaneXZ)
				require.NoError(t, err)
				return g
			},
		},
		{
			name: "quadtree",
			new: func(t *testing.T) core.SpatialIndex[testEntity] {
				qt, err := NewQuadTree[testEntity](core.PlaneXZ.ProjectBounds(testWorld), 6, 4, core.PlaneXZ)
				require.NoError(t, err)
				return qt
			},
			planar: true,
		},
		{
			name: "octree",
			new: func(t *testing.T) core.SpatialIndex[testEntity] {
				ot, err := NewOctree[testEntity](testWorld, 6, 4)
				require.NoError(t, err)
				return ot
			},
		},
	}
}

func randomEntities(rng *rand.Rand, n int, b core.AABB3D) []testEntity {
	entities := make([]testEntity, n)
	for i := range entities {
		entities[i] = testEntity{
			id:  i + 1,
			pos: randomPoint(rng, b),
		}
	}
	return entities
}

func randomPoint(rng *rand.Rand, b core.AABB3D) core.Vector3 {
	var p core.Vector3
	for axis := 0; axis < 3; axis++ {
		p[axis] = b.Min[axis] + rng.Float64()*(b.Max[axis]-b.Min[axis])
	}
	return p
}

func ids(entities []testEntity) []int {
	out := make([]int, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.id)
	}
	sort.Ints(out)
	return out
}

func distanceSq(a, b core.Vector3, planar bool) float64 {
	if planar {
		return core.DistanceSq2(core.PlaneXZ.Project(a), core.PlaneXZ.Project(b))
	}
	return core.DistanceSq3(a, b)
}

func bruteRadius(entities []testEntity, center core.Vector3, radius float64, planar bool) []int {
	var out []testEntity
	for _, e := range entities {
		if distanceSq(center, e.pos, planar) <= radius*radius {
			out = append(out, e)
		}
	}
	return ids(out)
}

func bruteBounds(entities []testEntity, b core.AABB3D) []int {
	var out []testEntity
	for _, e := range entities {
		if core.BoxContains(b, e.pos) {
			out = append(out, e)
		}
	}
	return ids(out)
}

// bruteNearestDistSq returns the smallest squared distance of an entity
// accepted by filter, or +Inf.
func bruteNearestDistSq(entities []testEntity, p core.Vector3, filter core.FilterFunc[testEntity], planar bool) float64 {
	best := math.Inf(1)
	for _, e := range entities {
		if filter != nil && !filter(e) {
			continue
		}
		if d := distanceSq(p, e.pos, planar); d < best {
			best = d
		}
	}
	return best
}
