package spatial

import (
	"testing"

	"spatialkit/internal/core"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
)

func newTestQuadTree(t *testing.T, plane core.Plane) *QuadTree[testEntity] {
	bounds := core.Rect{
		Min: core.Vector2{-100, -100},
		Max: core.Vector2{100, 100},
	}
	qt, err := NewQuadTree[testEntity](bounds, DefaultMaxQuadTreeDepth, 4, plane)
	require.NoError(t, err)
	return qt
}

func TestQuadTreeBasicOperations(t *testing.T) {
	qt := newTestQuadTree(t, core.PlaneXZ)
	require.Equal(t, core.PlaneXZ, qt.Plane())

	qt.Insert(ent(1, 10, 0, 10))
	qt.Insert(ent(2, 20, 0, 20))
	qt.Insert(ent(3, 30, 0, 30))
	require.Equal(t, 3, qt.Count())

	results := qt.QueryRadius(core.Vector3{15, 0, 15}, 10, nil)
	require.Equal(t, []int{1, 2}, ids(results))

	require.True(t, qt.Remove(ent(1, 10, 0, 10)))
	require.Equal(t, []int{2}, ids(qt.QueryRadius(core.Vector3{15, 0, 15}, 10, nil)))
}

func TestQuadTreeIgnoresHeightForRadius(t *testing.T) {
	qt := newTestQuadTree(t, core.PlaneXZ)
	qt.Insert(ent(1, 0, 0, 0))
	qt.Insert(ent(2, 0, 1000, 0))

	require.Equal(t, []int{1, 2}, ids(qt.QueryRadius(core.Vector3{}, 1, nil)))

	box := core.AABB3D{
		Min: core.Vector3{-1, -1, -1},
		Max: core.Vector3{1, 1, 1},
	}
	require.Equal(t, []int{1}, ids(qt.QueryBounds(box, nil)))
}

func TestQuadTreePlaneXY(t *testing.T) {
	qt := newTestQuadTree(t, core.PlaneXY)
	qt.Insert(ent(1, 5, 5, -500))
	qt.Insert(ent(2, 5, 50, 0))

	require.Equal(t, []int{1}, ids(qt.QueryRadius(core.Vector3{5, 5, 0}, 2, nil)))

	got, ok := qt.QueryNearest(core.Vector3{5, 40, 0}, 100, nil)
	require.True(t, ok)
	require.Equal(t, 2, got.id)
}

func TestQuadTreeSplits(t *testing.T) {
	bounds := core.Rect{Max: core.Vector2{8, 8}}
	qt, err := NewQuadTree[testEntity](bounds, 4, 2, core.PlaneXZ)
	require.NoError(t, err)

	qt.Insert(ent(1, 1, 0, 1))
	qt.Insert(ent(2, 7, 0, 7))
	qt.Insert(ent(3, 7, 0, 1))

	stats := qt.Stats()
	require.Equal(t, core.KindQuadTree, stats.Kind)
	require.Equal(t, 5, stats.Nodes)
	require.Equal(t, 4, stats.Leaves)
	require.Equal(t, 1, stats.MaxDepth)

	// Points on the center line go to the upper quadrant.
	qt.Insert(ent(4, 4, 0, 4))
	qt.Insert(ent(5, 4.5, 0, 4.5))
	require.Equal(t, []int{2, 4, 5}, ids(qt.QueryBounds(core.AABB3D{
		Min: core.Vector3{4, -1, 4},
		Max: core.Vector3{8, 1, 8},
	}, nil)))
	require.Equal(t, 2, qt.Stats().MaxDepth)
}

func TestNewQuadTreeErrors(t *testing.T) {
	valid := core.Rect{Max: core.Vector2{1, 1}}

	_, err := NewQuadTree[testEntity](core.Rect{}, 4, 4, core.PlaneXZ)
	require.True(t, errors.IsType(err, core.ErrTypeInvalidArgument))

	_, err = NewQuadTree[testEntity](valid, 0, 4, core.PlaneXZ)
	require.True(t, errors.IsType(err, core.ErrTypeInvalidArgument))

	_, err = NewQuadTree[testEntity](valid, 4, -1, core.PlaneXZ)
	require.True(t, errors.IsType(err, core.ErrTypeInvalidArgument))

	_, err = NewQuadTree[testEntity](valid, 4, 4, core.Plane(9))
	require.True(t, errors.IsType(err, core.ErrTypeInvalidArgument))
}
