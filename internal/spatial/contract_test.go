package spatial

import (
	"math"
	"math/rand"
	"testing"

	"spatialkit/internal/core"

	"github.com/stretchr/testify/require"
)

func TestIndexCount(t *testing.T) {
	for _, f := range indexFactories() {
		t.Run(f.name, func(t *testing.T) {
			idx := f.new(t)
			require.Equal(t, 0, idx.Count())

			idx.Insert(ent(1, 0, 0, 0))
			idx.Insert(ent(2, 10, 0, 10))
			idx.Insert(ent(3, -10, 5, -10))
			require.Equal(t, 3, idx.Count())

			// Reinserting an id replaces it.
			idx.Insert(ent(2, 50, 0, 50))
			require.Equal(t, 3, idx.Count())

			got, ok := idx.Get(2)
			require.True(t, ok)
			require.Equal(t, core.Vector3{50, 0, 50}, got.pos)

			require.Empty(t, idx.QueryRadius(core.Vector3{10, 0, 10}, 1, nil))
			require.Equal(t, []int{2}, ids(idx.QueryRadius(core.Vector3{50, 0, 50}, 1, nil)))

			require.True(t, idx.Remove(ent(1, 0, 0, 0)))
			require.Equal(t, 2, idx.Count())
		})
	}
}

func TestIndexRemoveRoundTrip(t *testing.T) {
	for _, f := range indexFactories() {
		t.Run(f.name, func(t *testing.T) {
			idx := f.new(t)
			e := ent(7, 3, 4, 5)

			idx.Insert(e)
			require.True(t, idx.Remove(e))
			require.False(t, idx.Remove(e))
			require.Equal(t, 0, idx.Count())

			_, ok := idx.Get(7)
			require.False(t, ok)
			require.Empty(t, idx.QueryRadius(e.pos, 10, nil))
		})
	}
}

func TestIndexRemoveUsesStoredPosition(t *testing.T) {
	for _, f := range indexFactories() {
		t.Run(f.name, func(t *testing.T) {
			idx := f.new(t)
			idx.Insert(ent(1, -80, 0, -80))

			// Only the id matters to Remove.
			require.True(t, idx.Remove(ent(1, 80, 0, 80)))
			require.Equal(t, 0, idx.Count())
			require.Empty(t, idx.QueryBounds(testWorld, nil))
		})
	}
}

func TestIndexUpdate(t *testing.T) {
	for _, f := range indexFactories() {
		t.Run(f.name, func(t *testing.T) {
			idx := f.new(t)

			// Unknown ids are inserted.
			idx.Update(ent(1, 0, 0, 0))
			require.Equal(t, 1, idx.Count())

			idx.Update(ent(1, 60, 0, 60))
			require.Equal(t, 1, idx.Count())
			require.Empty(t, idx.QueryRadius(core.Vector3{0, 0, 0}, 5, nil))
			require.Equal(t, []int{1}, ids(idx.QueryRadius(core.Vector3{60, 0, 60}, 5, nil)))

			before := ids(idx.QueryBounds(testWorld, nil))
			idx.Update(ent(1, 60, 0, 60))
			idx.Update(ent(1, 60, 0, 60))
			require.Equal(t, before, ids(idx.QueryBounds(testWorld, nil)))
			require.Equal(t, 1, idx.Count())
		})
	}
}

func TestIndexUpdateBatch(t *testing.T) {
	for _, f := range indexFactories() {
		t.Run(f.name, func(t *testing.T) {
			idx := f.new(t)
			idx.UpdateBatch([]testEntity{
				ent(1, 0, 0, 0),
				ent(2, 20, 0, 20),
				ent(1, 40, 0, 40),
			})

			require.Equal(t, 2, idx.Count())
			got, ok := idx.Get(1)
			require.True(t, ok)
			require.Equal(t, core.Vector3{40, 0, 40}, got.pos)
		})
	}
}

func TestIndexClear(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	for _, f := range indexFactories() {
		t.Run(f.name, func(t *testing.T) {
			idx := f.new(t)
			for _, e := range randomEntities(rng, 100, testWorld) {
				idx.Insert(e)
			}

			idx.Clear()
			require.Equal(t, 0, idx.Count())
			require.Empty(t, idx.QueryBounds(testWorld, nil))

			_, ok := idx.QueryNearest(core.Vector3{}, math.Inf(1), nil)
			require.False(t, ok)

			// The index stays usable with its original configuration.
			idx.Insert(ent(1, 1, 1, 1))
			require.Equal(t, []int{1}, ids(idx.QueryRadius(core.Vector3{}, 2, nil)))
		})
	}
}

func TestIndexQueriesAppend(t *testing.T) {
	for _, f := range indexFactories() {
		t.Run(f.name, func(t *testing.T) {
			idx := f.new(t)
			idx.Insert(ent(1, 0, 0, 0))

			results := []testEntity{ent(99, 0, 0, 0)}
			results = idx.QueryRadius(core.Vector3{}, 1, results)
			results = idx.QueryBounds(testWorld, results)

			require.Equal(t, []int{1, 1, 99}, ids(results))
		})
	}
}

func TestIndexRadiusMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	entities := randomEntities(rng, 500, testWorld)

	for _, f := range indexFactories() {
		t.Run(f.name, func(t *testing.T) {
			idx := f.new(t)
			for _, e := range entities {
				idx.Insert(e)
			}

			for i := 0; i < 50; i++ {
				center := randomPoint(rng, testWorld)
				radius := rng.Float64() * 60

				got := idx.QueryRadius(center, radius, nil)
				require.Equal(t, bruteRadius(entities, center, radius, f.planar), ids(got))
			}
		})
	}
}

func TestIndexBoundsMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	entities := randomEntities(rng, 500, testWorld)

	for _, f := range indexFactories() {
		t.Run(f.name, func(t *testing.T) {
			idx := f.new(t)
			for _, e := range entities {
				idx.Insert(e)
			}

			for i := 0; i < 50; i++ {
				a := randomPoint(rng, testWorld)
				b := randomPoint(rng, testWorld)
				box := core.AABB3D{
					Min: core.Vector3{math.Min(a[0], b[0]), math.Min(a[1], b[1]), math.Min(a[2], b[2])},
					Max: core.Vector3{math.Max(a[0], b[0]), math.Max(a[1], b[1]), math.Max(a[2], b[2])},
				}

				got := idx.QueryBounds(box, nil)
				require.Equal(t, bruteBounds(entities, box), ids(got))
			}
		})
	}
}

func TestIndexNearestMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	entities := randomEntities(rng, 300, testWorld)
	even := func(e testEntity) bool { return e.id%2 == 0 }

	for _, f := range indexFactories() {
		t.Run(f.name, func(t *testing.T) {
			idx := f.new(t)
			for _, e := range entities {
				idx.Insert(e)
			}

			for i := 0; i < 50; i++ {
				p := randomPoint(rng, testWorld)

				for _, filter := range []core.FilterFunc[testEntity]{nil, even} {
					want := bruteNearestDistSq(entities, p, filter, f.planar)

					got, ok := idx.QueryNearest(p, math.Inf(1), filter)
					require.True(t, ok)
					require.Equal(t, want, distanceSq(p, got.pos, f.planar))
					if filter != nil {
						require.True(t, filter(got))
					}

					maxDistance := 15.0
					got, ok = idx.QueryNearest(p, maxDistance, filter)
					if want <= maxDistance*maxDistance {
						require.True(t, ok)
						require.Equal(t, want, distanceSq(p, got.pos, f.planar))
					} else {
						require.False(t, ok)
					}
				}
			}
		})
	}
}

func TestIndexNearestMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	entities := randomEntities(rng, 200, testWorld)

	for _, f := range indexFactories() {
		t.Run(f.name, func(t *testing.T) {
			idx := f.new(t)
			for _, e := range entities {
				idx.Insert(e)
			}

			for i := 0; i < 30; i++ {
				p := randomPoint(rng, testWorld)
				near, okNear := idx.QueryNearest(p, 10, nil)
				far, okFar := idx.QueryNearest(p, 40, nil)

				if okNear {
					require.True(t, okFar)
					require.LessOrEqual(t, distanceSq(p, far.pos, f.planar), distanceSq(p, near.pos, f.planar))
				}
			}
		})
	}
}

func TestIndexNearestEdgeCases(t *testing.T) {
	for _, f := range indexFactories() {
		t.Run(f.name, func(t *testing.T) {
			idx := f.new(t)

			_, ok := idx.QueryNearest(core.Vector3{}, math.Inf(1), nil)
			require.False(t, ok, "empty index")

			far := ent(1, 90, 90, 90)
			idx.Insert(far)

			got, ok := idx.QueryNearest(core.Vector3{-90, -90, -90}, math.Inf(1), nil)
			require.True(t, ok)
			require.Equal(t, far, got)

			_, ok = idx.QueryNearest(core.Vector3{}, -1, nil)
			require.False(t, ok, "negative bound")

			_, ok = idx.QueryNearest(core.Vector3{}, math.NaN(), nil)
			require.False(t, ok, "NaN bound")

			_, ok = idx.QueryNearest(core.Vector3{}, math.Inf(1), func(testEntity) bool { return false })
			require.False(t, ok, "filter rejects everything")

			// The bound is inclusive.
			idx.Clear()
			idx.Insert(ent(2, 3, 0, 4))
			got, ok = idx.QueryNearest(core.Vector3{}, 5, nil)
			require.True(t, ok)
			require.Equal(t, 2, got.id)
		})
	}
}

func TestIndexNegativeQueries(t *testing.T) {
	for _, f := range indexFactories() {
		t.Run(f.name, func(t *testing.T) {
			idx := f.new(t)
			idx.Insert(ent(1, 0, 0, 0))

			require.Empty(t, idx.QueryRadius(core.Vector3{}, -1, nil))
			require.Empty(t, idx.QueryRadius(core.Vector3{}, math.NaN(), nil))
			require.Equal(t, []int{1}, ids(idx.QueryRadius(core.Vector3{}, 0, nil)))
		})
	}
}

func TestIndexHotPathDoesNotAllocate(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	entities := randomEntities(rng, 200, testWorld)
	even := func(e testEntity) bool { return e.id%2 == 0 }
	box := core.AABB3D{
		Min: core.Vector3{-30, -30, -30},
		Max: core.Vector3{30, 30, 30},
	}

	for _, f := range indexFactories() {
		t.Run(f.name, func(t *testing.T) {
			idx := f.new(t)
			for _, e := range entities {
				idx.Insert(e)
			}
			results := make([]testEntity, 0, len(entities))

			require.Zero(t, testing.AllocsPerRun(100, func() {
				results = idx.QueryRadius(core.Vector3{5, 0, 5}, 25, results[:0])
			}), "radius")
			require.Zero(t, testing.AllocsPerRun(100, func() {
				results = idx.QueryBounds(box, results[:0])
			}), "bounds")
			require.Zero(t, testing.AllocsPerRun(100, func() {
				idx.QueryNearest(core.Vector3{5, 0, 5}, 20, even)
			}), "bounded nearest")
			require.Zero(t, testing.AllocsPerRun(100, func() {
				idx.QueryNearest(core.Vector3{5, 0, 5}, math.Inf(1), even)
			}), "unbounded nearest")

			moved := entities[7]
			moved.pos[1] += 1e-6
			still := entities[7]
			flip := false
			require.Zero(t, testing.AllocsPerRun(100, func() {
				flip = !flip
				if flip {
					idx.Update(moved)
				} else {
					idx.Update(still)
				}
			}), "update")
			require.Equal(t, len(entities), idx.Count())
		})
	}
}
