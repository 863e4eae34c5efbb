package spatialkit

import (
	"math"

	"spatialkit/internal/core"
)

// Vec3 creates a 3D vector.
func Vec3(x, y, z float64) Vector3 {
	return Vector3{x, y, z}
}

// Distance is the euclidean distance between two points.
func Distance(a, b Vector3) float64 {
	return math.Sqrt(core.DistanceSq3(a, b))
}

// NewAABB3D creates a box from its corner coordinates. The corners may be
// given in any order.
func NewAABB3D(x1, y1, z1, x2, y2, z2 float64) AABB3D {
	return AABB3D{
		Min: Vector3{math.Min(x1, x2), math.Min(y1, y2), math.Min(z1, z2)},
		Max: Vector3{math.Max(x1, x2), math.Max(y1, y2), math.Max(z1, z2)},
	}
}

// AABBFromCenterExtents creates a box from its center and half size.
func AABBFromCenterExtents(center, extents Vector3) AABB3D {
	return AABB3D{
		Min: center.Sub(extents),
		Max: center.Add(extents),
	}
}

// AABBSize returns the size of a box on each axis.
func AABBSize(b AABB3D) Vector3 {
	return b.Max.Sub(b.Min)
}

// AABBContains checks if a box contains a point, boundaries included.
func AABBContains(b AABB3D, p Vector3) bool {
	return core.BoxContains(b, p)
}

// AABBIntersects checks if two boxes overlap, touching faces included.
func AABBIntersects(a, b AABB3D) bool {
	return core.BoxesIntersect(a, b)
}

// AABBExpand grows a box by amount on every side.
func AABBExpand(b AABB3D, amount float64) AABB3D {
	d := Vector3{amount, amount, amount}
	return AABB3D{Min: b.Min.Sub(d), Max: b.Max.Add(d)}
}

// NewRect creates a rectangle on a plane from its corner coordinates.
func NewRect(a1, b1, a2, b2 float64) Rect {
	return Rect{
		Min: Vector2{math.Min(a1, a2), math.Min(b1, b2)},
		Max: Vector2{math.Max(a1, a2), math.Max(b1, b2)},
	}
}
