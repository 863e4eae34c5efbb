package core

import (
	"math"

	"golang.org/x/exp/constraints"
)

// FastFloor returns floor(v) as an int32 without calling math.Floor:
// truncate toward zero, then step down one when truncation rounded a
// negative value up. Values outside the int32 range saturate and NaN maps
// to zero.
func FastFloor[F constraints.Float](v F) int32 {
	if v != v {
		return 0
	}
	if v >= math.MaxInt32 {
		return math.MaxInt32
	}
	if v <= math.MinInt32 {
		return math.MinInt32
	}
	i := int32(v)
	if v < F(i) {
		i--
	}
	return i
}

// Clamp limits v to [lo, hi].
func Clamp[T constraints.Float | constraints.Integer](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampToBox returns the point of b closest to p.
func ClampToBox(p Vector3, b AABB3D) Vector3 {
	return Vector3{
		Clamp(p[0], b.Min[0], b.Max[0]),
		Clamp(p[1], b.Min[1], b.Max[1]),
		Clamp(p[2], b.Min[2], b.Max[2]),
	}
}

// ClampToRect returns the point of r closest to p.
func ClampToRect(p Vector2, r Rect) Vector2 {
	return Vector2{
		Clamp(p[0], r.Min[0], r.Max[0]),
		Clamp(p[1], r.Min[1], r.Max[1]),
	}
}

// DistanceSq3 is the squared euclidean distance between a and b.
func DistanceSq3(a, b Vector3) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	dz := a[2] - b[2]
	return dx*dx + dy*dy + dz*dz
}

// DistanceSq2 is the squared euclidean distance between a and b.
func DistanceSq2(a, b Vector2) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	return dx*dx + dy*dy
}

// BoxDistanceSq is the squared distance from p to the closest point of b,
// zero when p is inside.
func BoxDistanceSq(p Vector3, b AABB3D) float64 {
	return DistanceSq3(p, ClampToBox(p, b))
}

// RectDistanceSq is the squared distance from p to the closest point of r,
// zero when p is inside.
func RectDistanceSq(p Vector2, r Rect) float64 {
	return DistanceSq2(p, ClampToRect(p, r))
}

// BoxContains reports whether p lies in b, boundaries included.
func BoxContains(b AABB3D, p Vector3) bool {
	return p[0] >= b.Min[0] && p[0] <= b.Max[0] &&
		p[1] >= b.Min[1] && p[1] <= b.Max[1] &&
		p[2] >= b.Min[2] && p[2] <= b.Max[2]
}

// BoxesIntersect reports whether a and b overlap, touching faces included.
func BoxesIntersect(a, b AABB3D) bool {
	return a.Min[0] <= b.Max[0] && a.Max[0] >= b.Min[0] &&
		a.Min[1] <= b.Max[1] && a.Max[1] >= b.Min[1] &&
		a.Min[2] <= b.Max[2] && a.Max[2] >= b.Min[2]
}

// RectsIntersect reports whether a and b overlap, touching edges included.
func RectsIntersect(a, b Rect) bool {
	return a.Min[0] <= b.Max[0] && a.Max[0] >= b.Min[0] &&
		a.Min[1] <= b.Max[1] && a.Max[1] >= b.Min[1]
}

// Center returns the midpoint of b.
func (b AABB3D) Center() Vector3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Center returns the midpoint of r.
func (r Rect) Center() Vector2 {
	return r.Min.Add(r.Max).Mul(0.5)
}

// SearchRadiusSq converts a QueryNearest bound into the squared distance
// limit. ok is false for bounds that can never match anything.
func SearchRadiusSq(maxDistance float64) (limit float64, ok bool) {
	if math.IsNaN(maxDistance) || maxDistance < 0 {
		return 0, false
	}
	if math.IsInf(maxDistance, 1) {
		return math.Inf(1), true
	}
	return maxDistance * maxDistance, true
}
