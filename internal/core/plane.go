package core

import "fmt"

// Plane selects the two axes a 2D structure partitions over. The remaining
// axis is kept on the entity but never used for routing.
type Plane uint8

const (
	// PlaneXZ is the ground plane; Y is height.
	PlaneXZ Plane = iota
	// PlaneXY is screen space; Z is depth.
	PlaneXY
)

func (p Plane) Valid() bool {
	return p == PlaneXZ || p == PlaneXY
}

func (p Plane) String() string {
	switch p {
	case PlaneXZ:
		return "xz"
	case PlaneXY:
		return "xy"
	default:
		return fmt.Sprintf("plane(%d)", uint8(p))
	}
}

// ParsePlane parses the String form of a Plane.
func ParsePlane(s string) (Plane, error) {
	switch s {
	case "xz", "XZ", "":
		return PlaneXZ, nil
	case "xy", "XY":
		return PlaneXY, nil
	default:
		return 0, InvalidArgument("unknown plane", "plane", s)
	}
}

// Project drops the out-of-plane axis of v.
func (p Plane) Project(v Vector3) Vector2 {
	if p == PlaneXY {
		return Vector2{v[0], v[1]}
	}
	return Vector2{v[0], v[2]}
}

// ProjectBounds returns the footprint of b on the plane.
func (p Plane) ProjectBounds(b AABB3D) Rect {
	return Rect{Min: p.Project(b.Min), Max: p.Project(b.Max)}
}
