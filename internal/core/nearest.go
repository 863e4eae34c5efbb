package core

// Nearest tracks the best QueryNearest candidate seen so far.
type Nearest[E Entity] struct {
	Entity E
	Found  bool

	// DistSq is the squared distance of Entity, or the search limit while
	// nothing has been found.
	DistSq float64
}

// NewNearest starts a search limited to limitSq.
func NewNearest[E Entity](limitSq float64) Nearest[E] {
	return Nearest[E]{DistSq: limitSq}
}

// Offer records e if it is closer than the current best. The first
// candidate may sit exactly on the limit.
func (n *Nearest[E]) Offer(e E, distSq float64) {
	if distSq < n.DistSq || (!n.Found && distSq <= n.DistSq) {
		n.Entity = e
		n.DistSq = distSq
		n.Found = true
	}
}

// CanImprove reports whether a region whose closest point is lowerBoundSq
// away may still hold a better candidate.
func (n *Nearest[E]) CanImprove(lowerBoundSq float64) bool {
	if n.Found {
		return lowerBoundSq < n.DistSq
	}
	return lowerBoundSq <= n.DistSq
}
