package trigger

import (
	"maps"
	"slices"

	"spatialkit/internal/core"

	"go.uber.org/zap"
)

// Event reports the entities that crossed a zone boundary since the previous
// poll. Ids are sorted ascending.
type Event struct {
	Zone    string `json:"zone"`
	Entered []int  `json:"entered,omitempty"`
	Exited  []int  `json:"exited,omitempty"`
}

// Empty reports whether nothing crossed the zone.
func (e Event) Empty() bool {
	return len(e.Entered) == 0 && len(e.Exited) == 0
}

// Zone is a sphere (or a vertical cylinder on a quadtree) watched through a
// spatial index. Membership is only sampled when Poll is called.
type Zone[E core.Entity] struct {
	name   string
	center core.Vector3
	radius float64
	index  core.SpatialIndex[E]
	filter core.FilterFunc[E]

	inside  map[int]struct{}
	current map[int]struct{}
	buffer  []E
}

// NewZone creates a zone named name over index. A nil filter watches every
// entity.
func NewZone[E core.Entity](name string, index core.SpatialIndex[E], center core.Vector3, radius float64, filter core.FilterFunc[E]) (*Zone[E], error) {
	if err := core.ValidatePositive("radius", radius); err != nil {
		return nil, err
	}

	return &Zone[E]{
		name:    name,
		center:  center,
		radius:  radius,
		index:   index,
		filter:  filter,
		inside:  make(map[int]struct{}),
		current: make(map[int]struct{}),
	}, nil
}

func (z *Zone[E]) Name() string {
	return z.name
}

func (z *Zone[E]) Center() core.Vector3 {
	return z.center
}

func (z *Zone[E]) Radius() float64 {
	return z.radius
}

// Move recenters the zone. The change is observed on the next Poll.
func (z *Zone[E]) Move(center core.Vector3) {
	z.center = center
}

// Contains reports whether id was inside at the last poll.
func (z *Zone[E]) Contains(id int) bool {
	_, ok := z.inside[id]
	return ok
}

// Inside returns the sorted ids that were inside at the last poll.
func (z *Zone[E]) Inside() []int {
	return slices.Sorted(maps.Keys(z.inside))
}

// Poll queries the index and diffs the result against the previous poll.
func (z *Zone[E]) Poll() Event {
	z.buffer = z.index.QueryRadius(z.center, z.radius, z.buffer[:0])

	clear(z.current)
	for _, e := range z.buffer {
		if z.filter != nil && !z.filter(e) {
			continue
		}
		z.current[e.SpatialID()] = struct{}{}
	}

	// Drop references held by the reused buffer.
	clear(z.buffer)

	event := Event{Zone: z.name}
	for id := range z.current {
		if _, ok := z.inside[id]; !ok {
			event.Entered = append(event.Entered, id)
		}
	}
	for id := range z.inside {
		if _, ok := z.current[id]; !ok {
			event.Exited = append(event.Exited, id)
		}
	}
	slices.Sort(event.Entered)
	slices.Sort(event.Exited)

	z.inside, z.current = z.current, z.inside
	return event
}

// Reset forgets the membership so the next Poll reports every entity inside
// as entered.
func (z *Zone[E]) Reset() {
	clear(z.inside)
}

// Set polls a group of zones together.
type Set[E core.Entity] struct {
	zones  []*Zone[E]
	logger *zap.Logger
}

// NewSet creates an empty set. A nil logger discards output.
func NewSet[E core.Entity](logger *zap.Logger) *Set[E] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Set[E]{logger: logger}
}

// Add appends zones to the set.
func (s *Set[E]) Add(zones ...*Zone[E]) {
	s.zones = append(s.zones, zones...)
}

// Zones returns the zones in the order they were added.
func (s *Set[E]) Zones() []*Zone[E] {
	return s.zones
}

// Poll polls every zone and returns the non-empty events, in zone order.
func (s *Set[E]) Poll() []Event {
	var events []Event
	for _, z := range s.zones {
		event := z.Poll()
		if event.Empty() {
			continue
		}

		s.logger.Debug("zone crossed",
			zap.String("zone", event.Zone),
			zap.Ints("entered", event.Entered),
			zap.Ints("exited", event.Exited),
		)
		events = append(events, event)
	}
	return events
}
