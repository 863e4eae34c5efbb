package scene

import (
	"math/rand"
	"sync"

	"spatialkit/internal/core"
	"spatialkit/internal/scenario"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"go.uber.org/zap"
)

// ErrTypeDuplicateAgent is the type of the error returned when an agent id
// is already in the scene.
const ErrTypeDuplicateAgent = "duplicate_agent"

// Agent is a moving point owned by the scene.
type Agent struct {
	ID       int          `json:"id"`
	Pos      core.Vector3 `json:"position"`
	Velocity core.Vector3 `json:"velocity"`
}

func (a Agent) SpatialID() int         { return a.ID }
func (a Agent) Position() core.Vector3 { return a.Pos }

// Manager moves agents inside a box and keeps a spatial index in sync with
// them.
type Manager struct {
	mu     sync.RWMutex
	bounds core.AABB3D
	index  core.SpatialIndex[Agent]
	logger *zap.Logger

	agents []Agent
	slots  map[int]int // agent id to position in agents
	nextID int
}

// NewManager creates an empty scene. The index is cleared so that it only
// ever holds the scene's agents.
func NewManager(bounds core.AABB3D, index core.SpatialIndex[Agent], logger *zap.Logger) (*Manager, error) {
	if err := core.ValidateBounds(bounds); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	index.Clear()
	return &Manager{
		bounds: bounds,
		index:  index,
		logger: logger,
		slots:  make(map[int]int),
		nextID: 1,
	}, nil
}

// Bounds returns the box agents bounce in.
func (m *Manager) Bounds() core.AABB3D {
	return m.bounds
}

// Index returns the index the scene writes to. Callers must not mutate it.
func (m *Manager) Index() core.SpatialIndex[Agent] {
	return m.index
}

// Add inserts an agent. An agent with a zero id gets the next free id. The
// position is clamped into the scene bounds.
func (m *Manager) Add(a Agent) (Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.add(a)
}

func (m *Manager) add(a Agent) (Agent, error) {
	if a.ID == 0 {
		for {
			a.ID = m.nextID
			m.nextID++
			if _, taken := m.slots[a.ID]; !taken {
				break
			}
		}
	}

	if _, exists := m.slots[a.ID]; exists {
		return Agent{}, errors.New("agent already in scene").
			WithType(ErrTypeDuplicateAgent).
			WithTag("id", a.ID)
	}

	a.Pos = core.ClampToBox(a.Pos, m.bounds)
	m.slots[a.ID] = len(m.agents)
	m.agents = append(m.agents, a)
	m.index.Insert(a)
	return a, nil
}

// Remove takes an agent out of the scene.
func (m *Manager) Remove(id int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	slot, ok := m.slots[id]
	if !ok {
		return false
	}

	m.index.Remove(m.agents[slot])

	last := len(m.agents) - 1
	if slot != last {
		m.agents[slot] = m.agents[last]
		m.slots[m.agents[slot].ID] = slot
	}
	m.agents = m.agents[:last]
	delete(m.slots, id)
	return true
}

// Agent returns a copy of the agent with the given id.
func (m *Manager) Agent(id int) (Agent, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	slot, ok := m.slots[id]
	if !ok {
		return Agent{}, false
	}
	return m.agents[slot], true
}

// Agents returns a copy of every agent.
func (m *Manager) Agents() []Agent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]Agent(nil), m.agents...)
}

// Count returns the number of agents.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.agents)
}

// SetVelocity changes the velocity of an agent from the next tick on.
func (m *Manager) SetVelocity(id int, v core.Vector3) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	slot, ok := m.slots[id]
	if !ok {
		return false
	}
	m.agents[slot].Velocity = v
	return true
}

// Tick advances every agent by dt seconds, reflects the ones that left the
// bounds and pushes the new positions to the index in one batch.
func (m *Manager) Tick(dt float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.agents {
		a := &m.agents[i]
		a.Pos = a.Pos.Add(a.Velocity.Mul(dt))
		a.Pos, a.Velocity = reflect(a.Pos, a.Velocity, m.bounds)
	}
	m.index.UpdateBatch(m.agents)
}

// reflect mirrors p back into b on every axis it crossed and flips the
// matching velocity component.
func reflect(p, v core.Vector3, b core.AABB3D) (core.Vector3, core.Vector3) {
	for axis := 0; axis < 3; axis++ {
		switch {
		case p[axis] < b.Min[axis]:
			p[axis] = 2*b.Min[axis] - p[axis]
			v[axis] = -v[axis]
		case p[axis] > b.Max[axis]:
			p[axis] = 2*b.Max[axis] - p[axis]
			v[axis] = -v[axis]
		}
	}
	// Agents faster than the box is wide may still overshoot.
	return core.ClampToBox(p, b), v
}

// Neighbors appends the agents within radius of the agent id, excluding it.
func (m *Manager) Neighbors(id int, radius float64, results []Agent) []Agent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	slot, ok := m.slots[id]
	if !ok {
		return results
	}

	n := len(results)
	results = m.index.QueryRadius(m.agents[slot].Pos, radius, results)
	for i := n; i < len(results); i++ {
		if results[i].ID == id {
			results = append(results[:i], results[i+1:]...)
			break
		}
	}
	return results
}

// NearestOther returns the agent closest to the agent id, other than itself.
func (m *Manager) NearestOther(id int, maxDistance float64) (Agent, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	slot, ok := m.slots[id]
	if !ok {
		return Agent{}, false
	}
	return m.index.QueryNearest(m.agents[slot].Pos, maxDistance, func(a Agent) bool {
		return a.ID != id
	})
}

// QueryRadius appends the agents within radius of center.
func (m *Manager) QueryRadius(center core.Vector3, radius float64, results []Agent) []Agent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.index.QueryRadius(center, radius, results)
}

// Clear removes every agent. Ids are not reused.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Debug("scene cleared", zap.Int("agents", len(m.agents)))
	m.agents = m.agents[:0]
	clear(m.slots)
	m.index.Clear()
}

// SpawnRandom adds n agents at uniformly random positions with random
// velocities of at most maxSpeed on each axis.
func (m *Manager) SpawnRandom(rng *rand.Rand, n int, maxSpeed float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := 0; i < n; i++ {
		var a Agent
		for axis := 0; axis < 3; axis++ {
			a.Pos[axis] = m.bounds.Min[axis] + rng.Float64()*(m.bounds.Max[axis]-m.bounds.Min[axis])
			a.Velocity[axis] = (rng.Float64()*2 - 1) * maxSpeed
		}
		// Zero ids never collide.
		_, _ = m.add(a)
	}

	m.logger.Debug("random agents spawned",
		zap.Int("count", n),
		zap.Float64("max_speed", maxSpeed),
	)
}

// SpawnTable adds the agents described by a spawn table. Groups are scattered
// on the X and Z axes within their spread.
func (m *Manager) SpawnTable(rng *rand.Rand, table *scenario.SpawnTable) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range table.Spawns {
		count := max(s.Count, 1)
		for i := 0; i < count; i++ {
			a := Agent{
				ID:       s.ID,
				Pos:      s.Position,
				Velocity: s.Velocity,
			}
			if count > 1 && s.Spread > 0 {
				a.Pos[0] += (rng.Float64()*2 - 1) * s.Spread
				a.Pos[2] += (rng.Float64()*2 - 1) * s.Spread
			}

			if _, err := m.add(a); err != nil {
				return err
			}
		}
	}

	m.logger.Debug("spawn table loaded", zap.Int("agents", table.Total()))
	return nil
}
