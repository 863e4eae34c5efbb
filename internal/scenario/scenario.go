package scenario

import (
	"os"

	"spatialkit/internal/core"

	"github.com/BurntSushi/toml"
	"github.com/aukilabs/go-tooling/pkg/errors"
)

// Config describes one benchmark run: the index under test, the world the
// agents move in and the work done every tick.
type Config struct {
	Name   string       `toml:"name"`
	Seed   int64        `toml:"seed"`
	Index  IndexConfig  `toml:"index"`
	World  WorldConfig  `toml:"world"`
	Agents AgentsConfig `toml:"agents"`
	Run    RunConfig    `toml:"run"`
	Zones  []ZoneConfig `toml:"zones"`
}

type IndexConfig struct {
	Kind               string  `toml:"kind"`      // grid, quadtree or octree
	CellSize           float64 `toml:"cell_size"` // grid only
	MaxDepth           int     `toml:"max_depth"`
	MaxEntitiesPerNode int     `toml:"max_entities_per_node"`
	Plane              string  `toml:"plane"` // xz or xy, ignored by the octree
}

type WorldConfig struct {
	Min [3]float64 `toml:"min"`
	Max [3]float64 `toml:"max"`
}

// Bounds returns the world as a box.
func (w WorldConfig) Bounds() core.AABB3D {
	return core.AABB3D{Min: w.Min, Max: w.Max}
}

type AgentsConfig struct {
	Count     int     `toml:"count"`      // random agents, used when no spawn file is set
	MaxSpeed  float64 `toml:"max_speed"`  // units per second
	SpawnFile string  `toml:"spawn_file"` // YAML spawn table, relative to the working directory
}

type RunConfig struct {
	Ticks          int     `toml:"ticks"`
	Dt             float64 `toml:"dt"` // seconds per tick
	QueriesPerTick int     `toml:"queries_per_tick"`
	QueryRadius    float64 `toml:"query_radius"`
}

type ZoneConfig struct {
	Name   string     `toml:"name"`
	Center [3]float64 `toml:"center"`
	Radius float64    `toml:"radius"`
}

// Load reads a TOML scenario. Keys missing from the file keep their default
// value.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("reading scenario failed").
			WithTag("path", path).
			Wrap(err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.New("parsing scenario failed").
			WithTag("path", path).
			Wrap(err)
	}
	return cfg, nil
}

// Parse decodes a TOML scenario over the defaults and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the scenario used when no file is given.
func Default() *Config {
	return &Config{
		Name: "default",
		Seed: 1,
		Index: IndexConfig{
			Kind:               string(core.KindGrid),
			CellSize:           16,
			MaxDepth:           8,
			MaxEntitiesPerNode: 8,
			Plane:              core.PlaneXZ.String(),
		},
		World: WorldConfig{
			Min: [3]float64{-512, -64, -512},
			Max: [3]float64{512, 64, 512},
		},
		Agents: AgentsConfig{
			Count:    1000,
			MaxSpeed: 8,
		},
		Run: RunConfig{
			Ticks:          600,
			Dt:             1.0 / 30,
			QueriesPerTick: 100,
			QueryRadius:    32,
		},
	}
}

// Validate checks the values the scene and the index factory cannot recover
// from.
func (c *Config) Validate() error {
	switch core.Kind(c.Index.Kind) {
	case core.KindGrid, core.KindQuadTree, core.KindOctree:
	default:
		return core.InvalidArgument("unknown index kind", "index.kind", c.Index.Kind)
	}

	if _, err := core.ParsePlane(c.Index.Plane); err != nil {
		return err
	}
	if err := core.ValidateBounds(c.World.Bounds()); err != nil {
		return err
	}
	if c.Agents.Count < 0 {
		return core.InvalidArgument("agents.count must not be negative", "agents.count", c.Agents.Count)
	}
	if c.Agents.MaxSpeed < 0 {
		return core.InvalidArgument("agents.max_speed must not be negative", "agents.max_speed", c.Agents.MaxSpeed)
	}
	if err := core.ValidatePositive("run.dt", c.Run.Dt); err != nil {
		return err
	}
	if c.Run.Ticks < 0 {
		return core.InvalidArgument("run.ticks must not be negative", "run.ticks", c.Run.Ticks)
	}
	if !(c.Run.QueryRadius >= 0) {
		return core.InvalidArgument("run.query_radius must not be negative", "run.query_radius", c.Run.QueryRadius)
	}

	for _, z := range c.Zones {
		if err := core.ValidatePositive("zones.radius", z.Radius); err != nil {
			return err
		}
	}
	return nil
}
