package scenario

import (
	"os"

	"spatialkit/internal/core"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Spawn places one agent, or Count agents spread around Position when Count
// is greater than one.
type Spawn struct {
	ID       int        `yaml:"id"` // 0 = assigned by the scene
	Position [3]float64 `yaml:"position"`
	Velocity [3]float64 `yaml:"velocity"`
	Count    int        `yaml:"count"`
	Spread   float64    `yaml:"spread"` // half side of the square Count agents are scattered in
}

// SpawnTable is the content of a YAML spawn file.
type SpawnTable struct {
	Spawns []Spawn `yaml:"spawns"`
}

// Total returns the number of agents the table spawns.
func (t *SpawnTable) Total() int {
	n := 0
	for _, s := range t.Spawns {
		n += max(s.Count, 1)
	}
	return n
}

// LoadSpawns reads a YAML spawn table.
func LoadSpawns(path string) (*SpawnTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("reading spawn table failed").
			WithTag("path", path).
			Wrap(err)
	}

	t, err := ParseSpawns(data)
	if err != nil {
		return nil, errors.New("parsing spawn table failed").
			WithTag("path", path).
			Wrap(err)
	}
	return t, nil
}

// ParseSpawns decodes and validates a YAML spawn table.
func ParseSpawns(data []byte) (*SpawnTable, error) {
	var t SpawnTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, err
	}

	seen := make(map[int]bool, len(t.Spawns))
	for i, s := range t.Spawns {
		if s.Count < 0 {
			return nil, core.InvalidArgument("spawn count must not be negative", "spawns.count", i)
		}
		if s.Spread < 0 {
			return nil, core.InvalidArgument("spawn spread must not be negative", "spawns.spread", i)
		}
		if s.ID == 0 {
			continue
		}
		if s.Count > 1 {
			return nil, core.InvalidArgument("a spawn with an id places a single agent", "spawns.id", s.ID)
		}
		if seen[s.ID] {
			return nil, core.InvalidArgument("duplicate spawn id", "spawns.id", s.ID)
		}
		seen[s.ID] = true
	}
	return &t, nil
}
