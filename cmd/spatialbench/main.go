package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"os"
	"syscall"
	"time"

	"spatialkit/internal/core"
	"spatialkit/internal/scenario"
	"spatialkit/internal/scene"
	"spatialkit/internal/trigger"
	"spatialkit/pkg/spatialkit"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	version = "v0.1.0"

	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "spatialbench_tick_duration_seconds",
		Help:    "The time spent simulating and querying one tick.",
		Buckets: prometheus.ExponentialBuckets(0.00001, 2, 16),
	})

	zoneEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spatialbench_zone_crossings_total",
		Help: "The number of agents that entered or exited a zone.",
	}, []string{
		"zone",
		"direction",
	})
)

type config struct {
	Scenario    string `cli:""        env:"SPATIALBENCH_SCENARIO"     help:"TOML scenario file. The built-in scenario is used when empty."`
	Spawns      string `cli:""        env:"SPATIALBENCH_SPAWNS"       help:"YAML spawn table. Overrides the scenario spawn file."`
	Index       string `cli:""        env:"SPATIALBENCH_INDEX"        help:"Index kind (grid|quadtree|octree). Overrides the scenario."`
	Ticks       int    `cli:""        env:"SPATIALBENCH_TICKS"        help:"Number of ticks to run. Overrides the scenario when positive."`
	MetricsAddr string `cli:""        env:"SPATIALBENCH_METRICS_ADDR" help:"Listening address for Prometheus metrics. Disabled when empty."`
	LogLevel    string `cli:""        env:"SPATIALBENCH_LOG_LEVEL"    help:"Log level (debug|info|warn|error)."`
	LogDev      bool   `cli:",hidden" env:"SPATIALBENCH_LOG_DEV"      help:"Human readable logs."`
	Version     bool   `cli:""        env:"-"                         help:"Show version."`
	Help        bool   `cli:""        env:"-"                         help:"Show help."`
}

// summary is printed as JSON once the run completes.
type summary struct {
	RunID         string           `json:"run_id"`
	Scenario      string           `json:"scenario"`
	Index         core.Stats       `json:"index"`
	Agents        int              `json:"agents"`
	Ticks         int              `json:"ticks"`
	Elapsed       time.Duration    `json:"elapsed_ns"`
	TickAvg       time.Duration    `json:"tick_avg_ns"`
	RadiusQueries int              `json:"radius_queries"`
	RadiusResults int              `json:"radius_results"`
	NearestFound  int              `json:"nearest_found"`
	ZoneEvents    int              `json:"zone_events"`
	Zones         map[string][]int `json:"zones,omitempty"`
}

func main() {
	conf := config{
		LogLevel: zapcore.InfoLevel.String(),
	}

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Runs a moving crowd through a spatial index and reports query statistics.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	errors.Encoder = json.Marshal

	logger, err := newLogger(conf.LogLevel, conf.LogDev)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(ctx, conf, logger); err != nil {
		logger.Fatal("run failed", zap.Error(err))
	}
}

func newLogger(level string, dev bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, errors.New("invalid log level").
			WithTag("level", level).
			Wrap(err)
	}

	cfg := zap.NewProductionConfig()
	if dev {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func loadScenario(conf config) (*scenario.Config, error) {
	sc := scenario.Default()
	if conf.Scenario != "" {
		var err error
		if sc, err = scenario.Load(conf.Scenario); err != nil {
			return nil, err
		}
	}

	if conf.Index != "" {
		sc.Index.Kind = conf.Index
	}
	if conf.Ticks > 0 {
		sc.Run.Ticks = conf.Ticks
	}
	if conf.Spawns != "" {
		sc.Agents.SpawnFile = conf.Spawns
	}
	return sc, sc.Validate()
}

func indexConfig(sc *scenario.Config, logger *zap.Logger) (spatialkit.Config, error) {
	kind, err := spatialkit.ParseKind(sc.Index.Kind)
	if err != nil {
		return spatialkit.Config{}, err
	}
	plane, err := spatialkit.ParsePlane(sc.Index.Plane)
	if err != nil {
		return spatialkit.Config{}, err
	}

	return spatialkit.Config{
		Kind:               kind,
		Bounds:             sc.World.Bounds(),
		CellSize:           sc.Index.CellSize,
		MaxDepth:           sc.Index.MaxDepth,
		MaxEntitiesPerNode: sc.Index.MaxEntitiesPerNode,
		Plane:              plane,
		MetricsName:        sc.Name,
		Logger:             logger,
	}, nil
}

func run(ctx context.Context, conf config, logger *zap.Logger) error {
	runID := uuid.NewString()
	logger = logger.With(zap.String("run_id", runID))

	sc, err := loadScenario(conf)
	if err != nil {
		return err
	}

	idxConf, err := indexConfig(sc, logger)
	if err != nil {
		return err
	}
	idx, err := spatialkit.New[scene.Agent](idxConf)
	if err != nil {
		return err
	}

	manager, err := scene.NewManager(sc.World.Bounds(), idx, logger)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(sc.Seed))
	if sc.Agents.SpawnFile != "" {
		table, err := scenario.LoadSpawns(sc.Agents.SpawnFile)
		if err != nil {
			return err
		}
		if err := manager.SpawnTable(rng, table); err != nil {
			return err
		}
	} else {
		manager.SpawnRandom(rng, sc.Agents.Count, sc.Agents.MaxSpeed)
	}

	zones := trigger.NewSet[scene.Agent](logger)
	for _, z := range sc.Zones {
		zone, err := trigger.NewZone[scene.Agent](z.Name, idx, z.Center, z.Radius, nil)
		if err != nil {
			return err
		}
		zones.Add(zone)
	}

	if conf.MetricsAddr != "" {
		server := &http.Server{
			Addr:    conf.MetricsAddr,
			Handler: promhttp.Handler(),
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
		defer server.Close()
	}

	logger.Info("run started",
		zap.String("scenario", sc.Name),
		zap.String("index", sc.Index.Kind),
		zap.Int("agents", manager.Count()),
		zap.Int("ticks", sc.Run.Ticks),
	)

	s := summary{
		RunID:    runID,
		Scenario: sc.Name,
		Agents:   manager.Count(),
	}

	var results []scene.Agent
	start := time.Now()

	for tick := 0; tick < sc.Run.Ticks; tick++ {
		if ctx.Err() != nil {
			logger.Warn("run interrupted", zap.Int("tick", tick))
			break
		}

		tickStart := time.Now()
		manager.Tick(sc.Run.Dt)

		agents := manager.Agents()
		for q := 0; q < sc.Run.QueriesPerTick && len(agents) > 0; q++ {
			a := agents[rng.Intn(len(agents))]

			results = manager.Neighbors(a.ID, sc.Run.QueryRadius, results[:0])
			s.RadiusQueries++
			s.RadiusResults += len(results)

			if _, ok := manager.NearestOther(a.ID, math.Inf(1)); ok {
				s.NearestFound++
			}
		}

		for _, event := range zones.Poll() {
			zoneEvents.WithLabelValues(event.Zone, "entered").Add(float64(len(event.Entered)))
			zoneEvents.WithLabelValues(event.Zone, "exited").Add(float64(len(event.Exited)))
			s.ZoneEvents += len(event.Entered) + len(event.Exited)
		}

		tickDuration.Observe(time.Since(tickStart).Seconds())
		s.Ticks++
	}

	s.Elapsed = time.Since(start)
	if s.Ticks > 0 {
		s.TickAvg = s.Elapsed / time.Duration(s.Ticks)
	}
	s.Index = idx.Stats()

	if len(zones.Zones()) > 0 {
		s.Zones = make(map[string][]int, len(zones.Zones()))
		for _, z := range zones.Zones() {
			s.Zones[z.Name()] = z.Inside()
		}
	}

	logger.Info("run completed",
		zap.Int("ticks", s.Ticks),
		zap.Duration("elapsed", s.Elapsed),
		zap.Duration("tick_avg", s.TickAvg),
	)

	out, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.New("encoding summary failed").Wrap(err)
	}
	fmt.Println(string(out))
	return nil
}
