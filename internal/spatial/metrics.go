package spatial

import (
	"time"

	"spatialkit/internal/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	indexLabel = "index"
	kindLabel  = "kind"
	opLabel    = "op"
	queryLabel = "query"

	opInsert = "insert"
	opRemove = "remove"
	opUpdate = "update"
	opClear  = "clear"

	queryRadius  = "radius"
	queryBounds  = "bounds"
	queryNearest = "nearest"
)

var (
	indexOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spatialkit_index_operations_total",
		Help: "The number of mutations applied to a spatial index.",
	}, []string{
		indexLabel,
		opLabel,
	})

	indexRemoveMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spatialkit_index_remove_misses_total",
		Help: "The number of removals of ids that were not indexed.",
	}, []string{
		indexLabel,
	})

	indexEntities = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "spatialkit_index_entities",
		Help: "The number of entities held by a spatial index.",
	}, []string{
		indexLabel,
		kindLabel,
	})

	indexQueryResults = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spatialkit_index_query_results",
		Help:    "The number of entities returned by a spatial query.",
		Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64, 128, 256, 512},
	}, []string{
		indexLabel,
		queryLabel,
	})

	indexQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spatialkit_index_query_duration_seconds",
		Help:    "The time spent answering a spatial query.",
		Buckets: prometheus.ExponentialBuckets(0.000001, 4, 10),
	}, []string{
		indexLabel,
		queryLabel,
	})
)

// Instrumented is a SpatialIndex that records Prometheus metrics about the
// index it wraps. It does not change the wrapped index behavior.
type Instrumented[E core.Entity] struct {
	core.SpatialIndex[E]

	inserts   prometheus.Counter
	removes   prometheus.Counter
	updates   prometheus.Counter
	clears    prometheus.Counter
	misses    prometheus.Counter
	entities  prometheus.Gauge
	results   map[string]prometheus.Observer
	durations map[string]prometheus.Observer
}

// Instrument wraps idx so that its operations are reported under name.
func Instrument[E core.Entity](name string, idx core.SpatialIndex[E]) *Instrumented[E] {
	kind := string(idx.Stats().Kind)

	in := &Instrumented[E]{
		SpatialIndex: idx,
		inserts:      indexOperations.WithLabelValues(name, opInsert),
		removes:      indexOperations.WithLabelValues(name, opRemove),
		updates:      indexOperations.WithLabelValues(name, opUpdate),
		clears:       indexOperations.WithLabelValues(name, opClear),
		misses:       indexRemoveMisses.WithLabelValues(name),
		entities:     indexEntities.WithLabelValues(name, kind),
		results:      make(map[string]prometheus.Observer, 3),
		durations:    make(map[string]prometheus.Observer, 3),
	}

	for _, q := range []string{queryRadius, queryBounds, queryNearest} {
		in.results[q] = indexQueryResults.WithLabelValues(name, q)
		in.durations[q] = indexQueryDuration.WithLabelValues(name, q)
	}

	in.entities.Set(float64(idx.Count()))
	return in
}

// Unwrap returns the wrapped index.
func (in *Instrumented[E]) Unwrap() core.SpatialIndex[E] {
	return in.SpatialIndex
}

func (in *Instrumented[E]) Insert(entity E) {
	in.SpatialIndex.Insert(entity)
	in.inserts.Inc()
	in.entities.Set(float64(in.SpatialIndex.Count()))
}

func (in *Instrumented[E]) Remove(entity E) bool {
	removed := in.SpatialIndex.Remove(entity)
	if !removed {
		in.misses.Inc()
		return false
	}

	in.removes.Inc()
	in.entities.Set(float64(in.SpatialIndex.Count()))
	return true
}

func (in *Instrumented[E]) Update(entity E) {
	in.SpatialIndex.Update(entity)
	in.updates.Inc()
	in.entities.Set(float64(in.SpatialIndex.Count()))
}

// UpdateBatch counts one update per element.
func (in *Instrumented[E]) UpdateBatch(entities []E) {
	for _, e := range entities {
		in.SpatialIndex.Update(e)
	}
	in.updates.Add(float64(len(entities)))
	in.entities.Set(float64(in.SpatialIndex.Count()))
}

func (in *Instrumented[E]) Clear() {
	in.SpatialIndex.Clear()
	in.clears.Inc()
	in.entities.Set(0)
}

func (in *Instrumented[E]) QueryRadius(center core.Vector3, radius float64, results []E) []E {
	start := time.Now()
	n := len(results)
	results = in.SpatialIndex.QueryRadius(center, radius, results)
	in.observe(queryRadius, start, len(results)-n)
	return results
}

func (in *Instrumented[E]) QueryBounds(bounds core.AABB3D, results []E) []E {
	start := time.Now()
	n := len(results)
	results = in.SpatialIndex.QueryBounds(bounds, results)
	in.observe(queryBounds, start, len(results)-n)
	return results
}

func (in *Instrumented[E]) QueryNearest(position core.Vector3, maxDistance float64, filter core.FilterFunc[E]) (E, bool) {
	start := time.Now()
	e, ok := in.SpatialIndex.QueryNearest(position, maxDistance, filter)

	found := 0
	if ok {
		found = 1
	}
	in.observe(queryNearest, start, found)
	return e, ok
}

func (in *Instrumented[E]) observe(query string, start time.Time, found int) {
	in.durations[query].Observe(time.Since(start).Seconds())
	in.results[query].Observe(float64(found))
}
