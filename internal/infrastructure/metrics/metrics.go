// Package metrics exposes GlowUp's Prometheus collectors.
//
// Collectors are registered on the Registerer passed to New, so tests and
// multiple instances in one process never collide on the default registry.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "glowup"

// Metrics implements command.Metrics, messaging.Observer and
// scheduler.Observer.
type Metrics struct {
	pointsAwarded  *prometheus.CounterVec
	xpAwarded      *prometheus.CounterVec
	levelUps       *prometheus.CounterVec
	addPoints      *prometheus.CounterVec
	addPointsTime  prometheus.Histogram
	writeConflicts *prometheus.CounterVec
	streaks        *prometheus.CounterVec

	eventsPublished *prometheus.CounterVec
	handlerRuns     *prometheus.CounterVec
	handlerTime     *prometheus.HistogramVec

	jobRuns *prometheus.CounterVec
	jobTime *prometheus.HistogramVec
}

// New creates and registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		pointsAwarded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "points_awarded_total",
			Help:      "Points awarded, by action.",
		}, []string{"action"}),
		xpAwarded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "xp_awarded_total",
			Help:      "XP awarded, by action.",
		}, []string{"action"}),
		levelUps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "level_ups_total",
			Help:      "Level-ups, by level reached.",
		}, []string{"level"}),
		addPoints: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "add_points_total",
			Help:      "AddPoints calls, by outcome.",
		}, []string{"outcome"}),
		addPointsTime: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "add_points_duration_seconds",
			Help:      "AddPoints latency including retries.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		writeConflicts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "write_conflicts_total",
			Help:      "Optimistic concurrency conflicts, by operation.",
		}, []string{"operation"}),
		streaks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "streak_updates_total",
			Help:      "Daily activity records, by result.",
		}, []string{"result"}),
		eventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Domain events published, by type.",
		}, []string{"event_type"}),
		handlerRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "handler_runs_total",
			Help:      "Event handler runs, by type and status.",
		}, []string{"event_type", "status"}),
		handlerTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "handler_duration_seconds",
			Help:      "Event handler latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
		jobRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_runs_total",
			Help:      "Background job runs, by job and status.",
		}, []string{"job", "status"}),
		jobTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_duration_seconds",
			Help:      "Background job latency.",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 15, 60},
		}, []string{"job"}),
	}
}

// PointsAwarded records one successful award.
func (m *Metrics) PointsAwarded(action string, points, xp int) {
	m.pointsAwarded.WithLabelValues(action).Add(float64(points))
	m.xpAwarded.WithLabelValues(action).Add(float64(xp))
}

// LevelUp records a level-up to newLevel.
func (m *Metrics) LevelUp(newLevel int) {
	m.levelUps.WithLabelValues(strconv.Itoa(newLevel)).Inc()
}

// AddPointsCompleted records the outcome and latency of one AddPoints call.
func (m *Metrics) AddPointsCompleted(outcome string, elapsed time.Duration) {
	m.addPoints.WithLabelValues(outcome).Inc()
	m.addPointsTime.Observe(elapsed.Seconds())
}

// WriteConflict records a version conflict.
func (m *Metrics) WriteConflict(operation string) {
	m.writeConflicts.WithLabelValues(operation).Inc()
}

// StreakRecorded records a RecordActivity result.
func (m *Metrics) StreakRecorded(changed, broken bool) {
	result := "unchanged"
	switch {
	case broken:
		result = "broken"
	case changed:
		result = "extended"
	}
	m.streaks.WithLabelValues(result).Inc()
}

// EventPublished implements messaging.Observer.
func (m *Metrics) EventPublished(eventType string) {
	m.eventsPublished.WithLabelValues(eventType).Inc()
}

// HandlerFinished implements messaging.Observer.
func (m *Metrics) HandlerFinished(eventType string, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.handlerRuns.WithLabelValues(eventType, status).Inc()
	m.handlerTime.WithLabelValues(eventType).Observe(elapsed.Seconds())
}

// JobFinished implements scheduler.Observer.
func (m *Metrics) JobFinished(job string, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.jobRuns.WithLabelValues(job, status).Inc()
	m.jobTime.WithLabelValues(job).Observe(elapsed.Seconds())
}

// NewRegistry returns a registry with the Go and process collectors, the
// same set the default registry carries.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}
