// Package metrics exposes Prometheus counters for bot activity: command
// dispatch, meme playback, ballots, and stats-merge outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the bot's Prometheus instruments behind a private
// registry so exposure stays opt-in.
type Collector struct {
	commandsTotal     *prometheus.CounterVec
	playsTotal        prometheus.Counter
	ballotsTotal      *prometheus.CounterVec
	mergesTotal       *prometheus.CounterVec
	lockTimeoutsTotal prometheus.Counter
	memeCount         prometheus.Gauge
	registry          *prometheus.Registry
}

// NewCollector creates a collector with every instrument registered.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	commandsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memebot_commands_total",
			Help: "Total commands dispatched by name and status",
		},
		[]string{"command", "status"},
	)

	playsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "memebot_plays_total",
			Help: "Total meme playbacks started",
		},
	)

	ballotsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memebot_ballots_total",
			Help: "Total ballots cast by resolution outcome",
		},
		[]string{"outcome"},
	)

	mergesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memebot_stats_merges_total",
			Help: "Total stats merge attempts by result",
		},
		[]string{"result"},
	)

	lockTimeoutsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "memebot_stats_lock_timeouts_total",
			Help: "Total stats merges deferred because the file lock stayed held",
		},
	)

	memeCount := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "memebot_memes",
			Help: "Current number of registered memes",
		},
	)

	registry.MustRegister(commandsTotal)
	registry.MustRegister(playsTotal)
	registry.MustRegister(ballotsTotal)
	registry.MustRegister(mergesTotal)
	registry.MustRegister(lockTimeoutsTotal)
	registry.MustRegister(memeCount)

	return &Collector{
		commandsTotal:     commandsTotal,
		playsTotal:        playsTotal,
		ballotsTotal:      ballotsTotal,
		mergesTotal:       mergesTotal,
		lockTimeoutsTotal: lockTimeoutsTotal,
		memeCount:         memeCount,
		registry:          registry,
	}
}

// RecordCommand records one dispatched command with its handling status.
func (c *Collector) RecordCommand(command, status string) {
	c.commandsTotal.WithLabelValues(command, status).Inc()
}

// RecordPlay records one started playback.
func (c *Collector) RecordPlay() {
	c.playsTotal.Inc()
}

// RecordBallot records one cast ballot with the resolution outcome it produced.
func (c *Collector) RecordBallot(outcome string) {
	c.ballotsTotal.WithLabelValues(outcome).Inc()
}

// RecordMerge records one stats merge attempt.
func (c *Collector) RecordMerge(result string) {
	c.mergesTotal.WithLabelValues(result).Inc()
}

// RecordLockTimeout records one merge deferred by lock contention.
func (c *Collector) RecordLockTimeout() {
	c.lockTimeoutsTotal.Inc()
}

// SetMemeCount publishes the current registry size.
func (c *Collector) SetMemeCount(count int) {
	c.memeCount.Set(float64(count))
}

// Registry returns the Prometheus registry for HTTP exposure.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
