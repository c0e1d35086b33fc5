/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry exposes Prometheus metrics for the playout engine.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	TracksPlayed  prometheus.Counter
	SilenceSkips  prometheus.Counter
	Crossfades    prometheus.Counter
	IntrosPlayed  prometheus.Counter
	Commands      *prometheus.CounterVec
	DroppedEvents prometheus.Counter
	LevelRMS      prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		TracksPlayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "munin_tracks_played_total",
			Help: "Tracks that finished or were skipped after starting.",
		}),
		SilenceSkips: factory.NewCounter(prometheus.CounterOpts{
			Name: "munin_silence_skips_total",
			Help: "Tracks skipped by the silence detector.",
		}),
		Crossfades: factory.NewCounter(prometheus.CounterOpts{
			Name: "munin_crossfades_total",
			Help: "Crossfades started.",
		}),
		IntrosPlayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "munin_intros_played_total",
			Help: "Intro overlays started.",
		}),
		Commands: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "munin_commands_total",
			Help: "Transport commands accepted by the engine.",
		}, []string{"command"}),
		DroppedEvents: factory.NewCounter(prometheus.CounterOpts{
			Name: "munin_dropped_events_total",
			Help: "Events dropped due to slow subscribers.",
		}),
		LevelRMS: factory.NewGauge(prometheus.GaugeOpts{
			Name: "munin_level_rms",
			Help: "Most recent RMS level of the main output.",
		}),
	}
}

// Handler serves the metrics endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
