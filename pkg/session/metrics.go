// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for the session. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	upgradesAccepted   prometheus.Counter
	upgradesRejected   *prometheus.CounterVec
	clientConnected    prometheus.Gauge
	disconnectionTotal *prometheus.CounterVec
	framesTotal        prometheus.Counter
	frameOverflows     prometheus.Counter
	commandsTotal      *prometheus.CounterVec
	reportsSent        prometheus.Counter
	reportBytes        prometheus.Counter
	reportDuration     prometheus.Histogram
	sampleErrors       prometheus.Counter
}

// newMetrics creates and registers session metrics. A nil registry
// disables metrics.
func newMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		return nil
	}

	m := &Metrics{
		upgradesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dipwatch",
			Subsystem: "session",
			Name:      "upgrades_accepted_total",
			Help:      "Upgrade requests that became the session client",
		}),

		upgradesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dipwatch",
			Subsystem: "session",
			Name:      "upgrades_rejected_total",
			Help:      "Upgrade requests refused",
		}, []string{"reason"}),

		clientConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dipwatch",
			Subsystem: "session",
			Name:      "client_connected",
			Help:      "1 while a client holds the connection slot",
		}),

		disconnectionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dipwatch",
			Subsystem: "session",
			Name:      "disconnections_total",
			Help:      "Client disconnections",
		}, []string{"reason"}),

		framesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dipwatch",
			Subsystem: "session",
			Name:      "frames_total",
			Help:      "Complete inbound frames",
		}),

		frameOverflows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dipwatch",
			Subsystem: "session",
			Name:      "frame_overflows_total",
			Help:      "Inbound frames discarded for exceeding the buffer",
		}),

		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dipwatch",
			Subsystem: "session",
			Name:      "led_commands_total",
			Help:      "LED commands by result",
		}, []string{"result"}),

		reportsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dipwatch",
			Subsystem: "session",
			Name:      "reports_sent_total",
			Help:      "Status reports written to the client",
		}),

		reportBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dipwatch",
			Subsystem: "session",
			Name:      "report_bytes_total",
			Help:      "Bytes of status reports written",
		}),

		reportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dipwatch",
			Subsystem: "session",
			Name:      "report_duration_seconds",
			Help:      "Time to sample, encode and write one report",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}),

		sampleErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dipwatch",
			Subsystem: "session",
			Name:      "sample_errors_total",
			Help:      "Failed switch register reads",
		}),
	}

	registry.MustRegister(
		m.upgradesAccepted,
		m.upgradesRejected,
		m.clientConnected,
		m.disconnectionTotal,
		m.framesTotal,
		m.frameOverflows,
		m.commandsTotal,
		m.reportsSent,
		m.reportBytes,
		m.reportDuration,
		m.sampleErrors,
	)

	return m
}

func (m *Metrics) recordAccepted() {
	if m == nil {
		return
	}
	m.upgradesAccepted.Inc()
	m.clientConnected.Set(1)
}

func (m *Metrics) recordRejected(reason string) {
	if m == nil {
		return
	}
	m.upgradesRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) recordDisconnected(reason string) {
	if m == nil {
		return
	}
	m.clientConnected.Set(0)
	m.disconnectionTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) recordFrame() {
	if m == nil {
		return
	}
	m.framesTotal.Inc()
}

func (m *Metrics) recordOverflow() {
	if m == nil {
		return
	}
	m.frameOverflows.Inc()
}

func (m *Metrics) recordCommand(result string) {
	if m == nil {
		return
	}
	m.commandsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) recordReport(size int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.reportsSent.Inc()
	m.reportBytes.Add(float64(size))
	m.reportDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) recordSampleError() {
	if m == nil {
		return
	}
	m.sampleErrors.Inc()
}
