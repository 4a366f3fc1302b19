/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package accept

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Stats collects server-wide statistics for one Acceptor:
// total connections accepted, a gauge of currently-open connections (the
// current count; no high-water mark is kept), and distributions of connection duration and
// requests-per-connection. Every field is a Prometheus collector, so
// updates are lock-free on the writer side and reads never block accept,
// using atomic counters so readers stay lock-free, without
// hand-rolled atomics.
type Stats struct {
	ConnsTotal      prometheus.Counter
	ConnsOpen       prometheus.Gauge
	ConnDuration    prometheus.Histogram
	ReqsPerConn     prometheus.Histogram
	AcceptErrsTotal *prometheus.CounterVec
}

// NewStats builds a Stats instance with collectors named after name (the
// connector's identity, e.g. its listen address), so multiple Acceptors in
// the same process don't collide on metric names when registered.
func NewStats(name string) *Stats {
	return &Stats{
		ConnsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "httpcore_acceptor_connections_total",
			Help:        "Total connections accepted.",
			ConstLabels: prometheus.Labels{"connector": name},
		}),
		ConnsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "httpcore_acceptor_connections_open",
			Help:        "Currently open connections.",
			ConstLabels: prometheus.Labels{"connector": name},
		}),
		ConnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "httpcore_acceptor_connection_duration_seconds",
			Help:        "Connection lifetime from accept to close.",
			ConstLabels: prometheus.Labels{"connector": name},
			Buckets:     prometheus.DefBuckets,
		}),
		ReqsPerConn: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "httpcore_acceptor_requests_per_connection",
			Help:        "Requests served per connection before close.",
			ConstLabels: prometheus.Labels{"connector": name},
			Buckets:     []float64{1, 2, 5, 10, 25, 50, 100, 250, 1000},
		}),
		AcceptErrsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "httpcore_acceptor_accept_errors_total",
			Help:        "Accept() errors by classification.",
			ConstLabels: prometheus.Labels{"connector": name},
		}, []string{"class"}),
	}
}

// MustRegister registers every collector in s against reg. Panics on
// duplicate registration, mirroring prometheus.MustRegister's own contract.
func (s *Stats) MustRegister(reg *prometheus.Registry) {
	reg.MustRegister(s.ConnsTotal, s.ConnsOpen, s.ConnDuration, s.ReqsPerConn, s.AcceptErrsTotal)
}

// connTracker bundles the per-connection bookkeeping an Acceptor needs to
// feed Stats without holding a lock: accept time for duration, and a
// request counter incremented by the owning Connection.
type connTracker struct {
	acceptedAt time.Time
	requests   int64
}

func (s *Stats) trackAccept() connTracker {
	s.ConnsTotal.Inc()
	s.ConnsOpen.Inc()
	return connTracker{acceptedAt: time.Now()}
}

func (s *Stats) trackClose(t connTracker) {
	s.ConnsOpen.Dec()
	s.ConnDuration.Observe(time.Since(t.acceptedAt).Seconds())
	s.ReqsPerConn.Observe(float64(t.requests))
}
