// Copyright 2019 Andy Pan. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package lcepoll

import (
	"io"

	"github.com/VictoriaMetrics/metrics"
)

// serverMetrics holds the counters of one server instance.
type serverMetrics struct {
	set *metrics.Set

	accepted        *metrics.Counter
	rejected        *metrics.Counter
	declined        *metrics.Counter
	registerFailure *metrics.Counter
	closed          *metrics.Counter // accepted connections that were later closed
}

func newServerMetrics(active func() float64) *serverMetrics {
	set := metrics.NewSet()
	m := &serverMetrics{
		set:             set,
		accepted:        set.NewCounter("lcepoll_connections_accepted_total"),
		rejected:        set.NewCounter("lcepoll_connections_rejected_total"),
		declined:        set.NewCounter("lcepoll_connections_declined_total"),
		registerFailure: set.NewCounter("lcepoll_connections_register_failures_total"),
		closed:          set.NewCounter("lcepoll_connections_closed_total"),
	}
	set.NewGauge("lcepoll_connections_active", active)
	return m
}

// WriteMetrics writes the server's metrics in Prometheus text format.
func (svr *Server) WriteMetrics(w io.Writer) {
	svr.metrics.set.WritePrometheus(w)
}
