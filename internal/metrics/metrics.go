// Package metrics exposes Prometheus counters for the sync flows.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PairingsTotal counts successful pair operations.
	PairingsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "widgetsync_pairings_total",
		Help: "Number of successful pairings.",
	})

	// UnpairsTotal counts successful unpair operations.
	UnpairsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "widgetsync_unpairs_total",
		Help: "Number of successful unpairings.",
	})

	// SharesTotal counts photo shares.
	SharesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "widgetsync_shares_total",
		Help: "Number of photo shares.",
	})

	// RefreshesTotal counts refresh notifications delivered to observers.
	RefreshesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "widgetsync_refreshes_total",
		Help: "Number of widget refresh notifications.",
	})

	// RendersTotal counts display model renders.
	RendersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "widgetsync_renders_total",
		Help: "Number of widget display model renders.",
	})
)
