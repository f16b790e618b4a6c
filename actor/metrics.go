package actor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lane metrics are labelled by actor kind; per-actor labels would not scale
// to one lane per player.

//nolint:gochecknoglobals
var timeBuckets = []float64{
	0.001, // 1ms
	0.01,  // 10ms
	0.1,   // 100ms
	1,     // 1s
	10,    // 10s
	60,    // 1m
}

var (
	// lanesAlive tracks open lanes.
	lanesAlive = promauto.NewGaugeVec(prometheus.GaugeOpts{ //nolint:gochecknoglobals
		Name: "actor_lanes_alive",
		Help: "The number of open actor lanes",
	}, []string{"kind"})

	// enqueuedItems tracks items waiting on a lane.
	enqueuedItems = promauto.NewGaugeVec(prometheus.GaugeOpts{ //nolint:gochecknoglobals
		Name: "actor_enqueued_items",
		Help: "The number of work items waiting to run",
	}, []string{"kind"})

	// submittedItems counts items accepted by a lane.
	submittedItems = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "actor_submitted_items",
		Help: "The total number of work items submitted",
	}, []string{"kind"})

	// processedItems counts items a lane has finished with, whatever the outcome.
	processedItems = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "actor_processed_items",
		Help: "The total number of work items processed",
	}, []string{"kind"})

	// processingTime measures how long the lane was held by each item.
	processingTime = promauto.NewHistogramVec(prometheus.HistogramOpts{ //nolint:gochecknoglobals
		Name:    "actor_processing_time",
		Help:    "The time a lane spent on a work item",
		Buckets: timeBuckets,
	}, []string{"kind"})

	// itemTimeouts counts items abandoned after their timeout.
	itemTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "actor_item_timeouts",
		Help: "The total number of work items that timed out",
	}, []string{"kind"})

	// itemPanics counts items that panicked.
	itemPanics = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "actor_item_panics",
		Help: "The total number of work items that recovered from a panic",
	}, []string{"kind"})

	// inlineCalls counts re-entrant calls run on the caller's goroutine.
	inlineCalls = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "actor_inline_calls",
		Help: "The total number of re-entrant calls executed inline",
	}, []string{"kind"})

	actorsCreated = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "actor_created",
		Help: "The total number of actors created",
	}, []string{"kind"})

	actorsDestroyed = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "actor_destroyed",
		Help: "The total number of actors destroyed",
	}, []string{"kind"})

	actorsRecycled = promauto.NewCounter(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "actor_recycled",
		Help: "The total number of idle actors removed by the sweep",
	})
)
