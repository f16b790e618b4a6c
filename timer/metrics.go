package timer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals
var timersActive = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "gamecore",
	Subsystem: "timer",
	Name:      "active",
	Help:      "Number of live timer registrations",
})

//nolint:gochecknoglobals
var timersRegistered = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "gamecore",
	Subsystem: "timer",
	Name:      "registered_total",
	Help:      "Number of timer registrations",
}, []string{"handler"})

//nolint:gochecknoglobals
var timersFired = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "gamecore",
	Subsystem: "timer",
	Name:      "fired_total",
	Help:      "Number of timer firings handed to the dispatcher",
}, []string{"handler"})

//nolint:gochecknoglobals
var timersCancelled = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "gamecore",
	Subsystem: "timer",
	Name:      "cancelled_total",
	Help:      "Number of timer registrations cancelled before they finished",
}, []string{"handler"})
