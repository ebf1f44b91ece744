// Package metrics exposes the lifecycle manager's telemetry counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PipelineRuns counts ensure-ready pipeline completions by outcome
	// (ready, failed, cancelled).
	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "luna",
		Subsystem: "vmm",
		Name:      "pipeline_runs_total",
		Help:      "Completed ensure-ready pipeline runs by outcome.",
	}, []string{"outcome"})

	// Recoveries counts remediation cycles by resolving strategy.
	Recoveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "luna",
		Subsystem: "vmm",
		Name:      "recoveries_total",
		Help:      "Recovery cycles by resolving strategy.",
	}, []string{"strategy"})

	// LiveInstances tracks the number of instances holding a capacity slot.
	LiveInstances = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "luna",
		Subsystem: "vmm",
		Name:      "live_instances",
		Help:      "VM instances currently holding a capacity slot.",
	})

	// CapacityRejections counts ensure-ready requests rejected at the slot pool.
	CapacityRejections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "luna",
		Subsystem: "vmm",
		Name:      "capacity_rejections_total",
		Help:      "Requests rejected because the instance pool was full.",
	})
)
