package main

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gsimoes/portsim/simulator"
)

var (
	// Prometheus metrics (gauges)
	promMetrics = struct {
		queueLength       prometheus.Gauge
		inService         prometheus.Gauge
		berthsAvailable   prometheus.Gauge
		berthsOccupied    prometheus.Gauge
		berthsMaintenance prometheus.Gauge
		vesselsSpawned    prometheus.Gauge
		opsCompleted      prometheus.Gauge
		throughput24h     prometheus.Gauge
		avgWaitSeconds    prometheus.Gauge
		avgEfficiencyPct  prometheus.Gauge
		stepFailures      prometheus.Gauge
	}{
		queueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "port_queue_length",
			Help: "Vessels waiting for a berth",
		}),
		inService: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "port_vessels_in_service",
			Help: "Vessels currently being serviced",
		}),
		berthsAvailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "port_berths_available",
			Help: "Berths ready for allocation",
		}),
		berthsOccupied: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "port_berths_occupied",
			Help: "Berths owned by an in-progress operation",
		}),
		berthsMaintenance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "port_berths_maintenance",
			Help: "Berths withdrawn for maintenance",
		}),
		vesselsSpawned: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "port_vessels_spawned_total",
			Help: "Vessels generated since simulation start",
		}),
		opsCompleted: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "port_operations_completed_total",
			Help: "Operations finalized since simulation start",
		}),
		throughput24h: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "port_throughput_24h",
			Help: "Operations completed in the trailing 24 virtual hours",
		}),
		avgWaitSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "port_avg_wait_seconds",
			Help: "Average wait from arrival to service start",
		}),
		avgEfficiencyPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "port_avg_efficiency_percent",
			Help: "Average planned/actual duration ratio",
		}),
		stepFailures: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "port_step_failures_total",
			Help: "Tick steps that failed and were retried",
		}),
	}
)

func initPrometheusMetrics() {
	prometheus.MustRegister(
		promMetrics.queueLength,
		promMetrics.inService,
		promMetrics.berthsAvailable,
		promMetrics.berthsOccupied,
		promMetrics.berthsMaintenance,
		promMetrics.vesselsSpawned,
		promMetrics.opsCompleted,
		promMetrics.throughput24h,
		promMetrics.avgWaitSeconds,
		promMetrics.avgEfficiencyPct,
		promMetrics.stepFailures,
	)
}

func updatePrometheusMetrics(metrics *simulator.Metrics, state *PortState) {
	promMetrics.queueLength.Set(float64(state.Stats.QueueLength))
	promMetrics.inService.Set(float64(state.Stats.InService))
	promMetrics.berthsAvailable.Set(float64(state.Stats.BerthsAvailable))
	promMetrics.berthsOccupied.Set(float64(state.Stats.BerthsOccupied))
	promMetrics.berthsMaintenance.Set(float64(state.Stats.BerthsMaintenance))
	promMetrics.vesselsSpawned.Set(float64(metrics.VesselsSpawned))
	promMetrics.opsCompleted.Set(float64(metrics.OperationsCompleted))
	promMetrics.throughput24h.Set(float64(state.Stats.Throughput24h))
	promMetrics.avgWaitSeconds.Set(state.Stats.AvgWaitSeconds)
	promMetrics.avgEfficiencyPct.Set(state.Stats.AvgEfficiencyPct)
	promMetrics.stepFailures.Set(float64(metrics.StepFailures))
}
