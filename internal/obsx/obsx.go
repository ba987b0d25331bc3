// Package obsx exports run metrics in the Prometheus text format.
//
// Overview:
//   - Responsibility: Turn a Run Report into gauges and write them as a textfile
//   - Key Types: RunMetrics
//   - Concurrency Model: Built once per run, written once
//   - Error Semantics: Write errors are returned; callers report them without failing the run
//   - Performance Notes: One private registry per run; nothing is registered globally
//
// The file is meant for the node_exporter textfile collector or a CI step
// that uploads it; clientgen itself serves nothing.
//
// Usage:
//
//	m := obsx.NewRunMetrics()
//	m.Observe(report)
//	err := m.WriteTextfile("/var/lib/node_exporter/clientgen.prom")
package obsx

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/eggybyte-technology/clientgen/internal/core/errors"
	"github.com/eggybyte-technology/clientgen/internal/pipeline"
)

const namespace = "clientgen"

// RunMetrics holds the gauges describing one run.
type RunMetrics struct {
	registry        *prometheus.Registry
	services        *prometheus.GaugeVec
	serviceDuration *prometheus.GaugeVec
	operations      *prometheus.GaugeVec
	runDuration     *prometheus.GaugeVec
	aborted         *prometheus.GaugeVec
	lastRun         *prometheus.GaugeVec
}

// NewRunMetrics creates the gauges on a private registry.
func NewRunMetrics() *RunMetrics {
	m := &RunMetrics{
		registry: prometheus.NewRegistry(),
		services: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "services",
			Help:      "Services per final pipeline state.",
		}, []string{"namespace", "state"}),
		serviceDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "service_duration_seconds",
			Help:      "Time spent processing each service.",
		}, []string{"namespace", "service", "state"}),
		operations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "schema_operations",
			Help:      "Operations found in each extracted schema.",
		}, []string{"namespace", "service"}),
		runDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the whole run.",
		}, []string{"namespace", "policy"}),
		aborted: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_aborted",
			Help:      "1 when the run was aborted before every service was processed.",
		}, []string{"namespace"}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Start time of the run as a Unix timestamp.",
		}, []string{"namespace"}),
	}
	m.registry.MustRegister(m.services, m.serviceDuration, m.operations, m.runDuration, m.aborted, m.lastRun)
	return m
}

// Registry returns the registry holding the run gauges.
func (m *RunMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe records report. Every state gets a sample, zero included, so that
// a dashboard sees the series disappear to 0 rather than go stale.
func (m *RunMetrics) Observe(report *pipeline.Report) {
	ns := report.Namespace
	counts := report.Counts()
	for _, state := range []pipeline.State{
		pipeline.StateSDKGenerated, pipeline.StateMigrated, pipeline.StateSkipped,
	} {
		m.services.WithLabelValues(ns, string(state)).Set(float64(counts[state]))
	}

	for _, res := range report.Results {
		service := res.Names.ServiceName
		if service == "" {
			service = strings.ReplaceAll(res.Service.Name, "_", "-")
		}
		m.serviceDuration.WithLabelValues(ns, service, string(res.State)).Set(res.Duration.Seconds())
		if res.Summary != nil {
			m.operations.WithLabelValues(ns, service).Set(float64(res.Summary.Operations))
		}
	}

	m.runDuration.WithLabelValues(ns, report.Policy).Set(report.Duration.Seconds())
	aborted := 0.0
	if report.Aborted {
		aborted = 1
	}
	m.aborted.WithLabelValues(ns).Set(aborted)
	m.lastRun.WithLabelValues(ns).Set(float64(report.Started.Unix()))
}

// WriteTextfile writes the gauges to path atomically.
func (m *RunMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.Wrapf(errors.CodeInternal, "obsx.write", err, "cannot write metrics to %s", path)
	}
	return nil
}
