package obsx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eggybyte-technology/clientgen/internal/discovery"
	"github.com/eggybyte-technology/clientgen/internal/layout"
	"github.com/eggybyte-technology/clientgen/internal/pipeline"
	"github.com/eggybyte-technology/clientgen/internal/schema"
)

func sampleReport() *pipeline.Report {
	return &pipeline.Report{
		RunID:     "run-1",
		Namespace: "ab_service",
		Policy:    "isolated",
		Started:   time.Unix(1_760_000_000, 0),
		Duration:  3 * time.Second,
		Results: []*pipeline.ServiceResult{
			{
				Service:  discovery.Service{Name: "billing"},
				Names:    layout.NamesFor("ab_service", "billing", "main"),
				State:    pipeline.StateMigrated,
				Summary:  &schema.Summary{Operations: 4},
				Duration: 2 * time.Second,
			},
			{
				Service:  discovery.Service{Name: "user_profile"},
				Names:    layout.NamesFor("ab_service", "user_profile", "main"),
				State:    pipeline.StateSkipped,
				Duration: 500 * time.Millisecond,
			},
		},
	}
}

func TestObserve(t *testing.T) {
	m := NewRunMetrics()
	m.Observe(sampleReport())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.services.WithLabelValues("ab_service", "migrated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.services.WithLabelValues("ab_service", "skipped")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.services.WithLabelValues("ab_service", "sdk_generated")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.operations.WithLabelValues("ab_service", "service-billing")))
	assert.Equal(t, 0.5, testutil.ToFloat64(m.serviceDuration.WithLabelValues("ab_service", "service-user-profile", "skipped")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.runDuration.WithLabelValues("ab_service", "isolated")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.aborted.WithLabelValues("ab_service")))

	expected := `
# HELP clientgen_last_run_timestamp_seconds Start time of the run as a Unix timestamp.
# TYPE clientgen_last_run_timestamp_seconds gauge
clientgen_last_run_timestamp_seconds{namespace="ab_service"} 1.76e+09
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"clientgen_last_run_timestamp_seconds"))
}

func TestWriteTextfile(t *testing.T) {
	m := NewRunMetrics()
	report := sampleReport()
	report.Aborted = true
	m.Observe(report)

	path := filepath.Join(t.TempDir(), "clientgen.prom")
	require.NoError(t, m.WriteTextfile(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `clientgen_run_aborted{namespace="ab_service"} 1`)
	assert.Contains(t, string(content), `clientgen_services{namespace="ab_service",state="migrated"} 1`)
}

func TestWriteTextfileMissingDirectory(t *testing.T) {
	m := NewRunMetrics()
	err := m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "clientgen.prom"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot write metrics")
}
