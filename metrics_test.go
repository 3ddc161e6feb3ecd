package bodylimit_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/bodylimit"
)

func TestMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := bodylimit.NewMetrics(reg)
	req := httptest.NewRequest(http.MethodPost, "/", nil)

	m.Rejected(req, bodylimit.PhaseHeader)
	m.Rejected(req, bodylimit.PhaseHeader)
	m.Rejected(req, bodylimit.PhaseStream)
	m.Completed(req, 2048)

	expected := `
# HELP bodylimit_rejected_total Total number of requests rejected for exceeding the body size limit.
# TYPE bodylimit_rejected_total counter
bodylimit_rejected_total{phase="header"} 2
bodylimit_rejected_total{phase="stream"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "bodylimit_rejected_total"))

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != "bodylimit_body_bytes" {
			continue
		}
		hist := f.GetMetric()[0].GetHistogram()
		assert.Equal(t, uint64(1), hist.GetSampleCount())
		assert.Equal(t, float64(2048), hist.GetSampleSum())
		return
	}
	t.Fatal("bodylimit_body_bytes not gathered")
}
