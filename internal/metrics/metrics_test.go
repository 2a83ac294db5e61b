package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	t.Run("Counts per project", func(t *testing.T) {
		m := NewMetrics(func() int { return 0 })
		m.SpansReceived.WithLabelValues("default").Add(3)
		m.SpansReceived.WithLabelValues("other").Inc()

		assert.Equal(t, 3.0, testutil.ToFloat64(m.SpansReceived.WithLabelValues("default")))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.SpansReceived.WithLabelValues("other")))
	})

	t.Run("Exposes metrics over HTTP", func(t *testing.T) {
		m := NewMetrics(func() int { return 2 })
		m.EvaluationsDropped.WithLabelValues("default").Inc()

		rec := httptest.NewRecorder()
		m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		body, err := io.ReadAll(rec.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "beacon_projects 2")
		assert.Contains(t, string(body), `beacon_evaluations_dropped_total{project="default"} 1`)
	})
}
