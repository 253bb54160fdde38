package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()
	m.Mutation("expenses", "created", nil)
	m.Mutation("expenses", "created", nil)
	m.Mutation("expenses", "deleted", errors.New("boom"))
	m.DashboardCache(true)
	m.DashboardCache(false)
	m.RateLimited()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.mutations.WithLabelValues("expenses", "created", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mutations.WithLabelValues("expenses", "deleted", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dashboardCache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateLimited))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Mutation("expenses", "created", nil)
		m.AttachmentStored(10)
		m.OrphanedBlob("queued")
		m.HTTPRequest("GET", "/", 200, time.Millisecond)
		m.WorkerMessage("q", nil)
	})
	assert.Nil(t, m.Registry())
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.HTTPRequest(http.MethodPost, "/api/expenses", http.StatusCreated, 20*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `finca_http_requests_total{code="201",method="POST",route="/api/expenses"} 1`)
}
