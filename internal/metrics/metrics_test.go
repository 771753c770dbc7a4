package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := New()

	m.RecordLogin("success")
	m.RecordLogin("invalid")
	m.RecordLogin("invalid")
	m.RecordUpload(10)
	m.RecordUpload(5)
	m.RecordDeletes("cascade", 3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoginAttempts.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LoginAttempts.WithLabelValues("invalid")))
	assert.Equal(t, 15.0, testutil.ToFloat64(m.UploadedBytes))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.UploadedFiles))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.DeletedObjects.WithLabelValues("cascade")))

	m.RecordReconcileRun(time.Second, 2, 7)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ReconcileOrphanOwners))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.ReconcileObjectsPurged))
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	// Two instances must not panic on duplicate registration.
	a := New()
	b := New()
	a.RecordLogin("success")
	assert.Equal(t, 0.0, testutil.ToFloat64(b.LoginAttempts.WithLabelValues("success")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.RecordHTTPRequest(http.MethodGet, "/dashboard", http.StatusOK, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "vaultbox_http_requests_total"))
}
