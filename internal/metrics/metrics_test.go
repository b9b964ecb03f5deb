package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/go-auth-session-server/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestHandler_ExposesCounters(t *testing.T) {
	before := testutil.ToFloat64(metrics.SessionRotations.WithLabelValues("ok"))
	metrics.SessionRotations.WithLabelValues("ok").Inc()
	require.Equal(t, before+1, testutil.ToFloat64(metrics.SessionRotations.WithLabelValues("ok")))

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "auth_session_rotations_total")
}
