package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsMiddleware_SilentHandlerCountsAs200(t *testing.T) {
	silent := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	h := metricsMiddleware(silent)

	req := httptest.NewRequest(http.MethodGet, "/silent", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, 1.0, testutil.ToFloat64(RequestCounter.WithLabelValues(http.MethodGet, "/silent", "200")))
	assert.Equal(t, 0.0, testutil.ToFloat64(RequestCounter.WithLabelValues(http.MethodGet, "/silent", "0")))
}
