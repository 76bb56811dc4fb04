package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveSearch(t *testing.T) {
	m := New()

	m.ObserveSearch("miss", 0.001, 3, nil)
	m.ObserveSearch("hit", 0.0001, 3, nil)
	m.ObserveSearch("miss", 0.001, 0, nil)
	m.ObserveSearch("none", 0.001, 0, errors.New("no index"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("zero_result")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("error")))
}

func TestObserveBuild(t *testing.T) {
	m := New()

	m.ObserveBuild(0.5, 10, 12, 40, nil)
	m.ObserveBuild(0.1, 0, 0, 0, errors.New("store closed"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexBuildsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexBuildsTotal.WithLabelValues("error")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.IndexPhrases))
	assert.Equal(t, 40.0, testutil.ToFloat64(m.IndexTrigrams))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveSearch("miss", 1, 1, nil)
	m.ObserveBuild(1, 1, 1, 1, nil)
	m.ObserveHTTP("GET", "/health", 200, 0.1)
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, rec.Code)
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveHTTP("GET", "/api/v1/search", 200, 0.01)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `phrasematch_http_requests_total{method="GET",path="/api/v1/search",status="200"} 1`)
}
