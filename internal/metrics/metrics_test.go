package metrics_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/DeafMist/blog-factory/internal/metrics"
)

func TestObserveLookup(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.ObserveLookup("ddg", true, nil, 10*time.Millisecond)
	m.ObserveLookup("ddg", false, nil, 10*time.Millisecond)
	m.ObserveLookup("wikipedia", false, errors.New("down"), time.Second)

	require.Equal(t, 1.0, testutil.ToFloat64(m.ImageLookups.WithLabelValues("ddg", "hit")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ImageLookups.WithLabelValues("ddg", "miss")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ImageLookups.WithLabelValues("wikipedia", "error")))
	require.Equal(t, 2, testutil.CollectAndCount(m.ImageLookupDuration))
}

func TestObserveMessage(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	m.ObserveMessage(metrics.ResultIndexed)
	m.ObserveMessage(metrics.ResultIndexed)
	m.ObserveMessage(metrics.ResultInvalid)

	require.Equal(t, 2.0, testutil.ToFloat64(m.Messages.WithLabelValues(metrics.ResultIndexed)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Messages.WithLabelValues(metrics.ResultInvalid)))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/v1/posts/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", m.Handler())

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/posts/"+id, nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	}
	require.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/v1/posts/{id}", "404")))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `blogscript_http_requests_total{method="GET",route="/v1/posts/{id}",status="404"} 2`)
}
