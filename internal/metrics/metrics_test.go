package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistered(t *testing.T) {
	Register()
	Register()

	ObjectsWrittenTotal.Inc()
	ObjectsDeletedTotal.Add(3)
	BytesWrittenTotal.Add(1024)
	BytesReadTotal.Add(2048)
}

func TestObserveRequest(t *testing.T) {
	before := counterValue(t, S3RequestsTotal.WithLabelValues("HeadObject", "error"))
	ObserveRequest("HeadObject", time.Now(), errors.New("boom"))
	ObserveRequest("HeadObject", time.Now(), nil)

	assert.Equal(t, before+1, counterValue(t, S3RequestsTotal.WithLabelValues("HeadObject", "error")))
	assert.GreaterOrEqual(t, counterValue(t, S3RequestsTotal.WithLabelValues("HeadObject", "success")), 1.0)
}

func TestPush(t *testing.T) {
	var body string
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ObjectsWrittenTotal.Inc()
	require.NoError(t, Push(t.Context(), srv.URL, "wrangle"))
	assert.True(t, strings.HasPrefix(path, "/metrics/job/wrangle"), path)
	assert.NotEmpty(t, body)
}

func TestPush_EmptyURL(t *testing.T) {
	assert.NoError(t, Push(t.Context(), "", "wrangle"))
}

func TestPush_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	assert.Error(t, Push(t.Context(), srv.URL, "wrangle"))
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}
