package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchMetrics(t *testing.T) {
	t.Run("DispatchTotal", func(t *testing.T) {
		before := testutil.ToFloat64(DispatchTotal.WithLabelValues("vector_add", StatusOK))
		DispatchTotal.WithLabelValues("vector_add", StatusOK).Inc()
		DispatchTotal.WithLabelValues("vector_add", StatusOK).Inc()
		after := testutil.ToFloat64(DispatchTotal.WithLabelValues("vector_add", StatusOK))
		assert.Equal(t, before+2, after)
	})

	t.Run("DispatchDuration", func(t *testing.T) {
		assert.NotPanics(t, func() {
			DispatchDuration.WithLabelValues("bb->B").Observe(0.25)
		})
	})

	t.Run("DispatchBufferBytes", func(t *testing.T) {
		before := testutil.ToFloat64(DispatchBufferBytes)
		DispatchBufferBytes.Add(48)
		assert.Equal(t, before+48, testutil.ToFloat64(DispatchBufferBytes))
	})

	t.Run("DispatchThreads", func(t *testing.T) {
		DispatchThreads.Set(4096)
		assert.Equal(t, float64(4096), testutil.ToFloat64(DispatchThreads))
	})

	t.Run("PipelineSlots", func(t *testing.T) {
		PipelineSlots.WithLabelValues("ready").Set(190)
		assert.Equal(t, float64(190), testutil.ToFloat64(PipelineSlots.WithLabelValues("ready")))
	})
}

func TestMetricsRegistration(t *testing.T) {
	// Ensure all metrics are properly registered
	metrics := []prometheus.Collector{
		EndpointResponses,
		DispatchTotal,
		DispatchDuration,
		DispatchBufferBytes,
		DispatchThreads,
		PipelineSlots,
	}

	for _, metric := range metrics {
		// Registering again must fail because promauto already did
		err := prometheus.Register(metric)
		var already prometheus.AlreadyRegisteredError
		assert.ErrorAs(t, err, &already)
	}
}

func TestHandler(t *testing.T) {
	DispatchTotal.WithLabelValues("vector_sqr", StatusOK).Inc()

	srv := httptest.NewServer(Handler("/metrics"))
	defer srv.Close()

	before := testutil.ToFloat64(EndpointResponses.WithLabelValues("/metrics", "200"))
	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, before+1, testutil.ToFloat64(EndpointResponses.WithLabelValues("/metrics", "200")))

	notFound, err := http.Get(srv.URL + "/other")
	require.NoError(t, err)
	notFound.Body.Close()
	assert.Equal(t, http.StatusNotFound, notFound.StatusCode)
}

func BenchmarkMetricsObservation(b *testing.B) {
	b.Run("ObserveDuration", func(b *testing.B) {
		h := DispatchDuration.WithLabelValues("b->B")
		for i := 0; i < b.N; i++ {
			h.Observe(float64(i % 1000))
		}
	})

	b.Run("IncCounter", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			DispatchTotal.WithLabelValues("vector_abs", StatusOK).Inc()
		}
	})
}
