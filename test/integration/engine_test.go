//go:build integration
// +build integration

package integration

import (
	"io"
	"net/http"
	"testing"

	"github.com/fxnlabs/ferrum/internal/app"
	"github.com/fxnlabs/ferrum/internal/config"
	"github.com/fxnlabs/ferrum/internal/engine"
	"github.com/fxnlabs/ferrum/internal/gpu"
	"github.com/fxnlabs/ferrum/internal/library"
	"github.com/fxnlabs/ferrum/internal/registry"
	"github.com/fxnlabs/ferrum/internal/verify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

// TestEngineAgainstReference starts the full application on the configured
// backend (Metal where available) and checks every operation against the
// host kernels.
func TestEngineAgainstReference(t *testing.T) {
	cfg := config.Default()
	cfg.Logger.Verbosity = "error"
	cfg.Metrics.ListenAddress = "127.0.0.1:0"

	var e *engine.Engine
	var srv *app.MetricsServer
	var log *zap.Logger
	fxApp := fxtest.New(t, app.Options(cfg, fx.Populate(&e, &srv, &log)))
	fxApp.RequireStart()
	defer fxApp.RequireStop()

	t.Logf("device: %s, library: %s", e.Device().Info().Name, e.Source())
	require.Empty(t, e.Unregistered())

	reference, err := engine.New(gpu.NewHostDevice(log, gpu.HostOptions{}), engine.Options{
		Library: library.Options{Logger: log},
		Logger:  log,
	})
	require.NoError(t, err)
	defer reference.Close()

	v := verify.New(e, reference, verify.Options{N: 4096, Tolerance: 1e-3, Seed: 42})
	for _, r := range v.All(registry.Default().Names()) {
		assert.True(t, r.OK(), "%s: err=%v mismatches=%d maxError=%g", r.Name, r.Err, r.Mismatches, r.MaxError)
	}

	resp, err := http.Get("http://" + srv.Addr() + cfg.Metrics.Path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `ferrum_dispatch_total{operation="vector_add",status="ok"}`)
}

func TestMultiGroupDispatch(t *testing.T) {
	cfg := config.Default()
	cfg.Logger.Verbosity = "error"

	var e *engine.Engine
	fxApp := fxtest.New(t, app.Options(cfg, fx.Populate(&e)))
	fxApp.RequireStart()
	defer fxApp.RequireStop()

	n := 4*e.Device().MaxThreadsPerGroup() + 3
	x := make([]float32, n)
	for i := range x {
		x[i] = float32(i)
	}
	out, err := e.Vector(n).Run("vector_sqr", []engine.View{engine.VectorView(x)}, nil, engine.VectorView(make([]float32, n)))
	require.NoError(t, err)
	for i, v := range out {
		require.Equal(t, float32(i)*float32(i), v, "element %d", i)
	}
}
