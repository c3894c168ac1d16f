package verify

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/fxnlabs/ferrum/internal/engine"
	"github.com/fxnlabs/ferrum/internal/gpu"
	"github.com/fxnlabs/ferrum/internal/library"
	"github.com/fxnlabs/ferrum/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newEngine(t *testing.T, lib library.Options) *engine.Engine {
	t.Helper()
	e, err := engine.New(gpu.NewHostDevice(zap.NewNop(), gpu.HostOptions{}), engine.Options{
		Library: lib,
		Logger:  zap.NewNop(),
	})
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func TestVerifier_All(t *testing.T) {
	device := newEngine(t, library.Options{})
	reference := newEngine(t, library.Options{})
	v := New(device, reference, Options{N: 64, Seed: 7})

	names := registry.Default().Names()
	results := v.All(names)
	require.Len(t, results, len(names))
	for _, r := range results {
		assert.True(t, r.OK(), "%s: %v (%d mismatches)", r.Name, r.Err, r.Mismatches)
		assert.Len(t, r.Samples, 5, r.Name)
		assert.Regexp(t, `^0x[0-9a-f]{64}$`, r.Digest)
	}
}

func TestVerifier_Operation(t *testing.T) {
	reference := newEngine(t, library.Options{})

	t.Run("unknown operation", func(t *testing.T) {
		r := New(reference, reference, Options{}).Operation("vector_frobnicate")
		assert.ErrorIs(t, r.Err, engine.ErrUnresolvedOperation)
		assert.False(t, r.OK())
	})

	t.Run("device missing the entry point", func(t *testing.T) {
		device := newEngine(t, library.Options{
			Getenv:     func(string) string { return "" },
			Executable: func() (string, error) { return "", errors.New("none") },
			Embedded: func(string) []byte {
				return []byte("format: ferrum-hostlib/1\nfunctions: [vector_sqr]\n")
			},
			DefaultDir: filepath.Join(os.TempDir(), "ferrum-verify-test-missing"),
		})
		v := New(device, reference, Options{N: 16})

		assert.True(t, v.Operation("vector_sqr").OK())
		r := v.Operation("vector_add")
		assert.ErrorIs(t, r.Err, engine.ErrUnresolvedOperation)
	})

	t.Run("same seed gives the same digest", func(t *testing.T) {
		a := New(reference, reference, Options{N: 32, Seed: 1}).Operation("ge_mul")
		b := New(reference, reference, Options{N: 32, Seed: 1}).Operation("ge_mul")
		c := New(reference, reference, Options{N: 32, Seed: 2}).Operation("ge_mul")
		require.True(t, a.OK())
		assert.Equal(t, a.Digest, b.Digest)
		assert.NotEqual(t, a.Digest, c.Digest)
	})
}

func TestCompare(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	tests := []struct {
		name       string
		got, want  []float32
		mismatches int
	}{
		{"equal", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"within tolerance", []float32{1000.01}, []float32{1000}, 0},
		{"absolute near zero", []float32{1e-6}, []float32{0}, 0},
		{"outside tolerance", []float32{1, 2.1}, []float32{1, 2}, 1},
		{"nan matches nan", []float32{nan}, []float32{nan}, 0},
		{"nan against number", []float32{nan, 1}, []float32{0, 1}, 1},
		{"same infinity", []float32{inf, -inf}, []float32{inf, -inf}, 0},
		{"opposite infinity", []float32{inf}, []float32{-inf}, 1},
		{"length mismatch", []float32{1}, []float32{1, 2}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, mismatches := Compare(tt.got, tt.want, 1e-4)
			assert.Equal(t, tt.mismatches, mismatches)
		})
	}

	maxErr, _ := Compare([]float32{1.5, 4}, []float32{1, 2}, 1e-4)
	assert.InDelta(t, 1.0, maxErr, 1e-9)
}

func TestDigest(t *testing.T) {
	assert.Equal(t, Digest([]float32{1, 2}), Digest([]float32{1, 2}))
	assert.NotEqual(t, Digest([]float32{1, 2}), Digest([]float32{2, 1}))
	// sha256 of no input
	assert.Equal(t, "0xe3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Digest(nil))
}

func TestSamples(t *testing.T) {
	data := []float32{0, 1, 2, 3, 4, 5, 6, 7}
	assert.Equal(t, []Sample{{0, 0}, {4, 4}, {7, 7}}, Samples(data, 3))
	assert.Equal(t, []Sample{{0, 0}, {4, 4}, {7, 7}, {2, 2}, {6, 6}}, Samples(data, 10))
	assert.Empty(t, Samples(nil, 5))
}
