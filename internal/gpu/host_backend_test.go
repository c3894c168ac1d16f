package gpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testManifest = `format: ferrum-hostlib/1
functions:
  - vector_add
  - vector_sqr
  - ge_relu
  - vector_bogus
`

func newTestDevice(t *testing.T, opts HostOptions) *HostDevice {
	t.Helper()
	return NewHostDevice(zap.NewNop(), opts)
}

func newTestPipeline(t *testing.T, d *HostDevice, name string) Pipeline {
	t.Helper()
	lib, err := d.NewLibraryWithData([]byte(testManifest))
	require.NoError(t, err)
	p, err := lib.NewPipeline(name)
	require.NoError(t, err)
	return p
}

func newTestBuffer(t *testing.T, d *HostDevice, data []float32) Buffer {
	t.Helper()
	b, err := d.NewBuffer(data)
	require.NoError(t, err)
	t.Cleanup(b.Release)
	return b
}

func TestHostDevice_Info(t *testing.T) {
	d := newTestDevice(t, HostOptions{})

	info := d.Info()
	assert.Contains(t, info.Name, "Host")
	assert.Equal(t, "host", info.Backend)
	assert.Greater(t, info.TotalMemory, int64(0))
	assert.Equal(t, "N/A", info.ComputeCapability)
	assert.Equal(t, 1024, d.MaxThreadsPerGroup())
	assert.Equal(t, HostLibraryFormat, d.LibraryFormat())
	assert.NoError(t, d.Release())
}

func TestHostDevice_Library(t *testing.T) {
	d := newTestDevice(t, HostOptions{})

	t.Run("lists manifest functions", func(t *testing.T) {
		lib, err := d.NewLibraryWithData([]byte(testManifest))
		require.NoError(t, err)
		assert.Equal(t, []string{"vector_add", "vector_sqr", "ge_relu", "vector_bogus"}, lib.FunctionNames())
	})

	t.Run("rejects unknown format", func(t *testing.T) {
		_, err := d.NewLibraryWithData([]byte("format: something-else\n"))
		assert.EqualError(t, err, `unsupported host library format "something-else"`)
	})

	t.Run("rejects malformed manifest", func(t *testing.T) {
		_, err := d.NewLibraryWithData([]byte("functions: [unterminated"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse host library")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := d.NewLibraryWithFile(t.TempDir() + "/missing.hostlib")
		assert.Error(t, err)
	})

	t.Run("pipeline for unlisted function", func(t *testing.T) {
		lib, err := d.NewLibraryWithData([]byte(testManifest))
		require.NoError(t, err)
		_, err = lib.NewPipeline("vector_mul")
		assert.EqualError(t, err, `function "vector_mul" not found in library`)
	})

	t.Run("pipeline for listed function without kernel", func(t *testing.T) {
		lib, err := d.NewLibraryWithData([]byte(testManifest))
		require.NoError(t, err)
		_, err = lib.NewPipeline("vector_bogus")
		assert.EqualError(t, err, `no kernel function named "vector_bogus"`)
	})
}

func TestHostDevice_Buffers(t *testing.T) {
	d := newTestDevice(t, HostOptions{MaxBufferLength: 4})

	src := []float32{1, 2, 3}
	b, err := d.NewBuffer(src)
	require.NoError(t, err)
	assert.Equal(t, 3, b.Len())
	assert.EqualValues(t, 1, d.LiveBuffers())

	// the buffer holds a copy
	src[0] = 9
	assert.Equal(t, []float32{1, 2, 3}, b.Contents())

	_, err = d.NewBuffer(make([]float32, 5))
	assert.Error(t, err)
	assert.EqualValues(t, 1, d.LiveBuffers())

	b.Release()
	b.Release()
	assert.EqualValues(t, 0, d.LiveBuffers())
}

func TestHostDevice_Dispatch(t *testing.T) {
	d := newTestDevice(t, HostOptions{MaxThreadsPerGroup: 4})
	p := newTestPipeline(t, d, "vector_add")

	const n = 10
	x := make([]float32, n)
	y := make([]float32, n)
	for i := range x {
		x[i] = float32(i)
		y[i] = float32(10 * i)
	}
	bx := newTestBuffer(t, d, x)
	by := newTestBuffer(t, d, y)
	br := newTestBuffer(t, d, make([]float32, n))

	q, err := d.NewCommandQueue()
	require.NoError(t, err)
	defer q.Release()
	cb, err := q.CommandBuffer()
	require.NoError(t, err)
	enc, err := cb.ComputeEncoder()
	require.NoError(t, err)

	enc.SetPipeline(p)
	for i, b := range []Buffer{bx, by, br} {
		enc.SetBuffer(b, 3*i)
		enc.SetInt(0, 3*i+1)
		enc.SetInt(1, 3*i+2)
	}
	enc.Dispatch(n, 4)
	enc.EndEncoding()

	require.NoError(t, cb.Commit())
	require.NoError(t, cb.WaitUntilCompleted())
	assert.EqualValues(t, 1, d.Submitted())

	for i, v := range br.Contents() {
		assert.Equal(t, float32(11*i), v)
	}
}

func TestHostDevice_DispatchErrors(t *testing.T) {
	d := newTestDevice(t, HostOptions{MaxThreadsPerGroup: 8})
	p := newTestPipeline(t, d, "vector_sqr")

	encode := func(t *testing.T, fn func(enc ComputeEncoder)) CommandBuffer {
		t.Helper()
		q, err := d.NewCommandQueue()
		require.NoError(t, err)
		cb, err := q.CommandBuffer()
		require.NoError(t, err)
		enc, err := cb.ComputeEncoder()
		require.NoError(t, err)
		fn(enc)
		return cb
	}

	t.Run("group size above device limit", func(t *testing.T) {
		cb := encode(t, func(enc ComputeEncoder) {
			enc.SetPipeline(p)
			enc.Dispatch(16, 16)
			enc.EndEncoding()
		})
		err := cb.Commit()
		assert.EqualError(t, err, "thread group size 16 outside [1, 8]")
	})

	t.Run("dispatch without pipeline", func(t *testing.T) {
		cb := encode(t, func(enc ComputeEncoder) {
			enc.Dispatch(1, 1)
		})
		assert.EqualError(t, cb.Commit(), "dispatch without a pipeline")
	})

	t.Run("dispatch after end encoding", func(t *testing.T) {
		cb := encode(t, func(enc ComputeEncoder) {
			enc.SetPipeline(p)
			enc.EndEncoding()
			enc.Dispatch(1, 1)
		})
		assert.EqualError(t, cb.Commit(), "dispatch after EndEncoding")
	})

	t.Run("wait without commit", func(t *testing.T) {
		cb := encode(t, func(enc ComputeEncoder) {})
		assert.Error(t, cb.WaitUntilCompleted())
	})

	t.Run("double commit", func(t *testing.T) {
		cb := encode(t, func(enc ComputeEncoder) { enc.EndEncoding() })
		require.NoError(t, cb.Commit())
		require.NoError(t, cb.WaitUntilCompleted())
		assert.Error(t, cb.Commit())
	})

	t.Run("argument table mismatch", func(t *testing.T) {
		bx := newTestBuffer(t, d, []float32{1, 2})
		cb := encode(t, func(enc ComputeEncoder) {
			enc.SetPipeline(p)
			enc.SetBuffer(bx, 0)
			enc.SetInt(0, 1)
			enc.SetFloat(1, 2)
			enc.SetBuffer(bx, 3)
			enc.SetInt(0, 4)
			enc.SetInt(1, 5)
			enc.Dispatch(2, 2)
			enc.EndEncoding()
		})
		require.NoError(t, cb.Commit())
		err := cb.WaitUntilCompleted()
		assert.EqualError(t, err, "kernel vector_sqr: argument 2 is float32, want int")
	})

	t.Run("released buffer", func(t *testing.T) {
		bx, err := d.NewBuffer([]float32{1, 2})
		require.NoError(t, err)
		bx.Release()
		cb := encode(t, func(enc ComputeEncoder) {
			enc.SetPipeline(p)
			for i := 0; i < 2; i++ {
				enc.SetBuffer(bx, 3*i)
				enc.SetInt(0, 3*i+1)
				enc.SetInt(1, 3*i+2)
			}
			enc.Dispatch(2, 2)
			enc.EndEncoding()
		})
		require.NoError(t, cb.Commit())
		assert.EqualError(t, cb.WaitUntilCompleted(), "kernel vector_sqr: argument 0 is a released buffer")
	})

	t.Run("out of bounds access faults", func(t *testing.T) {
		bx := newTestBuffer(t, d, []float32{1, 2})
		cb := encode(t, func(enc ComputeEncoder) {
			enc.SetPipeline(p)
			for i := 0; i < 2; i++ {
				enc.SetBuffer(bx, 3*i)
				enc.SetInt(0, 3*i+1)
				enc.SetInt(1, 3*i+2)
			}
			enc.Dispatch(4, 4)
			enc.EndEncoding()
		})
		require.NoError(t, cb.Commit())
		err := cb.WaitUntilCompleted()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "kernel vector_sqr faulted")
	})
}
