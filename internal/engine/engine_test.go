package engine

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fxnlabs/ferrum/internal/gpu"
	"github.com/fxnlabs/ferrum/internal/library"
	"github.com/fxnlabs/ferrum/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func manifest(functions ...string) []byte {
	return []byte("format: ferrum-hostlib/1\nfunctions: [" + strings.Join(functions, ", ") + "]\n")
}

// libraryOptions serves data as the embedded blob and keeps the filesystem
// search away from the real environment.
func libraryOptions(data []byte) library.Options {
	return library.Options{
		Getenv:     func(string) string { return "" },
		Executable: func() (string, error) { return "", errors.New("none") },
		Embedded:   func(string) []byte { return data },
		DefaultDir: filepath.Join(os.TempDir(), "ferrum-engine-test-missing"),
	}
}

func newHostDevice(opts gpu.HostOptions) *gpu.HostDevice {
	return gpu.NewHostDevice(zap.NewNop(), opts)
}

// newTestEngine builds an engine over the full embedded host library.
func newTestEngine(t *testing.T, dev gpu.Device, policy DispatchPolicy) *Engine {
	t.Helper()
	e, err := New(dev, Options{Policy: policy, Logger: zap.NewNop()})
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func TestNew(t *testing.T) {
	dev := newHostDevice(gpu.HostOptions{})
	e := newTestEngine(t, dev, "")

	counts := e.SlotCounts()
	assert.Equal(t, registry.Default().Len(), counts[SlotReady])
	assert.Zero(t, counts[SlotFailed])
	assert.Zero(t, counts[SlotUnattempted])
	assert.Empty(t, e.Unregistered())
	assert.Equal(t, library.SourceEmbedded, e.Source().Kind)
	assert.Equal(t, PolicyMultiGroup, e.Policy())
	assert.Same(t, dev, e.Device())
	assert.Equal(t, registry.Default().Len(), e.Registry().Len())

	id, err := e.ID("vector_add")
	require.NoError(t, err)
	slot := e.Slot(id)
	assert.Equal(t, SlotReady, slot.State())
	assert.Equal(t, "vector_add", slot.Name())
	assert.Equal(t, ShapeBinary, slot.Shape())
	assert.NoError(t, slot.Err())
}

func TestNew_Errors(t *testing.T) {
	t.Run("no device", func(t *testing.T) {
		_, err := New(nil, Options{})
		assert.ErrorIs(t, err, ErrNoDevice)
	})

	t.Run("library not found", func(t *testing.T) {
		_, err := New(newHostDevice(gpu.HostOptions{}), Options{Library: libraryOptions(nil)})
		assert.ErrorIs(t, err, ErrLibraryLoad)
		assert.ErrorIs(t, err, library.ErrNotFound)
	})

	t.Run("library without functions", func(t *testing.T) {
		_, err := New(newHostDevice(gpu.HostOptions{}), Options{Library: libraryOptions(manifest())})
		assert.ErrorIs(t, err, ErrLibraryLoad)
		assert.Contains(t, err.Error(), "no functions in library")
	})

	t.Run("unknown policy", func(t *testing.T) {
		_, err := New(newHostDevice(gpu.HostOptions{}), Options{Policy: "round-robin"})
		assert.EqualError(t, err, `unknown dispatch policy "round-robin"`)
	})
}

func TestNew_PartialInitialization(t *testing.T) {
	names := append(registry.Default().Names(), "ge_swap", "vector_frobnicate")
	reg, err := registry.NewTable(names)
	require.NoError(t, err)
	data := manifest("vector_add", "ge_swap", "vector_frobnicate", "vector_unknown")

	t.Run("lenient", func(t *testing.T) {
		e, err := New(newHostDevice(gpu.HostOptions{}), Options{
			Library:  libraryOptions(data),
			Registry: reg,
		})
		require.NoError(t, err)
		defer e.Close()

		assert.Equal(t, []string{"vector_unknown"}, e.Unregistered())

		counts := e.SlotCounts()
		assert.Equal(t, 1, counts[SlotReady])
		assert.Equal(t, 2, counts[SlotFailed])
		assert.Equal(t, reg.Len()-3, counts[SlotUnattempted])

		// compile failure inside the library
		id, _ := reg.Lookup("ge_swap")
		slot := e.Slot(id)
		assert.Equal(t, SlotFailed, slot.State())
		var slotErr *SlotError
		require.ErrorAs(t, slot.Err(), &slotErr)
		assert.Equal(t, "ge_swap", slotErr.Name)

		// no argument shape for the name
		id, _ = reg.Lookup("vector_frobnicate")
		assert.Equal(t, SlotFailed, e.Slot(id).State())

		_, err = e.ID("ge_swap")
		assert.ErrorIs(t, err, ErrUnresolvedOperation)
		assert.ErrorAs(t, err, &slotErr)

		// the rest of the table stays usable
		out, err := e.Vector(2).Run("vector_add", []View{VectorView([]float32{1, 2}), VectorView([]float32{3, 4})}, nil, VectorView(make([]float32, 2)))
		require.NoError(t, err)
		assert.Equal(t, []float32{4, 6}, out)
	})

	t.Run("strict", func(t *testing.T) {
		dev := newHostDevice(gpu.HostOptions{})
		_, err := New(dev, Options{
			Library:  libraryOptions(data),
			Registry: reg,
			Strict:   true,
		})
		assert.ErrorIs(t, err, ErrLibraryLoad)
		assert.NotErrorIs(t, err, ErrUnresolvedOperation)
		assert.Contains(t, err.Error(), "2 entry points failed to compile and 1 are not registered")
	})

	t.Run("strict with a clean library", func(t *testing.T) {
		e, err := New(newHostDevice(gpu.HostOptions{}), Options{
			Library: libraryOptions(manifest("vector_add", "vector_sqr")),
			Strict:  true,
		})
		require.NoError(t, err)
		e.Close()
		e.Close()
	})
}

type mockQueue struct {
	mock.Mock
}

func (q *mockQueue) CommandBuffer() (gpu.CommandBuffer, error) {
	args := q.Called()
	cb, _ := args.Get(0).(gpu.CommandBuffer)
	return cb, args.Error(1)
}

func (q *mockQueue) Release() { q.Called() }

// queueDevice is a host device whose command queue is replaced.
type queueDevice struct {
	*gpu.HostDevice
	queue gpu.CommandQueue
}

func (d *queueDevice) NewCommandQueue() (gpu.CommandQueue, error) { return d.queue, nil }

func TestExecute_UnresolvedNeverSubmits(t *testing.T) {
	q := &mockQueue{}
	q.On("Release").Return()
	dev := &queueDevice{HostDevice: newHostDevice(gpu.HostOptions{}), queue: q}

	e, err := New(dev, Options{Library: libraryOptions(manifest("vector_add"))})
	require.NoError(t, err)

	sqr, ok := e.Lookup("vector_sqr")
	require.True(t, ok)
	assert.Equal(t, SlotUnattempted, e.Slot(sqr).State())

	x := VectorView([]float32{1, 2, 3})
	out := VectorView(make([]float32, 3))
	_, err = e.Vector(3).Unary(sqr, x, out)
	assert.ErrorIs(t, err, ErrUnresolvedOperation)

	_, err = e.Vector(3).Unary(registry.OperationID(-1), x, out)
	assert.ErrorIs(t, err, ErrUnresolvedOperation)

	_, err = e.Vector(3).Unary(registry.OperationID(1<<20), x, out)
	assert.ErrorIs(t, err, ErrUnresolvedOperation)

	assert.Equal(t, []float32{0, 0, 0}, out.Data)
	q.AssertNotCalled(t, "CommandBuffer")
	assert.Zero(t, dev.LiveBuffers())

	e.Close()
	q.AssertCalled(t, "Release")
}

func TestExecute_SubmissionFailureReleasesBuffers(t *testing.T) {
	q := &mockQueue{}
	q.On("CommandBuffer").Return(nil, errors.New("queue is full"))
	q.On("Release").Return()
	dev := &queueDevice{HostDevice: newHostDevice(gpu.HostOptions{}), queue: q}

	e, err := New(dev, Options{Library: libraryOptions(manifest("vector_add"))})
	require.NoError(t, err)
	defer e.Close()

	add, err := e.ID("vector_add")
	require.NoError(t, err)
	_, err = e.Vector(2).Binary(add, VectorView([]float32{1, 2}), VectorView([]float32{3, 4}), VectorView(make([]float32, 2)))
	assert.ErrorIs(t, err, ErrSubmission)
	assert.Contains(t, err.Error(), "queue is full")
	assert.Zero(t, dev.LiveBuffers())
	q.AssertNumberOfCalls(t, "CommandBuffer", 1)
}
