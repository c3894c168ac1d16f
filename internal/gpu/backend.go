package gpu

import "errors"

// ErrNoDevice is returned when no compute device can be selected.
var ErrNoDevice = errors.New("no compute device available")

// DeviceInfo contains information about the compute device
type DeviceInfo struct {
	Name              string `json:"name"`
	Backend           string `json:"backend"`
	TotalMemory       int64  `json:"totalMemory"`     // in bytes
	AvailableMemory   int64  `json:"availableMemory"` // in bytes
	ComputeCapability string `json:"computeCapability"`
	DriverVersion     string `json:"driverVersion"`
}

// Device is a handle to the accelerator kernels run on.
//
// The interface follows the shape of the Metal API so that a device backend
// is a thin binding:
// - a Device loads Libraries and creates Buffers and CommandQueues
// - a Library exposes named entry points and compiles them into Pipelines
// - work reaches the device through CommandBuffers opened on a CommandQueue
//
// Implementations must be safe for concurrent use. Objects created by a
// Device must be released by the caller.
type Device interface {
	// Info returns information about the device. It is used for logging
	// and the CLI info command.
	Info() DeviceInfo

	// MaxThreadsPerGroup is the largest thread group a single dispatch can use.
	MaxThreadsPerGroup() int

	// LibraryFormat is the file extension of compiled libraries this device
	// loads, e.g. "metallib".
	LibraryFormat() string

	// NewLibraryWithData loads a compiled library from memory.
	NewLibraryWithData(data []byte) (Library, error)

	// NewLibraryWithFile loads a compiled library from the filesystem.
	NewLibraryWithFile(path string) (Library, error)

	// NewBuffer creates a device-visible buffer holding a copy of data.
	NewBuffer(data []float32) (Buffer, error)

	// NewCommandQueue creates an ordered channel for submitting work.
	NewCommandQueue() (CommandQueue, error)

	// Release frees the device handle.
	Release() error
}

// Library is a compiled kernel module.
type Library interface {
	// FunctionNames lists every entry point in the library.
	FunctionNames() []string

	// NewPipeline compiles an entry point into an executable pipeline.
	NewPipeline(name string) (Pipeline, error)

	Release()
}

// Pipeline is a compiled, ready-to-dispatch entry point.
type Pipeline interface {
	Name() string
	Release()
}

// Buffer is device-visible memory holding float32 elements.
type Buffer interface {
	// Len returns the number of elements in the buffer.
	Len() int

	// Contents returns the buffer memory. The slice is only valid until
	// Release is called.
	Contents() []float32

	Release()
}

// CommandQueue orders units of work submitted to the device.
type CommandQueue interface {
	CommandBuffer() (CommandBuffer, error)
	Release()
}

// CommandBuffer is one unit of work.
type CommandBuffer interface {
	// ComputeEncoder opens an encoder for compute commands.
	ComputeEncoder() (ComputeEncoder, error)

	// Commit submits the encoded work to the device.
	Commit() error

	// WaitUntilCompleted blocks until the device finishes the work and
	// reports any execution error.
	WaitUntilCompleted() error
}

// ComputeEncoder records compute commands into a CommandBuffer. Encoding
// errors are reported when the command buffer is committed.
type ComputeEncoder interface {
	SetPipeline(p Pipeline)
	SetBuffer(b Buffer, index int)
	SetInt(v int32, index int)
	SetFloat(v float32, index int)

	// Dispatch runs threads threads in groups of groupSize.
	Dispatch(threads, groupSize int)

	EndEncoding()
}
