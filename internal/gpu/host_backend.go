package gpu

import (
	"fmt"
	"os"
	"runtime"
	"slices"
	"sync/atomic"

	"github.com/fxnlabs/ferrum/internal/kernels"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	// HostLibraryFormat is the file extension of host kernel libraries.
	HostLibraryFormat = "hostlib"

	// HostLibraryVersion identifies the host library manifest format.
	HostLibraryVersion = "ferrum-hostlib/1"

	defaultHostThreadsPerGroup = 1024
)

// HostOptions configures a HostDevice.
type HostOptions struct {
	// MaxThreadsPerGroup defaults to 1024, the Metal limit.
	MaxThreadsPerGroup int

	// MaxBufferLength caps the element count of a single buffer. Zero means
	// no limit.
	MaxBufferLength int
}

// HostDevice implements Device on the CPU. Kernels come from the host kernel
// module and thread groups run in parallel goroutines.
type HostDevice struct {
	logger     *zap.Logger
	opts       HostOptions
	liveBuffer atomic.Int64
	submitted  atomic.Int64
}

// NewHostDevice creates a new host device instance
func NewHostDevice(logger *zap.Logger, opts HostOptions) *HostDevice {
	if opts.MaxThreadsPerGroup <= 0 {
		opts.MaxThreadsPerGroup = defaultHostThreadsPerGroup
	}
	return &HostDevice{
		logger: logger.Named("host_device"),
		opts:   opts,
	}
}

// Info returns device information for the host
func (d *HostDevice) Info() DeviceInfo {
	return DeviceInfo{
		Name:              fmt.Sprintf("Host (%s, %d CPUs)", runtime.GOARCH, runtime.NumCPU()),
		Backend:           "host",
		TotalMemory:       getTotalSystemMemory(),
		AvailableMemory:   getAvailableSystemMemory(),
		ComputeCapability: "N/A",
		DriverVersion:     runtime.Version(),
	}
}

func (d *HostDevice) MaxThreadsPerGroup() int { return d.opts.MaxThreadsPerGroup }

func (d *HostDevice) LibraryFormat() string { return HostLibraryFormat }

// hostManifest is the on-disk form of a host library.
type hostManifest struct {
	Format    string   `yaml:"format"`
	Functions []string `yaml:"functions"`
}

// NewLibraryWithData parses a host library manifest.
func (d *HostDevice) NewLibraryWithData(data []byte) (Library, error) {
	var m hostManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse host library: %w", err)
	}
	if m.Format != HostLibraryVersion {
		return nil, fmt.Errorf("unsupported host library format %q", m.Format)
	}
	return &hostLibrary{functions: m.Functions}, nil
}

// NewLibraryWithFile reads and parses a host library manifest.
func (d *HostDevice) NewLibraryWithFile(path string) (Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return d.NewLibraryWithData(data)
}

// NewBuffer copies data into a new host buffer.
func (d *HostDevice) NewBuffer(data []float32) (Buffer, error) {
	if d.opts.MaxBufferLength > 0 && len(data) > d.opts.MaxBufferLength {
		return nil, fmt.Errorf("buffer of %d elements exceeds device limit of %d", len(data), d.opts.MaxBufferLength)
	}
	d.liveBuffer.Add(1)
	return &hostBuffer{device: d, data: slices.Clone(data)}, nil
}

// NewCommandQueue creates a command queue on the host device.
func (d *HostDevice) NewCommandQueue() (CommandQueue, error) {
	return &hostQueue{device: d}, nil
}

// Release releases the device (nothing to free for the host device)
func (d *HostDevice) Release() error {
	return nil
}

// LiveBuffers returns the number of buffers created and not yet released.
func (d *HostDevice) LiveBuffers() int64 {
	return d.liveBuffer.Load()
}

// Submitted returns the number of command buffers committed to the device.
func (d *HostDevice) Submitted() int64 {
	return d.submitted.Load()
}

type hostLibrary struct {
	functions []string
}

func (l *hostLibrary) FunctionNames() []string {
	return slices.Clone(l.functions)
}

func (l *hostLibrary) NewPipeline(name string) (Pipeline, error) {
	if !slices.Contains(l.functions, name) {
		return nil, fmt.Errorf("function %q not found in library", name)
	}
	k, err := kernels.Compile(name)
	if err != nil {
		return nil, err
	}
	return &hostPipeline{kernel: k}, nil
}

func (l *hostLibrary) Release() {}

type hostPipeline struct {
	kernel *kernels.Kernel
}

func (p *hostPipeline) Name() string { return p.kernel.Name() }

func (p *hostPipeline) Release() {}

type hostBuffer struct {
	device   *HostDevice
	data     []float32
	released atomic.Bool
}

func (b *hostBuffer) Len() int { return len(b.data) }

func (b *hostBuffer) Contents() []float32 { return b.data }

func (b *hostBuffer) Release() {
	if b.released.CompareAndSwap(false, true) {
		b.device.liveBuffer.Add(-1)
	}
}

// getTotalSystemMemory returns total system memory in bytes
func getTotalSystemMemory() int64 {
	// Return a default value for now
	// In a real implementation, this would query system memory
	return 8 * 1024 * 1024 * 1024 // 8GB
}

// getAvailableSystemMemory returns available system memory in bytes
func getAvailableSystemMemory() int64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return getTotalSystemMemory() - int64(stats.Sys)
}
