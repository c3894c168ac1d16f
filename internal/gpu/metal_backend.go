//go:build metal && darwin
// +build metal,darwin

package gpu

/*
#cgo CFLAGS: -x objective-c -fobjc-arc
#cgo LDFLAGS: -framework Metal -framework Foundation
#include <stdlib.h>
#include <string.h>
#import <Metal/Metal.h>
#import <Foundation/Foundation.h>

typedef void* MetalRef;

static void ferrum_release(MetalRef ref) {
	if (ref != NULL) {
		CFRelease(ref);
	}
}

static char* ferrum_error(NSError* err) {
	if (err == nil) {
		return strdup("unknown error");
	}
	return strdup([[err localizedDescription] UTF8String]);
}

// Metal has no default device without a UI session, so take the first one.
static MetalRef ferrum_device_first(void) {
	NSArray<id<MTLDevice>>* devices = MTLCopyAllDevices();
	if (devices == nil || [devices count] == 0) {
		return NULL;
	}
	return (__bridge_retained void*)devices[0];
}

static const char* ferrum_device_name(MetalRef dev) {
	return [[(__bridge id<MTLDevice>)dev name] UTF8String];
}

static unsigned long long ferrum_device_memory(MetalRef dev) {
	return [(__bridge id<MTLDevice>)dev recommendedMaxWorkingSetSize];
}

static unsigned long long ferrum_device_allocated(MetalRef dev) {
	return [(__bridge id<MTLDevice>)dev currentAllocatedSize];
}

static int ferrum_device_unified(MetalRef dev) {
	return [(__bridge id<MTLDevice>)dev hasUnifiedMemory] ? 1 : 0;
}

static int ferrum_device_max_threads(MetalRef dev) {
	return (int)[(__bridge id<MTLDevice>)dev maxThreadsPerThreadgroup].width;
}

static MetalRef ferrum_library_data(MetalRef dev, const void* data, size_t size, char** errOut) {
	dispatch_data_t blob = dispatch_data_create(data, size, nil, DISPATCH_DATA_DESTRUCTOR_DEFAULT);
	NSError* err = nil;
	id<MTLLibrary> lib = [(__bridge id<MTLDevice>)dev newLibraryWithData:blob error:&err];
	if (lib == nil) {
		*errOut = ferrum_error(err);
		return NULL;
	}
	return (__bridge_retained void*)lib;
}

static MetalRef ferrum_library_file(MetalRef dev, const char* path, char** errOut) {
	NSURL* url = [NSURL fileURLWithPath:[NSString stringWithUTF8String:path]];
	NSError* err = nil;
	id<MTLLibrary> lib = [(__bridge id<MTLDevice>)dev newLibraryWithURL:url error:&err];
	if (lib == nil) {
		*errOut = ferrum_error(err);
		return NULL;
	}
	return (__bridge_retained void*)lib;
}

static int ferrum_library_count(MetalRef lib) {
	return (int)[[(__bridge id<MTLLibrary>)lib functionNames] count];
}

static const char* ferrum_library_name(MetalRef lib, int i) {
	return [[(__bridge id<MTLLibrary>)lib functionNames][i] UTF8String];
}

static MetalRef ferrum_pipeline(MetalRef dev, MetalRef lib, const char* name, char** errOut) {
	id<MTLFunction> fn = [(__bridge id<MTLLibrary>)lib newFunctionWithName:[NSString stringWithUTF8String:name]];
	if (fn == nil) {
		*errOut = strdup("function not found in library");
		return NULL;
	}
	NSError* err = nil;
	id<MTLComputePipelineState> state = [(__bridge id<MTLDevice>)dev newComputePipelineStateWithFunction:fn error:&err];
	if (state == nil) {
		*errOut = ferrum_error(err);
		return NULL;
	}
	return (__bridge_retained void*)state;
}

static MetalRef ferrum_buffer(MetalRef dev, const float* data, size_t n) {
	id<MTLDevice> d = (__bridge id<MTLDevice>)dev;
	id<MTLBuffer> buf;
	if (n == 0) {
		buf = [d newBufferWithLength:sizeof(float) options:MTLResourceStorageModeShared];
	} else {
		buf = [d newBufferWithBytes:data length:n * sizeof(float) options:MTLResourceStorageModeShared];
	}
	if (buf == nil) {
		return NULL;
	}
	return (__bridge_retained void*)buf;
}

static float* ferrum_buffer_contents(MetalRef buf) {
	return (float*)[(__bridge id<MTLBuffer>)buf contents];
}

static MetalRef ferrum_queue(MetalRef dev) {
	id<MTLCommandQueue> q = [(__bridge id<MTLDevice>)dev newCommandQueue];
	if (q == nil) {
		return NULL;
	}
	return (__bridge_retained void*)q;
}

static MetalRef ferrum_command_buffer(MetalRef queue) {
	id<MTLCommandBuffer> cb = [(__bridge id<MTLCommandQueue>)queue commandBuffer];
	if (cb == nil) {
		return NULL;
	}
	return (__bridge_retained void*)cb;
}

static MetalRef ferrum_encoder(MetalRef cb) {
	id<MTLComputeCommandEncoder> enc = [(__bridge id<MTLCommandBuffer>)cb computeCommandEncoder];
	if (enc == nil) {
		return NULL;
	}
	return (__bridge_retained void*)enc;
}

static void ferrum_set_pipeline(MetalRef enc, MetalRef p) {
	[(__bridge id<MTLComputeCommandEncoder>)enc setComputePipelineState:(__bridge id<MTLComputePipelineState>)p];
}

static void ferrum_set_buffer(MetalRef enc, MetalRef buf, int index) {
	[(__bridge id<MTLComputeCommandEncoder>)enc setBuffer:(__bridge id<MTLBuffer>)buf offset:0 atIndex:index];
}

static void ferrum_set_bytes(MetalRef enc, const void* v, size_t size, int index) {
	[(__bridge id<MTLComputeCommandEncoder>)enc setBytes:v length:size atIndex:index];
}

static void ferrum_dispatch(MetalRef enc, int threads, int group) {
	[(__bridge id<MTLComputeCommandEncoder>)enc dispatchThreads:MTLSizeMake(threads, 1, 1)
	                                     threadsPerThreadgroup:MTLSizeMake(group, 1, 1)];
}

static void ferrum_end_encoding(MetalRef enc) {
	[(__bridge id<MTLComputeCommandEncoder>)enc endEncoding];
}

static void ferrum_commit(MetalRef cb) {
	[(__bridge id<MTLCommandBuffer>)cb commit];
}

static char* ferrum_wait(MetalRef cb) {
	id<MTLCommandBuffer> b = (__bridge id<MTLCommandBuffer>)cb;
	[b waitUntilCompleted];
	if ([b status] == MTLCommandBufferStatusError) {
		return ferrum_error([b error]);
	}
	return NULL;
}
*/
import "C"

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	"go.uber.org/zap"
)

// MetalLibraryFormat is the file extension of compiled Metal libraries.
const MetalLibraryFormat = "metallib"

// MetalDevice implements Device using Apple Metal
type MetalDevice struct {
	logger *zap.Logger
	ref    C.MetalRef
	info   DeviceInfo
}

// NewMetalDevice selects the first Metal device on the system.
func NewMetalDevice(logger *zap.Logger) (*MetalDevice, error) {
	ref := C.ferrum_device_first()
	if ref == nil {
		return nil, fmt.Errorf("%w: Metal is not supported on this device", ErrNoDevice)
	}
	d := &MetalDevice{logger: logger.Named("metal_device"), ref: ref}
	d.info = DeviceInfo{
		Name:              C.GoString(C.ferrum_device_name(ref)),
		Backend:           "metal",
		TotalMemory:       int64(C.ferrum_device_memory(ref)),
		AvailableMemory:   int64(C.ferrum_device_memory(ref) - C.ferrum_device_allocated(ref)),
		ComputeCapability: "Metal",
		DriverVersion:     runtime.GOOS + " " + runtime.GOARCH,
	}
	if C.ferrum_device_unified(ref) == 1 {
		d.info.ComputeCapability += " (Unified Memory)"
	}
	d.logger.Info("Running on device", zap.String("device", d.info.Name))
	return d, nil
}

func (d *MetalDevice) Info() DeviceInfo { return d.info }

func (d *MetalDevice) MaxThreadsPerGroup() int {
	return int(C.ferrum_device_max_threads(d.ref))
}

func (d *MetalDevice) LibraryFormat() string { return MetalLibraryFormat }

func takeError(cerr *C.char) error {
	if cerr == nil {
		return errors.New("unknown Metal error")
	}
	defer C.free(unsafe.Pointer(cerr))
	return errors.New(C.GoString(cerr))
}

func (d *MetalDevice) NewLibraryWithData(data []byte) (Library, error) {
	if len(data) == 0 {
		return nil, errors.New("empty Metal library data")
	}
	var cerr *C.char
	ref := C.ferrum_library_data(d.ref, unsafe.Pointer(&data[0]), C.size_t(len(data)), &cerr)
	if ref == nil {
		return nil, fmt.Errorf("failed to load Metal library: %w", takeError(cerr))
	}
	return &metalLibrary{device: d, ref: ref}, nil
}

func (d *MetalDevice) NewLibraryWithFile(path string) (Library, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	var cerr *C.char
	ref := C.ferrum_library_file(d.ref, cpath, &cerr)
	if ref == nil {
		return nil, fmt.Errorf("failed to load Metal library from %s: %w", path, takeError(cerr))
	}
	return &metalLibrary{device: d, ref: ref}, nil
}

func (d *MetalDevice) NewBuffer(data []float32) (Buffer, error) {
	var ptr *C.float
	if len(data) > 0 {
		ptr = (*C.float)(unsafe.Pointer(&data[0]))
	}
	ref := C.ferrum_buffer(d.ref, ptr, C.size_t(len(data)))
	if ref == nil {
		return nil, fmt.Errorf("failed to create Metal buffer of %d elements", len(data))
	}
	return &metalBuffer{ref: ref, n: len(data)}, nil
}

func (d *MetalDevice) NewCommandQueue() (CommandQueue, error) {
	ref := C.ferrum_queue(d.ref)
	if ref == nil {
		return nil, errors.New("failed to create Metal command queue")
	}
	return &metalQueue{ref: ref}, nil
}

func (d *MetalDevice) Release() error {
	C.ferrum_release(d.ref)
	d.ref = nil
	return nil
}

type metalLibrary struct {
	device *MetalDevice
	ref    C.MetalRef
}

func (l *metalLibrary) FunctionNames() []string {
	n := int(C.ferrum_library_count(l.ref))
	names := make([]string, n)
	for i := range names {
		names[i] = C.GoString(C.ferrum_library_name(l.ref, C.int(i)))
	}
	return names
}

func (l *metalLibrary) NewPipeline(name string) (Pipeline, error) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	var cerr *C.char
	ref := C.ferrum_pipeline(l.device.ref, l.ref, cname, &cerr)
	if ref == nil {
		return nil, takeError(cerr)
	}
	return &metalPipeline{name: name, ref: ref}, nil
}

func (l *metalLibrary) Release() { C.ferrum_release(l.ref) }

type metalPipeline struct {
	name string
	ref  C.MetalRef
}

func (p *metalPipeline) Name() string { return p.name }

func (p *metalPipeline) Release() { C.ferrum_release(p.ref) }

type metalBuffer struct {
	ref C.MetalRef
	n   int
}

func (b *metalBuffer) Len() int { return b.n }

func (b *metalBuffer) Contents() []float32 {
	if b.n == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(C.ferrum_buffer_contents(b.ref))), b.n)
}

func (b *metalBuffer) Release() { C.ferrum_release(b.ref) }

type metalQueue struct {
	ref C.MetalRef
}

func (q *metalQueue) CommandBuffer() (CommandBuffer, error) {
	ref := C.ferrum_command_buffer(q.ref)
	if ref == nil {
		return nil, errors.New("failed to create Metal command buffer")
	}
	return &metalCommandBuffer{ref: ref}, nil
}

func (q *metalQueue) Release() { C.ferrum_release(q.ref) }

type metalCommandBuffer struct {
	ref       C.MetalRef
	encodeErr error
}

func (cb *metalCommandBuffer) ComputeEncoder() (ComputeEncoder, error) {
	ref := C.ferrum_encoder(cb.ref)
	if ref == nil {
		return nil, errors.New("failed to create Metal command encoder")
	}
	return &metalEncoder{cb: cb, ref: ref}, nil
}

func (cb *metalCommandBuffer) Commit() error {
	if cb.encodeErr != nil {
		C.ferrum_release(cb.ref)
		return cb.encodeErr
	}
	C.ferrum_commit(cb.ref)
	return nil
}

func (cb *metalCommandBuffer) WaitUntilCompleted() error {
	defer C.ferrum_release(cb.ref)
	if cerr := C.ferrum_wait(cb.ref); cerr != nil {
		return fmt.Errorf("Metal command buffer failed: %w", takeError(cerr))
	}
	return nil
}

type metalEncoder struct {
	cb  *metalCommandBuffer
	ref C.MetalRef
}

func (e *metalEncoder) fail(err error) {
	if e.cb.encodeErr == nil {
		e.cb.encodeErr = err
	}
}

func (e *metalEncoder) SetPipeline(p Pipeline) {
	mp, ok := p.(*metalPipeline)
	if !ok {
		e.fail(fmt.Errorf("pipeline %T does not belong to the Metal device", p))
		return
	}
	C.ferrum_set_pipeline(e.ref, mp.ref)
}

func (e *metalEncoder) SetBuffer(b Buffer, index int) {
	mb, ok := b.(*metalBuffer)
	if !ok {
		e.fail(fmt.Errorf("buffer %T does not belong to the Metal device", b))
		return
	}
	C.ferrum_set_buffer(e.ref, mb.ref, C.int(index))
}

func (e *metalEncoder) SetInt(v int32, index int) {
	C.ferrum_set_bytes(e.ref, unsafe.Pointer(&v), C.size_t(unsafe.Sizeof(v)), C.int(index))
}

func (e *metalEncoder) SetFloat(v float32, index int) {
	C.ferrum_set_bytes(e.ref, unsafe.Pointer(&v), C.size_t(unsafe.Sizeof(v)), C.int(index))
}

func (e *metalEncoder) Dispatch(threads, groupSize int) {
	C.ferrum_dispatch(e.ref, C.int(threads), C.int(groupSize))
}

func (e *metalEncoder) EndEncoding() {
	C.ferrum_end_encoding(e.ref)
	C.ferrum_release(e.ref)
}
