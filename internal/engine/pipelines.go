// Package engine executes named kernels on a compute device.
//
// An Engine loads the kernel library once, compiles one pipeline per entry
// point into a table indexed by operation ID, and then runs calls through a
// single generic protocol driven by the argument-shape catalog in shape.go.
package engine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/fxnlabs/ferrum/internal/gpu"
	"github.com/fxnlabs/ferrum/internal/library"
	"github.com/fxnlabs/ferrum/internal/metrics"
	"github.com/fxnlabs/ferrum/internal/registry"
	"go.uber.org/zap"
)

// SlotState distinguishes a slot that was never tried from one that failed.
type SlotState int

const (
	SlotUnattempted SlotState = iota
	SlotReady
	SlotFailed
)

func (s SlotState) String() string {
	switch s {
	case SlotUnattempted:
		return "unattempted"
	case SlotReady:
		return "ready"
	case SlotFailed:
		return "failed"
	}
	return "unknown"
}

// PipelineSlot is one entry of the pipeline table.
type PipelineSlot struct {
	state    SlotState
	name     string
	domain   DomainKind
	shape    Shape
	pipeline gpu.Pipeline
	err      error
}

func (s PipelineSlot) State() SlotState { return s.state }

// Name returns the entry-point name the slot was filled from, if any.
func (s PipelineSlot) Name() string { return s.name }

// Shape returns the argument shape of a ready slot.
func (s PipelineSlot) Shape() Shape { return s.shape }

// Err returns the recorded failure of a failed slot.
func (s PipelineSlot) Err() error { return s.err }

// DispatchPolicy decides how calls larger than one thread group are sized.
type DispatchPolicy string

const (
	// PolicyMultiGroup dispatches one thread per element in as many groups
	// as needed.
	PolicyMultiGroup DispatchPolicy = "multi-group"
	// PolicySingleGroup dispatches exactly one group and rejects calls
	// larger than the device's group limit.
	PolicySingleGroup DispatchPolicy = "single-group"
)

// Options configures New.
type Options struct {
	Library  library.Options
	Registry registry.Registry

	// Strict fails construction when any library entry point cannot be
	// compiled or is missing from the registry.
	Strict bool
	Policy DispatchPolicy
	Logger *zap.Logger
}

// Engine owns a device, its kernel library, a command queue and the
// pipeline table. It is immutable after New and safe for concurrent use.
type Engine struct {
	logger       *zap.Logger
	device       gpu.Device
	library      gpu.Library
	source       library.Source
	queue        gpu.CommandQueue
	registry     registry.Registry
	slots        []PipelineSlot
	unregistered []string
	policy       DispatchPolicy
	maxGroup     int
	closeOnce    sync.Once
}

// New builds an engine on dev. A nil device is ErrNoDevice and a library
// that cannot be loaded is ErrLibraryLoad. Entry points that fail to compile
// or resolve leave their slot failed without failing construction, unless
// opts.Strict is set, in which case they are ErrLibraryLoad.
func New(dev gpu.Device, opts Options) (*Engine, error) {
	if dev == nil {
		return nil, ErrNoDevice
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Registry == nil {
		opts.Registry = registry.Default()
	}
	switch opts.Policy {
	case "":
		opts.Policy = PolicyMultiGroup
	case PolicyMultiGroup, PolicySingleGroup:
	default:
		return nil, fmt.Errorf("unknown dispatch policy %q", opts.Policy)
	}
	if opts.Library.Logger == nil {
		opts.Library.Logger = opts.Logger
	}

	e := &Engine{
		logger:   opts.Logger.Named("engine"),
		device:   dev,
		registry: opts.Registry,
		policy:   opts.Policy,
		maxGroup: dev.MaxThreadsPerGroup(),
	}

	lib, src, err := library.Load(dev, opts.Library)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLibraryLoad, err)
	}
	e.library, e.source = lib, src

	names := lib.FunctionNames()
	if len(names) == 0 {
		lib.Release()
		return nil, fmt.Errorf("%w: no functions in library from %v", ErrLibraryLoad, src)
	}

	queue, err := dev.NewCommandQueue()
	if err != nil {
		lib.Release()
		return nil, fmt.Errorf("%w: creating command queue: %w", ErrSubmission, err)
	}
	e.queue = queue

	e.slots = make([]PipelineSlot, opts.Registry.Len())
	failed := e.compile(names)

	e.report()
	if opts.Strict && (failed > 0 || len(e.unregistered) > 0) {
		e.Close()
		return nil, fmt.Errorf("%w: %d entry points failed to compile and %d are not registered",
			ErrLibraryLoad, failed, len(e.unregistered))
	}
	return e, nil
}

// compile fills the pipeline table from the library entry points and
// returns the number of slots that failed.
func (e *Engine) compile(names []string) int {
	failed := 0
	for _, name := range names {
		id, ok := e.registry.Lookup(name)
		if !ok {
			e.logger.Warn("Library function not in registry", zap.String("function", name))
			e.unregistered = append(e.unregistered, name)
			continue
		}
		slot := &e.slots[id]
		if slot.state != SlotUnattempted {
			e.logger.Warn("Duplicate library function", zap.String("function", name))
			continue
		}
		slot.name = name

		domain, shape, ok := ShapeOf(name)
		if !ok {
			slot.state, slot.err = SlotFailed, &SlotError{Name: name, Err: errors.New("no argument shape for operation")}
			failed++
			e.logger.Warn("Failed to build pipeline", zap.Error(slot.err))
			continue
		}
		p, err := e.library.NewPipeline(name)
		if err != nil {
			slot.state, slot.err = SlotFailed, &SlotError{Name: name, Err: err}
			failed++
			e.logger.Warn("Failed to build pipeline", zap.Error(slot.err))
			continue
		}
		slot.state, slot.domain, slot.shape, slot.pipeline = SlotReady, domain, shape, p
	}
	return failed
}

func (e *Engine) report() {
	counts := e.SlotCounts()
	for state := SlotUnattempted; state <= SlotFailed; state++ {
		metrics.PipelineSlots.WithLabelValues(state.String()).Set(float64(counts[state]))
	}
	e.logger.Info("Pipelines built",
		zap.String("device", e.device.Info().Name),
		zap.Stringer("library", e.source),
		zap.Int("ready", counts[SlotReady]),
		zap.Int("failed", counts[SlotFailed]),
		zap.Int("unattempted", counts[SlotUnattempted]),
		zap.Int("unregistered", len(e.unregistered)),
		zap.String("policy", string(e.policy)))
}

// Slot returns the pipeline slot for id. Out-of-range IDs yield an
// unattempted slot.
func (e *Engine) Slot(id registry.OperationID) PipelineSlot {
	if id < 0 || int(id) >= len(e.slots) {
		return PipelineSlot{}
	}
	return e.slots[id]
}

// SlotCounts returns the number of slots in each state.
func (e *Engine) SlotCounts() map[SlotState]int {
	counts := make(map[SlotState]int, 3)
	for _, s := range e.slots {
		counts[s.state]++
	}
	return counts
}

// Lookup returns the registry ID for name.
func (e *Engine) Lookup(name string) (registry.OperationID, bool) {
	return e.registry.Lookup(name)
}

// ID returns the ID of a dispatchable operation, or ErrUnresolvedOperation.
func (e *Engine) ID(name string) (registry.OperationID, error) {
	id, ok := e.registry.Lookup(name)
	if !ok {
		return 0, fmt.Errorf("%w: unknown operation %q", ErrUnresolvedOperation, name)
	}
	if slot := e.slots[id]; slot.state != SlotReady {
		return id, e.unresolved(id, slot)
	}
	return id, nil
}

func (e *Engine) unresolved(id registry.OperationID, slot PipelineSlot) error {
	if slot.err != nil {
		return fmt.Errorf("%w: %w", ErrUnresolvedOperation, slot.err)
	}
	return fmt.Errorf("%w: %s (id %d) is not in the library", ErrUnresolvedOperation, e.registry.Name(id), int(id))
}

// Unregistered returns library entry points with no registry ID.
func (e *Engine) Unregistered() []string {
	return append([]string(nil), e.unregistered...)
}

// Registry returns the registry the pipeline table is indexed by.
func (e *Engine) Registry() registry.Registry { return e.registry }

// Device returns the device the engine dispatches to.
func (e *Engine) Device() gpu.Device { return e.device }

// Source reports where the kernel library was loaded from.
func (e *Engine) Source() library.Source { return e.source }

// Policy returns the dispatch sizing policy.
func (e *Engine) Policy() DispatchPolicy { return e.policy }

// Close releases the pipelines, the command queue and the library. The
// device is owned by the caller.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		for i := range e.slots {
			if p := e.slots[i].pipeline; p != nil {
				p.Release()
			}
		}
		if e.queue != nil {
			e.queue.Release()
		}
		if e.library != nil {
			e.library.Release()
		}
	})
}
