package engine

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/fxnlabs/ferrum/internal/gpu"
	"github.com/fxnlabs/ferrum/internal/metrics"
	"github.com/fxnlabs/ferrum/internal/registry"
	"go.uber.org/zap"
)

// Call is one kernel invocation.
type Call struct {
	ID      registry.OperationID
	Shape   Shape
	Domain  Domain
	Inputs  []View
	Scalars []float32
	Out     View
}

// Execute runs one call: it validates the views, copies every input into a
// fresh device buffer, binds the arguments in shape order, submits a single
// dispatch, waits for it and copies the results back into Out (and, for
// ShapeInOut, into the second input). Per-call buffers are always released.
func (e *Engine) Execute(c Call) (err error) {
	start := time.Now()
	name := e.registry.Name(c.ID)
	if name == "" {
		name = fmt.Sprintf("OperationID(%d)", int(c.ID))
	}
	defer func() {
		metrics.DispatchTotal.WithLabelValues(name, status(err)).Inc()
		if err != nil {
			e.logger.Debug("Dispatch failed", zap.String("operation", name), zap.Error(err))
			return
		}
		metrics.DispatchDuration.WithLabelValues(c.Shape.String()).
			Observe(float64(time.Since(start).Microseconds()) / 1000)
	}()

	slot := e.Slot(c.ID)
	if slot.state != SlotReady {
		return e.unresolved(c.ID, slot)
	}
	if slot.shape != c.Shape || slot.domain != c.Domain.Kind {
		return fmt.Errorf("%w: %s is %s %v, called as %s %v",
			ErrShapeMismatch, name, slot.domain, slot.shape, c.Domain.Kind, c.Shape)
	}
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %w: %w", ErrBufferAllocation, errInvalidView, err)
	}

	threads := c.Domain.Threads()
	if threads == 0 {
		return nil
	}
	group := threads
	if threads > e.maxGroup {
		if e.policy == PolicySingleGroup {
			return fmt.Errorf("%w: %d threads, device limit %d", ErrDispatchTooLarge, threads, e.maxGroup)
		}
		group = e.maxGroup
	}

	views := append(append(make([]View, 0, len(c.Inputs)+1), c.Inputs...), c.Out)
	buffers := make([]gpu.Buffer, 0, len(views))
	defer func() {
		for _, b := range buffers {
			b.Release()
		}
	}()
	for i, v := range views {
		b, err := e.device.NewBuffer(v.Data)
		if err != nil {
			return fmt.Errorf("%w: view %d: %w", ErrBufferAllocation, i, err)
		}
		buffers = append(buffers, b)
		metrics.DispatchBufferBytes.Add(float64(4 * len(v.Data)))
	}

	if err := e.submit(slot.pipeline, c, views, buffers, threads, group); err != nil {
		return err
	}

	out := buffers[len(buffers)-1].Contents()
	c.Domain.each(c.Out, func(i int) { c.Out.Data[i] = out[i] })
	if c.Shape == ShapeInOut {
		inout := buffers[1].Contents()
		c.Domain.each(c.Inputs[1], func(i int) { c.Inputs[1].Data[i] = inout[i] })
	}
	metrics.DispatchThreads.Set(float64(threads))
	return nil
}

// submit encodes the dispatch into a new command buffer and blocks until
// the device has run it.
func (e *Engine) submit(p gpu.Pipeline, c Call, views []View, buffers []gpu.Buffer, threads, group int) error {
	cb, err := e.queue.CommandBuffer()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSubmission, err)
	}
	enc, err := cb.ComputeEncoder()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSubmission, err)
	}

	enc.SetPipeline(p)
	params := c.Domain.Params()
	for _, b := range c.Shape.Bindings(c.Domain) {
		switch b.Kind {
		case BindDomain:
			enc.SetInt(params[b.Arg], b.Index)
		case BindBuffer:
			enc.SetBuffer(buffers[b.Arg], b.Index)
		case BindOffset:
			enc.SetInt(int32(views[b.Arg].Offset), b.Index)
		case BindStride:
			enc.SetInt(int32(views[b.Arg].Stride), b.Index)
		case BindScalar:
			enc.SetFloat(c.Scalars[b.Arg], b.Index)
		}
	}
	enc.Dispatch(threads, group)
	enc.EndEncoding()

	if err := cb.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubmission, err)
	}
	if err := cb.WaitUntilCompleted(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubmission, err)
	}
	return nil
}

// validate checks the call's arity against its shape and that every view
// covers the elements the domain reaches.
func (c Call) validate() error {
	if len(c.Inputs) != c.Shape.Inputs() {
		return fmt.Errorf("%v takes %d input views, got %d", c.Shape, c.Shape.Inputs(), len(c.Inputs))
	}
	if len(c.Scalars) != c.Shape.Scalars() {
		return fmt.Errorf("%v takes %d scalars, got %d", c.Shape, c.Shape.Scalars(), len(c.Scalars))
	}
	if err := c.Domain.size(); err != nil {
		return err
	}
	for i, v := range c.Inputs {
		writable := c.Shape == ShapeInOut && i == 1
		if err := checkView(c.Domain, v, writable); err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
	}
	if err := checkView(c.Domain, c.Out, true); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	return nil
}

func checkView(d Domain, v View, writable bool) error {
	if len(v.Data) > math.MaxInt32 || v.Offset > math.MaxInt32 || v.Stride > math.MaxInt32 || v.Stride < math.MinInt32 {
		return errors.New("view does not fit 32-bit indexing")
	}
	return d.check(v, writable)
}

func status(err error) string {
	switch {
	case err == nil:
		return metrics.StatusOK
	case errors.Is(err, ErrUnresolvedOperation), errors.Is(err, ErrShapeMismatch):
		return metrics.StatusUnresolved
	case errors.Is(err, ErrDispatchTooLarge):
		return metrics.StatusTooLarge
	case errors.Is(err, errInvalidView):
		return metrics.StatusInvalid
	case errors.Is(err, ErrSubmission):
		return metrics.StatusSubmission
	case errors.Is(err, ErrBufferAllocation):
		return metrics.StatusAllocation
	}
	return metrics.StatusSubmission
}
