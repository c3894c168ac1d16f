package gpu

import (
	"errors"
	"fmt"

	"github.com/fxnlabs/ferrum/internal/kernels"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type hostQueue struct {
	device *HostDevice
}

func (q *hostQueue) CommandBuffer() (CommandBuffer, error) {
	return &hostCommandBuffer{device: q.device}, nil
}

func (q *hostQueue) Release() {}

type hostDispatch struct {
	pipeline  *hostPipeline
	bindings  map[int]any
	threads   int
	groupSize int
}

type hostCommandBuffer struct {
	device     *HostDevice
	dispatches []hostDispatch
	encodeErr  error
	committed  bool
	done       chan struct{}
	err        error
}

func (cb *hostCommandBuffer) ComputeEncoder() (ComputeEncoder, error) {
	if cb.committed {
		return nil, errors.New("command buffer already committed")
	}
	return &hostEncoder{cb: cb, bindings: make(map[int]any)}, nil
}

func (cb *hostCommandBuffer) Commit() error {
	if cb.committed {
		return errors.New("command buffer already committed")
	}
	cb.committed = true
	if cb.encodeErr != nil {
		return cb.encodeErr
	}
	cb.device.submitted.Add(1)
	cb.done = make(chan struct{})
	go func() {
		defer close(cb.done)
		for _, d := range cb.dispatches {
			if err := cb.device.run(d); err != nil {
				cb.err = err
				return
			}
		}
	}()
	return nil
}

func (cb *hostCommandBuffer) WaitUntilCompleted() error {
	if cb.done == nil {
		return errors.New("command buffer was not committed")
	}
	<-cb.done
	return cb.err
}

type hostEncoder struct {
	cb       *hostCommandBuffer
	pipeline *hostPipeline
	bindings map[int]any
	ended    bool
}

func (e *hostEncoder) fail(err error) {
	if e.cb.encodeErr == nil {
		e.cb.encodeErr = err
	}
}

func (e *hostEncoder) SetPipeline(p Pipeline) {
	hp, ok := p.(*hostPipeline)
	if !ok {
		e.fail(fmt.Errorf("pipeline %T does not belong to the host device", p))
		return
	}
	e.pipeline = hp
}

func (e *hostEncoder) SetBuffer(b Buffer, index int) {
	hb, ok := b.(*hostBuffer)
	if !ok {
		e.fail(fmt.Errorf("buffer %T does not belong to the host device", b))
		return
	}
	e.bindings[index] = hb
}

func (e *hostEncoder) SetInt(v int32, index int) { e.bindings[index] = int(v) }

func (e *hostEncoder) SetFloat(v float32, index int) { e.bindings[index] = v }

func (e *hostEncoder) Dispatch(threads, groupSize int) {
	if e.ended {
		e.fail(errors.New("dispatch after EndEncoding"))
		return
	}
	if e.pipeline == nil {
		e.fail(errors.New("dispatch without a pipeline"))
		return
	}
	if groupSize <= 0 || groupSize > e.cb.device.opts.MaxThreadsPerGroup {
		e.fail(fmt.Errorf("thread group size %d outside [1, %d]", groupSize, e.cb.device.opts.MaxThreadsPerGroup))
		return
	}
	bindings := make(map[int]any, len(e.bindings))
	for k, v := range e.bindings {
		bindings[k] = v
	}
	e.cb.dispatches = append(e.cb.dispatches, hostDispatch{
		pipeline:  e.pipeline,
		bindings:  bindings,
		threads:   threads,
		groupSize: groupSize,
	})
}

func (e *hostEncoder) EndEncoding() {
	e.ended = true
}

// hostArgs adapts a binding table to kernels.Args.
type hostArgs map[int]any

func (a hostArgs) Int(i int) int          { return a[i].(int) }
func (a hostArgs) Float(i int) float32    { return a[i].(float32) }
func (a hostArgs) Buffer(i int) []float32 { return a[i].(*hostBuffer).data }

// validate checks the bound arguments against the kernel's parameter list,
// the way a GPU driver validates an argument table before launch.
func validate(k *kernels.Kernel, bindings map[int]any) error {
	params := k.Params()
	if len(bindings) != len(params) {
		return fmt.Errorf("kernel %s takes %d arguments, %d bound", k.Name(), len(params), len(bindings))
	}
	for i, kind := range params {
		v, ok := bindings[i]
		if !ok {
			return fmt.Errorf("kernel %s: argument %d not bound", k.Name(), i)
		}
		var match bool
		switch kind {
		case kernels.ParamInt:
			_, match = v.(int)
		case kernels.ParamFloat:
			_, match = v.(float32)
		case kernels.ParamBuffer:
			var b *hostBuffer
			b, match = v.(*hostBuffer)
			if match && b.released.Load() {
				return fmt.Errorf("kernel %s: argument %d is a released buffer", k.Name(), i)
			}
		}
		if !match {
			return fmt.Errorf("kernel %s: argument %d is %T, want %v", k.Name(), i, v, kind)
		}
	}
	return nil
}

// run executes one dispatch, one goroutine per thread group.
func (d *HostDevice) run(dispatch hostDispatch) error {
	k := dispatch.pipeline.kernel
	if err := validate(k, dispatch.bindings); err != nil {
		return err
	}
	args := hostArgs(dispatch.bindings)

	var g errgroup.Group
	for start := 0; start < dispatch.threads; start += dispatch.groupSize {
		end := min(start+dispatch.groupSize, dispatch.threads)
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("kernel %s faulted in threads [%d, %d): %v", k.Name(), start, end, r)
				}
			}()
			for gid := start; gid < end; gid++ {
				k.Run(args, gid)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		d.logger.Debug("dispatch failed", zap.String("kernel", k.Name()), zap.Error(err))
		return err
	}
	return nil
}
