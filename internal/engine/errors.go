package engine

import (
	"errors"
	"fmt"

	"github.com/fxnlabs/ferrum/internal/gpu"
)

// Construction errors. Any of these means no engine was built.
var (
	ErrNoDevice    = gpu.ErrNoDevice
	ErrLibraryLoad = errors.New("failed to load kernel library")
)

// Per-call errors. The engine stays usable after any of these.
var (
	ErrUnresolvedOperation = errors.New("unresolved operation")
	ErrShapeMismatch       = errors.New("operation called with the wrong shape")
	ErrBufferAllocation    = errors.New("buffer allocation error")
	ErrSubmission          = errors.New("submission failure")
	ErrDispatchTooLarge    = errors.New("dispatch exceeds the maximum thread group size")

	errInvalidView = errors.New("invalid view")
)

// SlotError records why a pipeline slot could not be filled.
type SlotError struct {
	Name string
	Err  error
}

func (e *SlotError) Error() string {
	return fmt.Sprintf("pipeline %s: %v", e.Name, e.Err)
}

func (e *SlotError) Unwrap() error { return e.Err }
