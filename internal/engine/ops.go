package engine

import (
	"fmt"

	"github.com/fxnlabs/ferrum/internal/registry"
)

// Dispatcher runs operations of one domain. Every method returns out.Data
// once the results are in place.
type Dispatcher struct {
	e      *Engine
	domain Domain
}

// Vector returns a dispatcher over strided vectors of n elements.
func (e *Engine) Vector(n int) Dispatcher {
	return Dispatcher{e: e, domain: VectorDomain(n)}
}

// GE returns a dispatcher over general slow x fast matrices.
func (e *Engine) GE(slow, fast int) Dispatcher {
	return Dispatcher{e: e, domain: GEDomain(slow, fast)}
}

// Uplo returns a dispatcher over one triangle of n x n matrices.
func (e *Engine) Uplo(n int, unit, lower bool) Dispatcher {
	return Dispatcher{e: e, domain: UploDomain(n, unit, lower)}
}

// Domain returns the domain the dispatcher runs over.
func (d Dispatcher) Domain() Domain { return d.domain }

func (d Dispatcher) call(id registry.OperationID, shape Shape, inputs []View, scalars []float32, out View) ([]float32, error) {
	err := d.e.Execute(Call{
		ID:      id,
		Shape:   shape,
		Domain:  d.domain,
		Inputs:  inputs,
		Scalars: scalars,
		Out:     out,
	})
	if err != nil {
		return nil, err
	}
	return out.Data, nil
}

// Unary runs a b->B operation: out = f(x).
func (d Dispatcher) Unary(id registry.OperationID, x, out View) ([]float32, error) {
	return d.call(id, ShapeUnary, []View{x}, nil, out)
}

// UnaryScalar runs a bf->B operation: out = f(x, s).
func (d Dispatcher) UnaryScalar(id registry.OperationID, x View, s float32, out View) ([]float32, error) {
	return d.call(id, ShapeUnaryScalar, []View{x}, []float32{s}, out)
}

// ScalarUnary runs a fb->B operation: out = f(s, x).
func (d Dispatcher) ScalarUnary(id registry.OperationID, s float32, x, out View) ([]float32, error) {
	return d.call(id, ShapeScalarUnary, []View{x}, []float32{s}, out)
}

// Binary runs a bb->B operation: out = f(x, y).
func (d Dispatcher) Binary(id registry.OperationID, x, y, out View) ([]float32, error) {
	return d.call(id, ShapeBinary, []View{x, y}, nil, out)
}

// BinaryInPlace runs a b<->B operation. The second result is written back
// into y.
func (d Dispatcher) BinaryInPlace(id registry.OperationID, x, y, out View) ([]float32, error) {
	return d.call(id, ShapeInOut, []View{x, y}, nil, out)
}

// Affine runs a bffff->B operation.
func (d Dispatcher) Affine(id registry.OperationID, x View, s [4]float32, out View) ([]float32, error) {
	return d.call(id, ShapeAffine, []View{x}, s[:], out)
}

// BinaryAffine runs a bbffff->B operation.
func (d Dispatcher) BinaryAffine(id registry.OperationID, x, y View, s [4]float32, out View) ([]float32, error) {
	return d.call(id, ShapeBinaryAffine, []View{x, y}, s[:], out)
}

// Run dispatches an operation by name, taking its shape from the pipeline
// table.
func (d Dispatcher) Run(name string, inputs []View, scalars []float32, out View) ([]float32, error) {
	id, err := d.e.ID(name)
	if err != nil {
		return nil, err
	}
	slot := d.e.Slot(id)
	if slot.domain != d.domain.Kind {
		return nil, fmt.Errorf("%w: %s is not a %v operation", ErrShapeMismatch, name, d.domain.Kind)
	}
	return d.call(id, slot.shape, inputs, scalars, out)
}
