package engine

import (
	"fmt"
	"strings"
)

// SlotKind is one positional parameter of a Shape.
type SlotKind int

const (
	// SlotInput is a read-only buffer created from a view.
	SlotInput SlotKind = iota
	// SlotInOut is a buffer created from a view whose contents are copied
	// back into the view after the dispatch.
	SlotInOut
	// SlotScalar is a float passed by value.
	SlotScalar
	// SlotOutput is the result buffer.
	SlotOutput
)

func (k SlotKind) String() string {
	switch k {
	case SlotInput:
		return "input"
	case SlotInOut:
		return "inout"
	case SlotScalar:
		return "scalar"
	case SlotOutput:
		return "output"
	}
	return "unknown"
}

// Shape is the positional signature shared by a family of operations.
type Shape int

const (
	ShapeUnary        Shape = iota // b->B
	ShapeUnaryScalar               // bf->B
	ShapeScalarUnary               // fb->B
	ShapeBinary                    // bb->B
	ShapeInOut                     // b<->B
	ShapeAffine                    // bffff->B
	ShapeBinaryAffine              // bbffff->B
)

type shapeDef struct {
	code  string
	slots []SlotKind
}

var shapes = [...]shapeDef{
	ShapeUnary:        {"b->B", []SlotKind{SlotInput, SlotOutput}},
	ShapeUnaryScalar:  {"bf->B", []SlotKind{SlotInput, SlotScalar, SlotOutput}},
	ShapeScalarUnary:  {"fb->B", []SlotKind{SlotScalar, SlotInput, SlotOutput}},
	ShapeBinary:       {"bb->B", []SlotKind{SlotInput, SlotInput, SlotOutput}},
	ShapeInOut:        {"b<->B", []SlotKind{SlotInput, SlotInOut, SlotOutput}},
	ShapeAffine:       {"bffff->B", []SlotKind{SlotInput, SlotScalar, SlotScalar, SlotScalar, SlotScalar, SlotOutput}},
	ShapeBinaryAffine: {"bbffff->B", []SlotKind{SlotInput, SlotInput, SlotScalar, SlotScalar, SlotScalar, SlotScalar, SlotOutput}},
}

func (s Shape) valid() bool { return s >= 0 && int(s) < len(shapes) }

func (s Shape) String() string {
	if !s.valid() {
		return fmt.Sprintf("Shape(%d)", int(s))
	}
	return shapes[s].code
}

// Slots returns the positional parameters of the shape.
func (s Shape) Slots() []SlotKind {
	return append([]SlotKind(nil), shapes[s].slots...)
}

// Inputs returns the number of input views (including in/out views).
func (s Shape) Inputs() int { return s.count(SlotInput) + s.count(SlotInOut) }

// Scalars returns the number of float parameters.
func (s Shape) Scalars() int { return s.count(SlotScalar) }

func (s Shape) count(kind SlotKind) int {
	n := 0
	for _, k := range shapes[s].slots {
		if k == kind {
			n++
		}
	}
	return n
}

// BindingKind says what is bound at one argument index.
type BindingKind int

const (
	BindDomain BindingKind = iota
	BindBuffer
	BindOffset
	BindStride
	BindScalar
)

// Binding is one entry of the argument table. Arg indexes the domain
// parameters for BindDomain, the scalars for BindScalar, and the views
// (inputs in order, then the output) for the buffer kinds.
type Binding struct {
	Index int
	Kind  BindingKind
	Arg   int
	Slot  SlotKind
}

// Bindings renders the argument table of the shape in the given domain:
// the domain parameters first, then every slot in order, each buffer
// followed by its view's offset and stride.
func (s Shape) Bindings(d Domain) []Binding {
	var out []Binding
	add := func(kind BindingKind, arg int, slot SlotKind) {
		out = append(out, Binding{Index: len(out), Kind: kind, Arg: arg, Slot: slot})
	}
	for i := range d.Params() {
		add(BindDomain, i, SlotScalar)
	}
	views, scalars := 0, 0
	for _, slot := range shapes[s].slots {
		if slot == SlotScalar {
			add(BindScalar, scalars, slot)
			scalars++
			continue
		}
		add(BindBuffer, views, slot)
		add(BindOffset, views, slot)
		add(BindStride, views, slot)
		views++
	}
	return out
}

// families assigns every operation, by name without its domain prefix, to
// its shape. Operations not listed here cannot be dispatched.
var families = map[Shape][]string{
	ShapeUnary: {
		"abs", "acos", "acosh", "asin", "asinh", "atan", "atanh", "cbrt",
		"cdf_norm", "cdf_norm_inv", "ceil", "copy", "cos", "cosh", "erf",
		"erf_inv", "erfc", "erfc_inv", "exp", "exp10", "exp2", "expm1",
		"floor", "frac", "gamma", "inv", "inv_cbrt", "inv_sqrt", "lgamma",
		"log", "log10", "log1p", "log2", "pow2o3", "pow3o2", "ramp", "round",
		"sigmoid", "sin", "sinh", "sqr", "sqrt", "tan", "tanh", "trunc",
	},
	ShapeUnaryScalar:  {"powx"},
	ShapeScalarUnary:  {"elu", "relu", "set"},
	ShapeBinary:       {"add", "atan2", "copysign", "div", "equals", "fmax", "fmin", "fmod", "frem", "hypot", "mul", "pow", "sub"},
	ShapeInOut:        {"modf", "sincos", "swap"},
	ShapeAffine:       {"scale_shift"},
	ShapeBinaryAffine: {"linear_frac"},
}

var catalog = func() map[string]Shape {
	m := make(map[string]Shape)
	for shape, names := range families {
		for _, name := range names {
			m[name] = shape
		}
	}
	return m
}()

// ShapeOf returns the domain and shape of an entry-point name such as
// "ge_powx".
func ShapeOf(name string) (DomainKind, Shape, bool) {
	for kind := DomainVector; kind <= DomainUplo; kind++ {
		if base, ok := strings.CutPrefix(name, kind.prefix()); ok {
			shape, ok := catalog[base]
			return kind, shape, ok
		}
	}
	return 0, 0, false
}
