// Package kernels is the host implementation of the ferrum kernel module.
//
// Every entry point is an elementwise kernel over one of three domains. A
// kernel runs once per thread id and reads its arguments by binding index,
// the same way a compiled GPU kernel reads its argument table.
package kernels

import (
	"fmt"
	"sort"
	"strings"
)

// Domain is the storage layout an entry point iterates over.
type Domain int

const (
	DomainVector Domain = iota
	DomainGE
	DomainUplo
)

var domainPrefixes = [...]string{"vector_", "ge_", "uplo_"}

func (d Domain) String() string {
	switch d {
	case DomainVector:
		return "vector"
	case DomainGE:
		return "ge"
	case DomainUplo:
		return "uplo"
	}
	return "unknown"
}

// params returns the number of leading int parameters of the domain.
func (d Domain) params() int {
	switch d {
	case DomainGE:
		return 2
	case DomainUplo:
		return 3
	}
	return 0
}

// ParamKind is the type of one binding slot.
type ParamKind int

const (
	ParamInt ParamKind = iota
	ParamFloat
	ParamBuffer
)

func (k ParamKind) String() string {
	switch k {
	case ParamInt:
		return "int"
	case ParamFloat:
		return "float"
	case ParamBuffer:
		return "buffer"
	}
	return "unknown"
}

// Args gives a running kernel access to its bound arguments.
type Args interface {
	Int(index int) int
	Float(index int) float32
	Buffer(index int) []float32
}

type operand struct {
	buf, offset, stride int
}

func (o operand) addr(a Args, major, minor int) int {
	return a.Int(o.offset) + major*a.Int(o.stride) + minor
}

// Kernel is a compiled host entry point.
type Kernel struct {
	name   string
	domain Domain
	sig    Signature
	eval   evalFunc
	params []ParamKind

	inputs  []operand
	scalars []int
	out     operand
}

// Name returns the entry-point name.
func (k *Kernel) Name() string { return k.name }

// Domain returns the storage layout the kernel iterates over.
func (k *Kernel) Domain() Domain { return k.domain }

// Signature returns the positional signature of the kernel.
func (k *Kernel) Signature() Signature { return k.sig }

// Params returns the kind of every binding slot, in binding order.
func (k *Kernel) Params() []ParamKind {
	out := make([]ParamKind, len(k.params))
	copy(out, k.params)
	return out
}

// Run executes the kernel for one thread id. Threads whose id falls outside
// the domain (the tail of a rounded-up grid, or the opposite triangle of a
// triangular matrix) return without touching memory.
func (k *Kernel) Run(a Args, gid int) {
	major, minor, ok := k.locate(a, gid)
	if !ok {
		return
	}

	var x, y float32
	x = a.Buffer(k.inputs[0].buf)[k.inputs[0].addr(a, major, minor)]
	if len(k.inputs) > 1 {
		y = a.Buffer(k.inputs[1].buf)[k.inputs[1].addr(a, major, minor)]
	}
	var scalars [4]float32
	for i, idx := range k.scalars {
		scalars[i] = a.Float(idx)
	}

	r, y2 := k.eval(x, y, scalars[:len(k.scalars)])
	a.Buffer(k.out.buf)[k.out.addr(a, major, minor)] = r
	if k.sig == SigInOut {
		a.Buffer(k.inputs[1].buf)[k.inputs[1].addr(a, major, minor)] = y2
	}
}

// locate maps a thread id to (major, minor) element coordinates. Vectors use
// major as the element index; matrices use major for the slow dimension.
func (k *Kernel) locate(a Args, gid int) (major, minor int, ok bool) {
	switch k.domain {
	case DomainGE:
		slow, fast := a.Int(0), a.Int(1)
		if fast <= 0 || gid >= slow*fast {
			return 0, 0, false
		}
		return gid / fast, gid % fast, true
	case DomainUplo:
		n, unit, lower := a.Int(0), a.Int(1) != 0, a.Int(2) != 0
		if n <= 0 || gid >= n*n {
			return 0, 0, false
		}
		major, minor = gid/n, gid%n
		if unit && major == minor {
			return 0, 0, false
		}
		if lower && minor < major || !lower && minor > major {
			return 0, 0, false
		}
		return major, minor, true
	}
	return gid, 0, true
}

// Compile builds the host kernel for an entry-point name.
func Compile(name string) (*Kernel, error) {
	domain, base, err := splitName(name)
	if err != nil {
		return nil, err
	}
	o, ok := ops[base]
	if !ok || (domain != DomainVector && vectorOnly[base]) {
		return nil, fmt.Errorf("no kernel function named %q", name)
	}

	k := &Kernel{name: name, domain: domain, sig: o.sig, eval: o.eval}
	for i := 0; i < domain.params(); i++ {
		k.params = append(k.params, ParamInt)
	}
	addBuffer := func() operand {
		base := len(k.params)
		k.params = append(k.params, ParamBuffer, ParamInt, ParamInt)
		return operand{buf: base, offset: base + 1, stride: base + 2}
	}
	addScalars := func(n int) {
		for i := 0; i < n; i++ {
			k.scalars = append(k.scalars, len(k.params))
			k.params = append(k.params, ParamFloat)
		}
	}

	switch o.sig {
	case SigUnary:
		k.inputs = []operand{addBuffer()}
	case SigUnaryScalar:
		k.inputs = []operand{addBuffer()}
		addScalars(1)
	case SigScalarUnary:
		addScalars(1)
		k.inputs = []operand{addBuffer()}
	case SigBinary, SigInOut:
		k.inputs = []operand{addBuffer(), addBuffer()}
	case SigAffine:
		k.inputs = []operand{addBuffer()}
		addScalars(4)
	case SigBinaryAffine:
		k.inputs = []operand{addBuffer(), addBuffer()}
		addScalars(4)
	default:
		return nil, fmt.Errorf("kernel %q has unsupported signature %v", name, o.sig)
	}
	k.out = addBuffer()
	return k, nil
}

func splitName(name string) (Domain, string, error) {
	for i, prefix := range domainPrefixes {
		if strings.HasPrefix(name, prefix) {
			return Domain(i), strings.TrimPrefix(name, prefix), nil
		}
	}
	return 0, "", fmt.Errorf("no kernel function named %q", name)
}

// Names returns every entry point the host module implements, sorted.
func Names() []string {
	var names []string
	for base := range ops {
		for i, prefix := range domainPrefixes {
			if Domain(i) != DomainVector && vectorOnly[base] {
				continue
			}
			names = append(names, prefix+base)
		}
	}
	sort.Strings(names)
	return names
}

// SignatureOf returns the signature of the operation behind an entry-point
// name, without compiling it.
func SignatureOf(name string) (Signature, bool) {
	_, base, err := splitName(name)
	if err != nil {
		return 0, false
	}
	o, ok := ops[base]
	return o.sig, ok
}
