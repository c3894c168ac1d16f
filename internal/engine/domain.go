package engine

import (
	"fmt"
	"math"
)

// DomainKind is the storage layout an operation iterates over.
type DomainKind int

const (
	DomainVector DomainKind = iota
	DomainGE
	DomainUplo
)

func (k DomainKind) String() string {
	switch k {
	case DomainVector:
		return "vector"
	case DomainGE:
		return "ge"
	case DomainUplo:
		return "uplo"
	}
	return fmt.Sprintf("DomainKind(%d)", int(k))
}

func (k DomainKind) prefix() string { return k.String() + "_" }

// Domain is a storage layout together with its dimensions.
//
// Vector domains have N elements. GE domains are Slow x Fast matrices whose
// views use their stride as the leading dimension. Uplo domains are the
// triangle of an N x N matrix.
type Domain struct {
	Kind  DomainKind
	N     int
	Slow  int
	Fast  int
	Unit  bool
	Lower bool
}

// VectorDomain is a strided vector of n elements.
func VectorDomain(n int) Domain { return Domain{Kind: DomainVector, N: n} }

// GEDomain is a general slow x fast matrix.
func GEDomain(slow, fast int) Domain { return Domain{Kind: DomainGE, Slow: slow, Fast: fast} }

// UploDomain is the lower or upper triangle of an n x n matrix, excluding
// the diagonal when unit is set.
func UploDomain(n int, unit, lower bool) Domain {
	return Domain{Kind: DomainUplo, N: n, Unit: unit, Lower: lower}
}

// Params returns the leading int arguments of every kernel in the domain.
func (d Domain) Params() []int32 {
	switch d.Kind {
	case DomainGE:
		return []int32{int32(d.Slow), int32(d.Fast)}
	case DomainUplo:
		return []int32{int32(d.N), flag(d.Unit), flag(d.Lower)}
	}
	return nil
}

func flag(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// size checks that every dimension and the thread count fit a 32-bit grid.
func (d Domain) size() error {
	major, minor := d.rows()
	if major < 0 || minor < 0 || d.Slow < 0 || d.Fast < 0 {
		return fmt.Errorf("negative dimension in %v", d)
	}
	if major > math.MaxInt32 || minor > math.MaxInt32 || minor > 0 && major > math.MaxInt32/minor {
		return fmt.Errorf("%v has more than %d elements", d, math.MaxInt32)
	}
	return nil
}

// Threads returns the number of threads a dispatch over d covers.
func (d Domain) Threads() int {
	switch d.Kind {
	case DomainGE:
		return d.Slow * d.Fast
	case DomainUplo:
		return d.N * d.N
	}
	return d.N
}

func (d Domain) String() string {
	switch d.Kind {
	case DomainGE:
		return fmt.Sprintf("ge(%dx%d)", d.Slow, d.Fast)
	case DomainUplo:
		tri := "upper"
		if d.Lower {
			tri = "lower"
		}
		if d.Unit {
			tri += ",unit"
		}
		return fmt.Sprintf("uplo(%d,%s)", d.N, tri)
	}
	return fmt.Sprintf("vector(%d)", d.N)
}

// rows returns the major and minor extent of the domain.
func (d Domain) rows() (major, minor int) {
	switch d.Kind {
	case DomainGE:
		return d.Slow, d.Fast
	case DomainUplo:
		return d.N, d.N
	}
	return d.N, 1
}

// View is a strided window into a host float array. For matrix domains
// Stride is the leading dimension. Views never own their data and may alias.
type View struct {
	Data   []float32
	Offset int
	Stride int
}

// VectorView is a unit-stride view over all of data.
func VectorView(data []float32) View { return View{Data: data, Stride: 1} }

// check reports whether every element d touches through v lies inside
// v.Data. Writable views may not overlap themselves.
func (d Domain) check(v View, writable bool) error {
	major, minor := d.rows()
	if major < 0 || minor < 0 || d.Slow < 0 || d.Fast < 0 {
		return fmt.Errorf("negative dimension in %v", d)
	}
	if major == 0 || minor == 0 {
		return nil
	}
	if v.Offset < 0 {
		return fmt.Errorf("negative offset %d", v.Offset)
	}
	switch {
	case d.Kind == DomainVector && writable && v.Stride == 0 && major > 1:
		return fmt.Errorf("output view with zero stride")
	case d.Kind != DomainVector && major > 1 && v.Stride < minor:
		return fmt.Errorf("leading dimension %d smaller than %d", v.Stride, minor)
	}
	lo, hi := v.Offset, v.Offset+(major-1)*v.Stride+minor-1
	if lo > hi {
		lo, hi = hi, lo
	}
	if lo < 0 || hi >= len(v.Data) {
		return fmt.Errorf("view [%d, %d] outside array of length %d", lo, hi, len(v.Data))
	}
	return nil
}

// each calls fn with the array index of every element a kernel over d
// writes through v, in thread order.
func (d Domain) each(v View, fn func(i int)) {
	major, minor := d.rows()
	for i := 0; i < major; i++ {
		for j := 0; j < minor; j++ {
			if d.Kind == DomainUplo {
				if d.Unit && i == j || d.Lower && j < i || !d.Lower && j > i {
					continue
				}
			}
			fn(v.Offset + i*v.Stride + j)
		}
	}
}
