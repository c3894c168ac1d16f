package kernels

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Signature describes the positional operands an entry point takes after its
// domain parameters.
type Signature int

const (
	SigUnary        Signature = iota // in, out
	SigUnaryScalar                   // in, scalar, out
	SigScalarUnary                   // scalar, in, out
	SigBinary                        // in, in, out
	SigInOut                         // in, in/out, out
	SigAffine                        // in, 4 scalars, out
	SigBinaryAffine                  // in, in, 4 scalars, out
)

var signatureNames = [...]string{"bB", "bfB", "fbB", "bbB", "bBB", "bffffB", "bbffffB"}

func (s Signature) String() string {
	if s < 0 || int(s) >= len(signatureNames) {
		return "unknown"
	}
	return signatureNames[s]
}

// evalFunc computes one element. x and y are the first and second operands
// (y is zero for single-operand signatures), s holds the float scalars in
// binding order. It returns the output value and, for SigInOut, the value
// written back to the second operand.
type evalFunc func(x, y float32, s []float32) (r, y2 float32)

type op struct {
	sig  Signature
	eval evalFunc
}

func unary(f func(float64) float64) op {
	return op{sig: SigUnary, eval: func(x, _ float32, _ []float32) (float32, float32) {
		return float32(f(float64(x))), 0
	}}
}

func unaryScalar(f func(x, s float64) float64) op {
	return op{sig: SigUnaryScalar, eval: func(x, _ float32, s []float32) (float32, float32) {
		return float32(f(float64(x), float64(s[0]))), 0
	}}
}

func scalarUnary(f func(s, x float64) float64) op {
	return op{sig: SigScalarUnary, eval: func(x, _ float32, s []float32) (float32, float32) {
		return float32(f(float64(s[0]), float64(x))), 0
	}}
}

func binary(f func(x, y float64) float64) op {
	return op{sig: SigBinary, eval: func(x, y float32, _ []float32) (float32, float32) {
		return float32(f(float64(x), float64(y))), 0
	}}
}

func inOut(f func(x, y float64) (r, y2 float64)) op {
	return op{sig: SigInOut, eval: func(x, y float32, _ []float32) (float32, float32) {
		r, y2 := f(float64(x), float64(y))
		return float32(r), float32(y2)
	}}
}

var unitNormal = distuv.UnitNormal

// ops holds the math for every operation, keyed by the name without its
// domain prefix. Domain-specific availability is in vectorOnly.
var ops = map[string]op{
	"abs":          unary(math.Abs),
	"acos":         unary(math.Acos),
	"acosh":        unary(math.Acosh),
	"asin":         unary(math.Asin),
	"asinh":        unary(math.Asinh),
	"atan":         unary(math.Atan),
	"atanh":        unary(math.Atanh),
	"cbrt":         unary(math.Cbrt),
	"cdf_norm":     unary(unitNormal.CDF),
	"cdf_norm_inv": unary(normQuantile),
	"ceil":         unary(math.Ceil),
	"copy":         unary(func(x float64) float64 { return x }),
	"cos":          unary(math.Cos),
	"cosh":         unary(math.Cosh),
	"erf":          unary(math.Erf),
	"erf_inv":      unary(math.Erfinv),
	"erfc":         unary(math.Erfc),
	"erfc_inv":     unary(math.Erfcinv),
	"exp":          unary(math.Exp),
	"exp10":        unary(func(x float64) float64 { return math.Pow(10, x) }),
	"exp2":         unary(math.Exp2),
	"expm1":        unary(math.Expm1),
	"floor":        unary(math.Floor),
	"frac":         unary(func(x float64) float64 { return x - math.Trunc(x) }),
	"gamma":        unary(math.Gamma),
	"inv":          unary(func(x float64) float64 { return 1 / x }),
	"inv_cbrt":     unary(func(x float64) float64 { return 1 / math.Cbrt(x) }),
	"inv_sqrt":     unary(func(x float64) float64 { return 1 / math.Sqrt(x) }),
	"lgamma":       unary(lgamma),
	"log":          unary(math.Log),
	"log10":        unary(math.Log10),
	"log1p":        unary(math.Log1p),
	"log2":         unary(math.Log2),
	"pow2o3":       unary(func(x float64) float64 { c := math.Cbrt(x); return c * c }),
	"pow3o2":       unary(func(x float64) float64 { return math.Pow(math.Sqrt(x), 3) }),
	"ramp":         unary(func(x float64) float64 { return math.Max(0, x) }),
	"round":        unary(math.Round),
	"sigmoid":      unary(func(x float64) float64 { return 1 / (1 + math.Exp(-x)) }),
	"sin":          unary(math.Sin),
	"sinh":         unary(math.Sinh),
	"sqr":          unary(func(x float64) float64 { return x * x }),
	"sqrt":         unary(math.Sqrt),
	"tan":          unary(math.Tan),
	"tanh":         unary(math.Tanh),
	"trunc":        unary(math.Trunc),

	"powx": unaryScalar(math.Pow),

	"elu": scalarUnary(func(alpha, x float64) float64 {
		if x > 0 {
			return x
		}
		return alpha * math.Expm1(x)
	}),
	"relu": scalarUnary(func(alpha, x float64) float64 {
		if x > 0 {
			return x
		}
		return alpha * x
	}),
	"set": scalarUnary(func(alpha, _ float64) float64 { return alpha }),

	"add":      binary(func(x, y float64) float64 { return x + y }),
	"atan2":    binary(math.Atan2),
	"copysign": binary(math.Copysign),
	"div":      binary(func(x, y float64) float64 { return x / y }),
	"equals":   binary(equals),
	"fmax":     binary(math.Max),
	"fmin":     binary(math.Min),
	"fmod":     binary(math.Mod),
	"frem":     binary(math.Remainder),
	"hypot":    binary(math.Hypot),
	"mul":      binary(func(x, y float64) float64 { return x * y }),
	"pow":      binary(math.Pow),
	"sub":      binary(func(x, y float64) float64 { return x - y }),

	// In/out operations leave their second result in the second operand.
	"modf": inOut(func(x, _ float64) (float64, float64) {
		whole, frac := math.Modf(x)
		return frac, whole
	}),
	"sincos": inOut(func(x, _ float64) (float64, float64) {
		sin, cos := math.Sincos(x)
		return cos, sin
	}),
	"swap": inOut(func(x, y float64) (float64, float64) { return y, x }),

	"scale_shift": {sig: SigAffine, eval: func(x, _ float32, s []float32) (float32, float32) {
		return (s[0]*x+s[1])*s[2] + s[3], 0
	}},
	"linear_frac": {sig: SigBinaryAffine, eval: func(x, y float32, s []float32) (float32, float32) {
		return (s[0]*x + s[1]) / (s[2]*y + s[3]), 0
	}},
}

// vectorOnly lists operations that only exist in the vector domain.
var vectorOnly = map[string]bool{
	"copy":   true,
	"equals": true,
	"set":    true,
	"swap":   true,
}

// normQuantile is NaN outside [0, 1], where distuv panics.
func normQuantile(p float64) float64 {
	if !(p >= 0 && p <= 1) {
		return math.NaN()
	}
	return unitNormal.Quantile(p)
}

func lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}

func equals(x, y float64) float64 {
	if x == y {
		return 1
	}
	return 0
}
