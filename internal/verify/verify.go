// Package verify checks a device engine against the host reference kernels.
package verify

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"

	"github.com/fxnlabs/ferrum/internal/engine"
	"go.uber.org/zap"
)

// Options configures a Verifier.
type Options struct {
	// N is the vector length. GE operations run on 4 x N/4 matrices and uplo
	// operations on 8 x 8 triangles.
	N int
	// Tolerance is the largest accepted error relative to max(1, |want|).
	Tolerance float64
	Seed      int64
	Logger    *zap.Logger
}

// Sample is one element of a result.
type Sample struct {
	Index int     `json:"index"`
	Value float32 `json:"value"`
}

// Result is the outcome of checking one operation.
type Result struct {
	Name       string   `json:"name"`
	MaxError   float64  `json:"maxError"`
	Mismatches int      `json:"mismatches"`
	Digest     string   `json:"digest"`
	Samples    []Sample `json:"samples"`
	Err        error    `json:"-"`
}

// OK reports whether the device agreed with the reference.
func (r Result) OK() bool { return r.Err == nil && r.Mismatches == 0 }

// Verifier runs operations on two engines with identical inputs.
type Verifier struct {
	device    *engine.Engine
	reference *engine.Engine
	opts      Options
	log       *zap.Logger
}

func New(device, reference *engine.Engine, opts Options) *Verifier {
	if opts.N <= 0 {
		opts.N = 1024
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = 1e-4
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Verifier{device: device, reference: reference, opts: opts, log: opts.Logger.Named("verify")}
}

// All checks every name and returns the results in order.
func (v *Verifier) All(names []string) []Result {
	results := make([]Result, 0, len(names))
	for _, name := range names {
		r := v.Operation(name)
		if !r.OK() {
			v.log.Warn("Operation disagrees with the reference",
				zap.String("operation", name),
				zap.Int("mismatches", r.Mismatches),
				zap.Float64("maxError", r.MaxError),
				zap.Error(r.Err))
		}
		results = append(results, r)
	}
	return results
}

// Operation runs name on both engines and compares the outputs, and for
// in/out operations the second operand as well.
func (v *Verifier) Operation(name string) Result {
	res := Result{Name: name}
	kind, shape, ok := engine.ShapeOf(name)
	if !ok {
		res.Err = fmt.Errorf("%w: unknown operation %q", engine.ErrUnresolvedOperation, name)
		return res
	}

	rows, cols, stride := v.opts.N, 1, 1
	switch kind {
	case engine.DomainGE:
		rows, cols = 4, max(v.opts.N/4, 1)
		stride = cols
	case engine.DomainUplo:
		rows, cols, stride = 8, 8, 8
	}
	size := rows * cols

	rng := rand.New(rand.NewSource(v.opts.Seed))
	inputs := make([][]float32, shape.Inputs())
	for i := range inputs {
		inputs[i] = make([]float32, size)
		for j := range inputs[i] {
			// keep inputs inside the domain of every operation
			inputs[i][j] = float32(0.05 + 0.9*rng.Float64())
		}
	}
	scalars := make([]float32, shape.Scalars())
	for i := range scalars {
		scalars[i] = float32(0.25 + 0.5*rng.Float64())
	}

	run := func(e *engine.Engine) ([]float32, []float32, error) {
		views := make([]engine.View, len(inputs))
		for i, in := range inputs {
			views[i] = engine.View{Data: append([]float32(nil), in...), Stride: stride}
		}
		out := engine.View{Data: make([]float32, size), Stride: stride}
		var d engine.Dispatcher
		switch kind {
		case engine.DomainGE:
			d = e.GE(rows, cols)
		case engine.DomainUplo:
			d = e.Uplo(rows, false, true)
		default:
			d = e.Vector(size)
		}
		if _, err := d.Run(name, views, scalars, out); err != nil {
			return nil, nil, err
		}
		var second []float32
		if shape == engine.ShapeInOut {
			second = views[1].Data
		}
		return out.Data, second, nil
	}

	want, wantY, err := run(v.reference)
	if err != nil {
		res.Err = fmt.Errorf("reference: %w", err)
		return res
	}
	got, gotY, err := run(v.device)
	if err != nil {
		res.Err = err
		return res
	}

	res.MaxError, res.Mismatches = Compare(got, want, v.opts.Tolerance)
	if shape == engine.ShapeInOut {
		e, m := Compare(gotY, wantY, v.opts.Tolerance)
		res.MaxError, res.Mismatches = math.Max(res.MaxError, e), res.Mismatches+m
	}
	res.Digest = Digest(got)
	res.Samples = Samples(got, 5)
	return res
}

// Compare returns the largest relative error between got and want and the
// number of elements above tolerance. NaNs match NaNs and infinities match
// infinities of the same sign.
func Compare(got, want []float32, tolerance float64) (maxErr float64, mismatches int) {
	if len(got) != len(want) {
		return math.Inf(1), max(len(got), len(want))
	}
	for i := range got {
		a, b := float64(got[i]), float64(want[i])
		var diff float64
		switch {
		case math.IsNaN(a) || math.IsNaN(b):
			if math.IsNaN(a) != math.IsNaN(b) {
				diff = math.Inf(1)
			}
		case math.IsInf(a, 0) || math.IsInf(b, 0):
			if a != b {
				diff = math.Inf(1)
			}
		default:
			diff = math.Abs(a-b) / math.Max(1, math.Abs(b))
		}
		if diff > tolerance {
			mismatches++
		}
		maxErr = math.Max(maxErr, diff)
	}
	return maxErr, mismatches
}

// Digest returns a sha256 digest of the result bits.
func Digest(data []float32) string {
	buf := make([]byte, 4*len(data))
	for i, f := range data {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return fmt.Sprintf("0x%x", sha256.Sum256(buf))
}

// Samples returns up to count elements at fixed positions: first, middle,
// last, quarter and three-quarter.
func Samples(data []float32, count int) []Sample {
	samples := make([]Sample, 0, count)
	n := len(data)
	if n == 0 {
		return samples
	}
	positions := []int{0, n / 2, n - 1, n / 4, 3 * n / 4}
	for i := 0; i < count && i < len(positions); i++ {
		samples = append(samples, Sample{Index: positions[i], Value: data[positions[i]]})
	}
	return samples
}
