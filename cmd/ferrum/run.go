package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fxnlabs/ferrum/internal/engine"
	"github.com/fxnlabs/ferrum/internal/gpu"
	"github.com/urfave/cli/v2"
	"gonum.org/v1/gonum/mat"
)

// domainFlags select the dispatcher for an operation.
var domainFlags = []cli.Flag{
	&cli.IntFlag{Name: "slow", Usage: "GE slow dimension (rows of the stored layout)"},
	&cli.IntFlag{Name: "fast", Usage: "GE fast dimension"},
	&cli.IntFlag{Name: "dim", Usage: "Uplo dimension"},
	&cli.BoolFlag{Name: "unit", Usage: "Uplo: skip the diagonal"},
	&cli.BoolFlag{Name: "lower", Usage: "Uplo: use the lower triangle"},
}

// dispatcher returns the dispatcher for name, with vectors of n elements.
func dispatcher(c *cli.Context, e *engine.Engine, name string, n int) (engine.Dispatcher, error) {
	kind, _, ok := engine.ShapeOf(name)
	if !ok {
		return engine.Dispatcher{}, fmt.Errorf("%w: unknown operation %q", engine.ErrUnresolvedOperation, name)
	}
	switch kind {
	case engine.DomainGE:
		return e.GE(c.Int("slow"), c.Int("fast")), nil
	case engine.DomainUplo:
		return e.Uplo(c.Int("dim"), c.Bool("unit"), c.Bool("lower")), nil
	}
	return e.Vector(n), nil
}

// denseView lays data out as a dense view for the dispatcher's domain.
func denseView(d engine.Dispatcher, data []float32) engine.View {
	v := engine.VectorView(data)
	switch dom := d.Domain(); dom.Kind {
	case engine.DomainGE:
		v.Stride = dom.Fast
	case engine.DomainUplo:
		v.Stride = dom.N
	}
	return v
}

func printResult(w io.Writer, label string, d engine.Dispatcher, data []float32) {
	dom := d.Domain()
	switch dom.Kind {
	case engine.DomainGE, engine.DomainUplo:
		rows, cols := dom.Slow, dom.Fast
		if dom.Kind == engine.DomainUplo {
			rows, cols = dom.N, dom.N
		}
		if rows == 0 || cols == 0 {
			fmt.Fprintf(w, "%s = []\n", label)
			return
		}
		m := mat.NewDense(rows, cols, gpu.StridedToFloat64(data, 0, cols, rows, cols))
		prefix := label + " = "
		fmt.Fprintf(w, "%s%v\n", prefix, mat.Formatted(m, mat.Prefix(strings.Repeat(" ", len(prefix))), mat.Squeeze()))
	default:
		fmt.Fprintf(w, "%s = %v\n", label, data)
	}
}

func runCommand(s *session) *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Execute one operation on inline inputs",
		ArgsUsage: "<operation>",
		Flags: append([]cli.Flag{
			&cli.Float64SliceFlag{Name: "x", Usage: "First input, comma separated", Required: true},
			&cli.Float64SliceFlag{Name: "y", Usage: "Second input, comma separated"},
			&cli.Float64SliceFlag{Name: "scalar", Aliases: []string{"s"}, Usage: "Scalar parameters in order"},
		}, domainFlags...),
		Action: func(c *cli.Context) error {
			name := c.Args().First()
			if name == "" {
				return fmt.Errorf("missing operation name")
			}
			x := gpu.Float64ToFloat32(c.Float64Slice("x"))
			y := gpu.Float64ToFloat32(c.Float64Slice("y"))
			scalars := gpu.Float64ToFloat32(c.Float64Slice("scalar"))

			return s.withEngine(c.Context, func(e *engine.Engine) error {
				d, err := dispatcher(c, e, name, len(x))
				if err != nil {
					return err
				}
				inputs := []engine.View{denseView(d, x)}
				if c.IsSet("y") {
					inputs = append(inputs, denseView(d, y))
				}
				out := make([]float32, len(x))

				res, err := d.Run(name, inputs, scalars, denseView(d, out))
				if err != nil {
					return err
				}
				printResult(c.App.Writer, "result", d, res)
				if _, shape, _ := engine.ShapeOf(name); shape == engine.ShapeInOut {
					printResult(c.App.Writer, "y", d, y)
				}
				return nil
			})
		},
	}
}
