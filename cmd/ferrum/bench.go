package main

import (
	"fmt"
	"time"

	"github.com/fxnlabs/ferrum/internal/engine"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

func benchCommand(s *session) *cli.Command {
	return &cli.Command{
		Name:      "bench",
		Usage:     "Time repeated dispatches of one operation",
		ArgsUsage: "<operation>",
		Flags: append([]cli.Flag{
			&cli.IntFlag{Name: "n", Value: 1 << 20, Usage: "Vector length"},
			&cli.IntFlag{Name: "iterations", Usage: "Override bench.iterations"},
			&cli.StringFlag{Name: "metrics-addr", Usage: "Serve prometheus metrics on this address while running"},
		}, domainFlags...),
		Action: func(c *cli.Context) error {
			name := c.Args().First()
			if name == "" {
				return fmt.Errorf("missing operation name")
			}
			if c.IsSet("iterations") {
				s.cfg.Bench.Iterations = c.Int("iterations")
			}
			if c.IsSet("metrics-addr") {
				s.cfg.Metrics.ListenAddress = c.String("metrics-addr")
			}
			if err := s.cfg.Validate(); err != nil {
				return err
			}

			return s.withEngine(c.Context, func(e *engine.Engine) error {
				id, err := e.ID(name)
				if err != nil {
					return err
				}
				d, err := dispatcher(c, e, name, c.Int("n"))
				if err != nil {
					return err
				}
				shape := e.Slot(id).Shape()
				size := d.Domain().Threads()
				if d.Domain().Kind == engine.DomainVector {
					size = c.Int("n")
				}

				inputs := make([]engine.View, shape.Inputs())
				for i := range inputs {
					data := make([]float32, size)
					for j := range data {
						data[j] = float32(j%7+1) * 0.125
					}
					inputs[i] = denseView(d, data)
				}
				scalars := make([]float32, shape.Scalars())
				for i := range scalars {
					scalars[i] = 0.5
				}
				out := denseView(d, make([]float32, size))

				run := func() (float64, error) {
					start := time.Now()
					_, err := d.Run(name, inputs, scalars, out)
					return float64(time.Since(start).Microseconds()) / 1000, err
				}
				for i := 0; i < s.cfg.Bench.Warmup; i++ {
					if _, err := run(); err != nil {
						return err
					}
				}
				timings := make([]float64, 0, s.cfg.Bench.Iterations)
				for i := 0; i < s.cfg.Bench.Iterations; i++ {
					ms, err := run()
					if err != nil {
						return err
					}
					timings = append(timings, ms)
				}

				mean, std := stat.MeanStdDev(timings, nil)
				w := c.App.Writer
				fmt.Fprintf(w, "%s on %s, %d elements, %d iterations\n", name, e.Device().Info().Name, size, len(timings))
				fmt.Fprintf(w, "mean %.3f ms  std %.3f ms  min %.3f ms  max %.3f ms\n",
					mean, std, floats.Min(timings), floats.Max(timings))
				if mean > 0 {
					fmt.Fprintf(w, "throughput %.2f Melem/s\n", float64(size)/mean/1000)
				}

				if linger := s.cfg.Bench.Linger; linger > 0 && s.cfg.Metrics.ListenAddress != "" {
					s.log.Info("Keeping metrics endpoint up", zap.Duration("linger", linger))
					time.Sleep(linger)
				}
				return nil
			})
		},
	}
}
