package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/fxnlabs/ferrum/internal/engine"
	"github.com/fxnlabs/ferrum/internal/gpu"
	"github.com/fxnlabs/ferrum/internal/library"
	"github.com/fxnlabs/ferrum/internal/registry"
	"github.com/fxnlabs/ferrum/internal/verify"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func verifyCommand(s *session) *cli.Command {
	return &cli.Command{
		Name:      "verify",
		Usage:     "Compare the device against the host reference kernels",
		ArgsUsage: "[operation...]",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "n", Value: 1024, Usage: "Vector length"},
			&cli.Float64Flag{Name: "tolerance", Value: 1e-4, Usage: "Largest accepted relative error"},
			&cli.Int64Flag{Name: "seed", Value: 1, Usage: "Input generator seed"},
			&cli.BoolFlag{Name: "all", Usage: "Print passing operations too"},
		},
		Action: func(c *cli.Context) error {
			return s.withEngine(c.Context, func(e *engine.Engine) error {
				reference, err := engine.New(gpu.NewHostDevice(s.log, gpu.HostOptions{}), engine.Options{
					Library: library.Options{Logger: s.log},
					Logger:  s.log,
				})
				if err != nil {
					return fmt.Errorf("failed to create reference engine: %w", err)
				}
				defer reference.Close()

				names := c.Args().Slice()
				if len(names) == 0 {
					reg := e.Registry()
					for i := 0; i < reg.Len(); i++ {
						names = append(names, reg.Name(registry.OperationID(i)))
					}
				}
				v := verify.New(e, reference, verify.Options{
					N:         c.Int("n"),
					Tolerance: c.Float64("tolerance"),
					Seed:      c.Int64("seed"),
					Logger:    s.log,
				})
				results := v.All(names)

				tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tRESULT\tMAX ERROR\tDIGEST")
				var failed []string
				for _, r := range results {
					status := "ok"
					switch {
					case r.Err != nil:
						status = "error: " + r.Err.Error()
					case r.Mismatches > 0:
						status = fmt.Sprintf("%d mismatches", r.Mismatches)
					}
					if !r.OK() {
						failed = append(failed, r.Name)
					} else if !c.Bool("all") {
						continue
					}
					fmt.Fprintf(tw, "%s\t%s\t%.3g\t%.18s\n", r.Name, status, r.MaxError, r.Digest)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "%d of %d operations match %s\n",
					len(results)-len(failed), len(results), reference.Device().Info().Backend)
				if len(failed) > 0 {
					s.log.Warn("Verification failed", zap.Strings("operations", failed))
					return fmt.Errorf("%d operations disagree with the reference: %s", len(failed), strings.Join(failed, ", "))
				}
				return nil
			})
		},
	}
}
