package main

import (
	"fmt"

	"github.com/common-nighthawk/go-figure"
	"github.com/fxnlabs/ferrum/internal/engine"
	"github.com/urfave/cli/v2"
)

func infoCommand(s *session) *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "Show the selected device and the state of the pipeline table",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "no-banner", Usage: "Skip the banner"},
		},
		Action: func(c *cli.Context) error {
			w := c.App.Writer
			if !c.Bool("no-banner") {
				fmt.Fprintln(w, figure.NewFigure("ferrum", "", true).String())
			}
			return s.withEngine(c.Context, func(e *engine.Engine) error {
				info := e.Device().Info()
				fmt.Fprintf(w, "Device:          %s\n", info.Name)
				fmt.Fprintf(w, "Backend:         %s\n", info.Backend)
				fmt.Fprintf(w, "Compute:         %s\n", info.ComputeCapability)
				fmt.Fprintf(w, "Driver:          %s\n", info.DriverVersion)
				fmt.Fprintf(w, "Memory:          %.2f GB\n", float64(info.TotalMemory)/(1<<30))
				fmt.Fprintf(w, "Thread group:    %d\n", e.Device().MaxThreadsPerGroup())
				fmt.Fprintf(w, "Library:         %v\n", e.Source())
				fmt.Fprintf(w, "Dispatch policy: %s\n", e.Policy())

				counts := e.SlotCounts()
				fmt.Fprintf(w, "Pipelines:       %d ready, %d failed, %d not in library\n",
					counts[engine.SlotReady], counts[engine.SlotFailed], counts[engine.SlotUnattempted])
				if un := e.Unregistered(); len(un) > 0 {
					fmt.Fprintf(w, "Unregistered:    %v\n", un)
				}
				return nil
			})
		},
	}
}
