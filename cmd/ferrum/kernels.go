package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/fxnlabs/ferrum/internal/engine"
	"github.com/fxnlabs/ferrum/internal/registry"
	"github.com/urfave/cli/v2"
)

func kernelsCommand(s *session) *cli.Command {
	return &cli.Command{
		Name:  "kernels",
		Usage: "List the operations in the pipeline table",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "domain", Usage: "Only list vector, ge or uplo operations"},
			&cli.StringFlag{Name: "state", Usage: "Only list slots in this state (ready, failed, unattempted)"},
		},
		Action: func(c *cli.Context) error {
			prefix := ""
			if d := c.String("domain"); d != "" {
				prefix = d + "_"
			}
			state := c.String("state")

			return s.withEngine(c.Context, func(e *engine.Engine) error {
				tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tSHAPE\tSTATE\tERROR")
				reg := e.Registry()
				for i := 0; i < reg.Len(); i++ {
					id := registry.OperationID(i)
					name := reg.Name(id)
					if !strings.HasPrefix(name, prefix) {
						continue
					}
					slot := e.Slot(id)
					if state != "" && slot.State().String() != state {
						continue
					}
					shape := "-"
					if _, sh, ok := engine.ShapeOf(name); ok {
						shape = sh.String()
					}
					errText := ""
					if slot.Err() != nil {
						errText = slot.Err().Error()
					}
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i, name, shape, slot.State(), errText)
				}
				return tw.Flush()
			})
		},
	}
}
