package main

import (
	"fmt"
	"os"

	"github.com/fxnlabs/ferrum/fixtures"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func configCommand(s *session) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage the ferrum configuration",
		Subcommands: []*cli.Command{
			{
				Name:      "init",
				Usage:     "Write the default config.yaml",
				ArgsUsage: "[path]",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Usage: "Overwrite an existing file"},
				},
				Action: func(c *cli.Context) error {
					path := c.Args().First()
					if path == "" {
						path = "config.yaml"
					}
					if _, err := os.Stat(path); err == nil && !c.Bool("force") {
						return fmt.Errorf("%s already exists, use --force to overwrite", path)
					}
					if err := os.WriteFile(path, fixtures.ConfigTemplate, 0o644); err != nil {
						return err
					}
					s.log.Info("Wrote config", zap.String("path", path))
					fmt.Fprintf(c.App.Writer, "Wrote %s\n", path)
					return nil
				},
			},
		},
	}
}
