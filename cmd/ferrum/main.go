package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fxnlabs/ferrum/internal/app"
	"github.com/fxnlabs/ferrum/internal/config"
	"github.com/fxnlabs/ferrum/internal/engine"
	"github.com/fxnlabs/ferrum/internal/logger"
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// session holds what Before loads for every command.
type session struct {
	configPath string
	cfg        *config.Config
	log        *zap.Logger
}

// withEngine starts the application, runs fn and stops it again.
func (s *session) withEngine(ctx context.Context, fn func(e *engine.Engine) error) error {
	var e *engine.Engine
	fxApp := app.New(s.cfg, fx.Populate(&e))
	if err := fxApp.Start(ctx); err != nil {
		return err
	}
	runErr := fn(e)
	if err := fxApp.Stop(ctx); err != nil && runErr == nil {
		return err
	}
	return runErr
}

func newApp() *cli.App {
	s := &session{}
	return &cli.App{
		Name:  "ferrum",
		Usage: "Run ferrum numeric kernels on the GPU or the host",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to a config.yaml; defaults apply when empty",
				EnvVars:     []string{"FERRUM_CONFIG"},
				Destination: &s.configPath,
			},
			&cli.StringFlag{
				Name:  "backend",
				Usage: "Override device.backend (auto, host or metal)",
			},
			&cli.StringFlag{
				Name:  "verbosity",
				Usage: "Override logger.verbosity",
			},
		},
		Before: func(c *cli.Context) error {
			var err error
			if s.configPath == "" {
				s.cfg = config.Default()
			} else if s.cfg, err = config.LoadConfig(s.configPath); err != nil {
				return err
			}
			if c.IsSet("backend") {
				s.cfg.Device.Backend = c.String("backend")
			}
			if c.IsSet("verbosity") {
				s.cfg.Logger.Verbosity = c.String("verbosity")
			}
			if err := s.cfg.Validate(); err != nil {
				return err
			}
			zapLogger, err := logger.New(s.cfg.Logger.Verbosity)
			if err != nil {
				return err
			}
			s.log = zapLogger.Named("cli")
			return nil
		},
		Commands: []*cli.Command{
			infoCommand(s),
			kernelsCommand(s),
			runCommand(s),
			benchCommand(s),
			verifyCommand(s),
			configCommand(s),
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
