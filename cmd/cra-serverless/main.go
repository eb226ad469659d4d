package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/devsky83/cra-serverless/cmd/cra-serverless/commands"
	"github.com/devsky83/cra-serverless/internal/di"
)

func main() {
	logger := di.ProvideLogger()
	ctx := logger.WithContext(context.Background())

	app := &cli.App{
		Name:  "cra-serverless",
		Usage: "Continuous-deployment pipeline for a static front-end with a serverless backend",
		Description: `Synthesizes and provisions a four-stage deployment pipeline:
source checkout, parallel builds, artifact-driven stack deployment, and a
post-deploy cache-invalidation release step.

The topology is validated at definition time - artifact flow, barrier
ordering, parameter bindings, and role grants all fail fast before any
resource is touched.`,
		Commands: []*cli.Command{
			commands.SynthCommand(&logger),
			commands.UpCommand(&logger),
			commands.ReleaseCommand(&logger),
			commands.SyncCommand(&logger),
			commands.StatusCommand(&logger),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
