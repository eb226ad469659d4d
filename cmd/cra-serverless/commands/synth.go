package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/devsky83/cra-serverless/internal/deployment"
	"github.com/devsky83/cra-serverless/internal/di"
)

func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to the pipeline configuration file",
		Value:   "pipeline.yaml",
		EnvVars: []string{"PIPELINE_CONFIG"},
	}
}

// SynthCommand returns the synth command for emitting the validated
// pipeline manifest.
func SynthCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "synth",
		Usage: "Synthesize and emit the pipeline definition without provisioning anything",
		Description: `Constructs the full pipeline topology from configuration and writes it
as YAML. Every configuration error - artifact cycles, duplicate producers,
unresolved parameter bindings, duplicate config publishes, over-broad role
grants - surfaces here, identifying the offending artifact, action, and
stage.

Examples:
  # Print the manifest
  cra-serverless synth --config pipeline.yaml

  # Write it to a file for review
  cra-serverless synth --config pipeline.yaml --output manifest.yaml`,
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "File to write the manifest to (defaults to stdout)",
			},
		},
		Action: func(c *cli.Context) error {
			return synthAction(c)
		},
	}
}

func synthAction(c *cli.Context) error {
	container, err := di.New(c.Context, c.String("config"))
	if err != nil {
		return err
	}

	var d *deployment.Deployment
	if err := container.Invoke(func(dep *deployment.Deployment) { d = dep }); err != nil {
		return fmt.Errorf("synthesis failed: %w", err)
	}

	buf, err := yaml.Marshal(d.Manifest())
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if output := c.String("output"); output != "" {
		return os.WriteFile(output, buf, 0o644)
	}
	_, err = os.Stdout.Write(buf)
	return err
}
