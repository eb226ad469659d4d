package commands

import (
	"encoding/json"
	"os"

	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/devsky83/cra-serverless/internal/config"
	"github.com/devsky83/cra-serverless/internal/di"
	"github.com/devsky83/cra-serverless/internal/provision"
)

// StatusCommand returns the status command for inspecting the stacks the
// Deploy stage manages.
func StatusCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the state of the application and domain stacks",
		Description: `Describes the two stacks the pipeline deploys - the application stack
(parameterized with the rendered-output location) and the domain stack -
and prints their status and outputs as JSON. The deployments themselves
run inside the pipeline; this command only observes.`,
		Flags: []cli.Flag{
			configFlag(),
		},
		Action: func(c *cli.Context) error {
			return statusAction(c)
		},
	}
}

func statusAction(c *cli.Context) error {
	container, err := di.New(c.Context, c.String("config"))
	if err != nil {
		return err
	}

	var (
		cfg      *config.Config
		cfClient *cloudformation.Client
	)
	if err := container.Invoke(func(loaded *config.Config, client *cloudformation.Client) {
		cfg, cfClient = loaded, client
	}); err != nil {
		return err
	}

	stacks := provision.NewStackService(cfClient)
	statuses := make([]provision.StackStatus, 0, 2)
	for _, name := range []string{cfg.Stacks.Application, cfg.Stacks.Domain} {
		status, err := stacks.Status(c.Context, name)
		if err != nil {
			return err
		}
		statuses = append(statuses, status)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(statuses)
}
