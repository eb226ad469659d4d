package commands

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/devsky83/cra-serverless/internal/config"
	"github.com/devsky83/cra-serverless/internal/configstore"
	"github.com/devsky83/cra-serverless/internal/deployment"
	"github.com/devsky83/cra-serverless/internal/di"
	"github.com/devsky83/cra-serverless/internal/provision"
)

// ReleaseCommand returns the release command: the cache-invalidation step
// the pipeline's Release stage runs.
func ReleaseCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "release",
		Usage: "Invalidate the content-delivery cache for the published website",
		Description: `Reads the website bucket domain from the published configuration
namespace and creates a cache invalidation on the distribution that fronts
it. This is the command the Release stage's invalidate action executes.

When --distribution-id is omitted the distribution is located by matching
its origin against the published bucket domain; that lookup lists
distributions and therefore needs the operator's credentials, not the
release role.`,
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:    "distribution-id",
				Aliases: []string{"d"},
				Usage:   "Distribution to invalidate (discovered from the published config when omitted)",
				EnvVars: []string{"DISTRIBUTION_ID"},
			},
			&cli.StringSliceFlag{
				Name:    "path",
				Aliases: []string{"p"},
				Usage:   "Path pattern(s) to invalidate (defaults to /*)",
			},
		},
		Action: func(c *cli.Context) error {
			return releaseAction(c)
		},
	}
}

func releaseAction(c *cli.Context) error {
	container, err := di.New(c.Context, c.String("config"))
	if err != nil {
		return err
	}

	var (
		cfg       *config.Config
		publisher *configstore.Publisher
		cfClient  *cloudfront.Client
	)
	if err := container.Invoke(func(loaded *config.Config, p *configstore.Publisher, client *cloudfront.Client) {
		cfg, publisher, cfClient = loaded, p, client
	}); err != nil {
		return err
	}

	ctx := c.Context
	invalidator := provision.NewInvalidator(cfClient)

	distributionID := c.String("distribution-id")
	if distributionID == "" {
		domain, err := publisher.Read(ctx, cfg.Namespace+"/"+deployment.KeyWebsiteDomain)
		if err != nil {
			return fmt.Errorf("cannot discover distribution without published bucket domain: %w", err)
		}
		distributionID, err = invalidator.FindByOrigin(ctx, domain)
		if err != nil {
			return err
		}
	}

	_, err = invalidator.Invalidate(ctx, distributionID, c.StringSlice("path"))
	return err
}
