package commands

import (
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/devsky83/cra-serverless/internal/config"
	"github.com/devsky83/cra-serverless/internal/di"
	"github.com/devsky83/cra-serverless/internal/provision"
)

// SyncCommand returns the sync command for pushing local assets to the
// website bucket outside a pipeline run.
func SyncCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Upload a local asset directory to the website bucket",
		Description: `Uploads every file under the given directory to the website bucket,
keyed by relative path with a detected content type. In normal operation
the Deploy stage's object-deploy action keeps the bucket in sync; this
command exists for bootstrapping and one-off fixes.

Example:
  cra-serverless sync --config pipeline.yaml --dir build/`,
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:     "dir",
				Usage:    "Directory of built assets to upload",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			return syncAction(c)
		},
	}
}

func syncAction(c *cli.Context) error {
	container, err := di.New(c.Context, c.String("config"))
	if err != nil {
		return err
	}

	var (
		cfg      *config.Config
		s3Client *s3.Client
	)
	if err := container.Invoke(func(loaded *config.Config, client *s3.Client) {
		cfg, s3Client = loaded, client
	}); err != nil {
		return err
	}

	website := provision.NewWebsiteService(s3Client, cfg.Region)
	_, err = website.SyncDir(c.Context, cfg.Website.Bucket, c.String("dir"))
	return err
}
