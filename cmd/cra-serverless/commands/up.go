package commands

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/codebuild"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/devsky83/cra-serverless/internal/config"
	"github.com/devsky83/cra-serverless/internal/configstore"
	"github.com/devsky83/cra-serverless/internal/deployment"
	"github.com/devsky83/cra-serverless/internal/di"
	"github.com/devsky83/cra-serverless/internal/provision"
)

// UpCommand returns the up command for provisioning the whole deployment.
func UpCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "up",
		Usage: "Synthesize the pipeline and provision it",
		Description: `Provisions the deployment in dependency order: website bucket, published
configuration, release role, build projects, pipeline declaration, and the
source webhook. Synthesis runs first; any configuration error halts the
command before a single provisioning request is issued.

The webhook credential is read from its Secrets Manager handle transiently
during provisioning and never stored.`,
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:    "pipeline-role",
				Usage:   "ARN of the pipeline's service role (defaults to role '{pipeline}-pipeline' in the target account)",
				EnvVars: []string{"PIPELINE_ROLE_ARN"},
			},
		},
		Action: func(c *cli.Context) error {
			return upAction(c)
		},
	}
}

type upServices struct {
	Config     *config.Config
	Deployment *deployment.Deployment
	Publisher  *configstore.Publisher
	Pipeline   *codepipeline.Client
	Build      *codebuild.Client
	IAM        *iam.Client
	S3         *s3.Client
	Secrets    *provision.SecretService
}

func upAction(c *cli.Context) error {
	container, err := di.New(c.Context, c.String("config"), di.WithProviders(
		provision.NewSecretService,
	))
	if err != nil {
		return err
	}

	var svc upServices
	if err := container.Invoke(func(cfg *config.Config, d *deployment.Deployment, publisher *configstore.Publisher,
		pipelineClient *codepipeline.Client, buildClient *codebuild.Client, iamClient *iam.Client,
		s3Client *s3.Client, secrets *provision.SecretService) {
		svc = upServices{
			Config:     cfg,
			Deployment: d,
			Publisher:  publisher,
			Pipeline:   pipelineClient,
			Build:      buildClient,
			IAM:        iamClient,
			S3:         s3Client,
			Secrets:    secrets,
		}
	}); err != nil {
		return err
	}

	return up(c.Context, svc, c.String("pipeline-role"))
}

func up(ctx context.Context, svc upServices, pipelineRole string) error {
	logger := zerolog.Ctx(ctx)
	cfg, d := svc.Config, svc.Deployment

	if pipelineRole == "" {
		pipelineRole = fmt.Sprintf("arn:aws:iam::%s:role/%s-pipeline", cfg.Account, cfg.Pipeline)
	}

	// The webhook credential handle must resolve before anything is created.
	if err := svc.Secrets.Verify(ctx, cfg.Source.TokenSecret); err != nil {
		return err
	}

	website := provision.NewWebsiteService(svc.S3, cfg.Region)
	if err := website.EnsureWebsite(ctx, cfg.Website.Bucket, cfg.Website.IndexDocument); err != nil {
		return err
	}
	if err := website.EnsureBucket(ctx, cfg.ArtifactBucket); err != nil {
		return err
	}

	if err := svc.Publisher.Flush(ctx, d.Published); err != nil {
		return err
	}

	roles := provision.NewRoleService(svc.IAM)
	if _, err := roles.EnsureRole(ctx, d.ReleaseRole); err != nil {
		return err
	}

	builds := provision.NewBuildService(svc.Build, pipelineRole)
	if err := builds.EnsureProjects(ctx, d, cfg.Account); err != nil {
		return err
	}

	token, err := svc.Secrets.Token(ctx, cfg.Source.TokenSecret)
	if err != nil {
		return err
	}

	pipelines := provision.NewPipelineService(svc.Pipeline, pipelineRole)
	if err := pipelines.Push(ctx, d, cfg.Account, token); err != nil {
		return err
	}
	if err := pipelines.RegisterWebhook(ctx, d, token); err != nil {
		return err
	}

	logger.Info().Str("pipeline", cfg.Pipeline).Msg("Deployment provisioned")
	return nil
}
