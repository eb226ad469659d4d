package di

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/rs/zerolog"

	"github.com/devsky83/cra-serverless/internal/config"
	"github.com/devsky83/cra-serverless/internal/deployment"
	"github.com/devsky83/cra-serverless/internal/provision"
)

// ProvideConfig loads the static pipeline configuration. When the account or
// region is not pinned in the file, it is discovered from the caller's
// credentials so that synthesized role resources are always account-scoped.
func ProvideConfig(ctx context.Context, path ConfigPath, awsConfig aws.Config) (*config.Config, error) {
	logger := zerolog.Ctx(ctx)

	cfg, err := config.Load(string(path))
	if err != nil {
		return nil, err
	}

	if cfg.Account == "" || cfg.Region == "" {
		identity, err := provision.DiscoverIdentity(ctx, awsConfig)
		if err != nil {
			return nil, fmt.Errorf("account/region not set in config and discovery failed: %w", err)
		}
		if cfg.Account == "" {
			cfg.Account = identity.Account
		}
		if cfg.Region == "" {
			cfg.Region = identity.Region
		}
	}

	logger.Info().
		Str("pipeline", cfg.Pipeline).
		Str("account", cfg.Account).
		Str("region", cfg.Region).
		Msg("Configuration loaded")
	return cfg, nil
}

// ProvideDeployment synthesizes the deployment from configuration. Any
// configuration error in the topology surfaces here, before provisioning.
func ProvideDeployment(cfg *config.Config) (*deployment.Deployment, error) {
	return deployment.New(cfg)
}
