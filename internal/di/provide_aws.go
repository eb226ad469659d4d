package di

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/codebuild"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/devsky83/cra-serverless/internal/configstore"
)

// ProvideAWSConfig loads the default AWS configuration (credentials, region).
func ProvideAWSConfig(ctx context.Context) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx)
}

func ProvideCodePipelineClient(config aws.Config) *codepipeline.Client {
	return codepipeline.NewFromConfig(config)
}

func ProvideCodeBuildClient(config aws.Config) *codebuild.Client {
	return codebuild.NewFromConfig(config)
}

func ProvideCloudFormationClient(config aws.Config) *cloudformation.Client {
	return cloudformation.NewFromConfig(config)
}

func ProvideCloudFrontClient(config aws.Config) *cloudfront.Client {
	return cloudfront.NewFromConfig(config)
}

func ProvideS3Client(config aws.Config) *s3.Client {
	return s3.NewFromConfig(config)
}

func ProvideSSMClient(config aws.Config) *ssm.Client {
	return ssm.NewFromConfig(config)
}

func ProvideIAMClient(config aws.Config) *iam.Client {
	return iam.NewFromConfig(config)
}

func ProvideSecretsManagerClient(config aws.Config) *secretsmanager.Client {
	return secretsmanager.NewFromConfig(config)
}

// ProvidePublisher provides the SSM-backed published-configuration access.
func ProvidePublisher(client *ssm.Client) *configstore.Publisher {
	return configstore.NewPublisher(client)
}
