package provision

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codebuild"
	"github.com/aws/aws-sdk-go-v2/service/codebuild/types"
	"github.com/rs/zerolog"

	"github.com/devsky83/cra-serverless/internal/deployment"
	"github.com/devsky83/cra-serverless/internal/pipeline"
)

const buildImage = "aws/codebuild/standard:7.0"

// BuildService creates or updates one CodeBuild project per build action.
// The buildspec path is carried through opaquely; what the build actually
// does is out of scope here.
type BuildService struct {
	client  *codebuild.Client
	roleArn string
}

// NewBuildService returns a BuildService. roleArn is the default service
// role for build projects; actions carrying their own role override it.
func NewBuildService(client *codebuild.Client, roleArn string) *BuildService {
	return &BuildService{client: client, roleArn: roleArn}
}

// EnsureProjects walks the deployment's build and invalidate actions and
// creates or updates their projects.
func (s *BuildService) EnsureProjects(ctx context.Context, d *deployment.Deployment, accountID string) error {
	for _, level := range d.Definition.Levels() {
		for _, a := range level.Actions {
			if a.Kind != pipeline.KindBuild && a.Kind != pipeline.KindInvalidate {
				continue
			}
			roleArn := s.roleArn
			if a.RoleName != "" {
				roleArn = fmt.Sprintf("arn:aws:iam::%s:role/%s", accountID, a.RoleName)
			}
			name := ProjectName(d.Definition.Name(), a.ID)
			if err := s.ensureProject(ctx, name, a.Config["Buildspec"], roleArn); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *BuildService) ensureProject(ctx context.Context, name, buildspec, roleArn string) error {
	logger := zerolog.Ctx(ctx)

	source := &types.ProjectSource{
		Type:      types.SourceTypeCodepipeline,
		Buildspec: aws.String(buildspec),
	}
	artifacts := &types.ProjectArtifacts{
		Type: types.ArtifactsTypeCodepipeline,
	}
	environment := &types.ProjectEnvironment{
		Type:        types.EnvironmentTypeLinuxContainer,
		ComputeType: types.ComputeTypeBuildGeneral1Small,
		Image:       aws.String(buildImage),
	}

	existing, err := s.client.BatchGetProjects(ctx, &codebuild.BatchGetProjectsInput{
		Names: []string{name},
	})
	if err != nil {
		return fmt.Errorf("failed to look up build project %s: %w", name, err)
	}

	if len(existing.Projects) == 0 {
		_, err = s.client.CreateProject(ctx, &codebuild.CreateProjectInput{
			Name:        aws.String(name),
			Source:      source,
			Artifacts:   artifacts,
			Environment: environment,
			ServiceRole: aws.String(roleArn),
		})
		if err != nil {
			return fmt.Errorf("failed to create build project %s: %w", name, err)
		}
		logger.Info().Str("project", name).Str("buildspec", buildspec).Msg("Build project created")
		return nil
	}

	_, err = s.client.UpdateProject(ctx, &codebuild.UpdateProjectInput{
		Name:        aws.String(name),
		Source:      source,
		Artifacts:   artifacts,
		Environment: environment,
		ServiceRole: aws.String(roleArn),
	})
	if err != nil {
		return fmt.Errorf("failed to update build project %s: %w", name, err)
	}
	logger.Info().Str("project", name).Str("buildspec", buildspec).Msg("Build project updated")
	return nil
}
