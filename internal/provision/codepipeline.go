// Package provision turns the synthesized deployment into AWS resources:
// the pipeline declaration, build projects, the website bucket, the release
// role, and the published configuration entries. Every provisioner is a thin
// wrapper over one service client; nothing here mutates the deployment
// model, and nothing runs until the model has validated.
package provision

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline/types"
	"github.com/rs/zerolog"

	"github.com/devsky83/cra-serverless/internal/deployment"
	"github.com/devsky83/cra-serverless/internal/pipeline"
)

// PipelineService creates or updates the CodePipeline declaration derived
// from a deployment.
type PipelineService struct {
	client  *codepipeline.Client
	roleArn string
}

// NewPipelineService returns a PipelineService. roleArn is the pipeline's
// own service role, provisioned outside this tool.
func NewPipelineService(client *codepipeline.Client, roleArn string) *PipelineService {
	return &PipelineService{client: client, roleArn: roleArn}
}

// Declaration translates the deployment into a CodePipeline declaration.
// The translation is pure; it issues no API calls. The OAuth token slot of
// the source action is filled by Push, never here, so the declaration a
// caller inspects or emits carries only the opaque secret handle.
func (s *PipelineService) Declaration(d *deployment.Deployment, accountID string) types.PipelineDeclaration {
	var stages []types.StageDeclaration
	for _, stage := range d.Definition.Stages() {
		var actions []types.ActionDeclaration
		for _, level := range levelsOf(d.Definition, stage.Name) {
			for _, a := range level.Actions {
				actions = append(actions, s.translate(d, a, accountID))
			}
		}
		stages = append(stages, types.StageDeclaration{
			Name:    aws.String(stage.Name),
			Actions: actions,
		})
	}

	return types.PipelineDeclaration{
		Name:    aws.String(d.Definition.Name()),
		RoleArn: aws.String(s.roleArn),
		ArtifactStore: &types.ArtifactStore{
			Type:     types.ArtifactStoreTypeS3,
			Location: aws.String(d.ArtifactBucket),
		},
		Stages: stages,
	}
}

func levelsOf(def *pipeline.Definition, stageName string) []pipeline.Level {
	var out []pipeline.Level
	for _, level := range def.Levels() {
		if level.Stage == stageName {
			out = append(out, level)
		}
	}
	return out
}

func (s *PipelineService) translate(d *deployment.Deployment, a *pipeline.Action, accountID string) types.ActionDeclaration {
	decl := types.ActionDeclaration{
		Name:     aws.String(a.ID),
		RunOrder: aws.Int32(int32(a.RunOrder)),
	}
	for _, name := range a.Inputs {
		decl.InputArtifacts = append(decl.InputArtifacts, types.InputArtifact{Name: aws.String(name)})
	}
	for _, name := range a.ExtraInputs {
		decl.InputArtifacts = append(decl.InputArtifacts, types.InputArtifact{Name: aws.String(name)})
	}
	for _, name := range a.Outputs {
		decl.OutputArtifacts = append(decl.OutputArtifacts, types.OutputArtifact{Name: aws.String(name)})
	}

	switch a.Kind {
	case pipeline.KindCheckout:
		decl.ActionTypeId = &types.ActionTypeId{
			Category: types.ActionCategorySource,
			Owner:    types.ActionOwnerThirdParty,
			Provider: aws.String("GitHub"),
			Version:  aws.String("1"),
		}
		decl.Configuration = map[string]string{
			"Owner":  a.Config["Owner"],
			"Repo":   a.Config["Repo"],
			"Branch": a.Config["Branch"],
			// The webhook delivers change events; the pipeline never polls.
			"PollForSourceChanges": "false",
		}

	case pipeline.KindBuild, pipeline.KindInvalidate:
		decl.ActionTypeId = &types.ActionTypeId{
			Category: types.ActionCategoryBuild,
			Owner:    types.ActionOwnerAws,
			Provider: aws.String("CodeBuild"),
			Version:  aws.String("1"),
		}
		decl.Configuration = map[string]string{
			"ProjectName": ProjectName(d.Definition.Name(), a.ID),
		}
		if len(a.Inputs) > 0 && len(a.ExtraInputs) > 0 {
			decl.Configuration["PrimarySource"] = a.Inputs[0]
		}

	case pipeline.KindObjectDeploy:
		decl.ActionTypeId = &types.ActionTypeId{
			Category: types.ActionCategoryDeploy,
			Owner:    types.ActionOwnerAws,
			Provider: aws.String("S3"),
			Version:  aws.String("1"),
		}
		decl.Configuration = map[string]string{
			"BucketName": a.Config["BucketName"],
			"Extract":    "true",
		}

	case pipeline.KindStackDeploy:
		decl.ActionTypeId = &types.ActionTypeId{
			Category: types.ActionCategoryDeploy,
			Owner:    types.ActionOwnerAws,
			Provider: aws.String("CloudFormation"),
			Version:  aws.String("1"),
		}
		decl.Configuration = map[string]string{
			"ActionMode":   "CREATE_UPDATE",
			"StackName":    a.Config["StackName"],
			"TemplatePath": a.Config["TemplatePath"],
			"Capabilities": "CAPABILITY_IAM,CAPABILITY_NAMED_IAM",
			"RoleArn":      s.roleArn,
		}
		if overrides := parameterOverrides(d.Definition.Parameters(a.ID)); overrides != "" {
			decl.Configuration["ParameterOverrides"] = overrides
		}
	}

	if a.RoleName != "" {
		decl.RoleArn = aws.String(fmt.Sprintf("arn:aws:iam::%s:role/%s", accountID, a.RoleName))
	}
	return decl
}

// parameterOverrides renders a resolved parameter map as the JSON object
// CodePipeline expects. Values are already JSON (artifact-attribute
// references), so they are embedded verbatim; keys are sorted so the
// rendered declaration is deterministic.
func parameterOverrides(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteByte('{')
	for i, key := range slices.Sorted(maps.Keys(params)) {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%q:%s", key, params[key])
	}
	sb.WriteByte('}')
	return sb.String()
}

// ProjectName derives the CodeBuild project name for a build action.
func ProjectName(pipelineName, actionID string) string {
	return pipelineName + "-" + actionID
}

// Push creates or updates the pipeline. The source action's OAuth token is
// resolved from the secret handle here, transiently; it is never stored on
// the deployment or in the emitted declaration.
func (s *PipelineService) Push(ctx context.Context, d *deployment.Deployment, accountID, oauthToken string) error {
	logger := zerolog.Ctx(ctx)

	decl := s.Declaration(d, accountID)
	for i := range decl.Stages {
		for j := range decl.Stages[i].Actions {
			action := &decl.Stages[i].Actions[j]
			if action.ActionTypeId.Category == types.ActionCategorySource {
				action.Configuration["OAuthToken"] = oauthToken
			}
		}
	}

	_, err := s.client.GetPipeline(ctx, &codepipeline.GetPipelineInput{
		Name: decl.Name,
	})
	if err != nil {
		var notFound *types.PipelineNotFoundException
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to check pipeline %s: %w", aws.ToString(decl.Name), err)
		}
		if _, err := s.client.CreatePipeline(ctx, &codepipeline.CreatePipelineInput{Pipeline: &decl}); err != nil {
			return fmt.Errorf("failed to create pipeline %s: %w", aws.ToString(decl.Name), err)
		}
		logger.Info().Str("pipeline", aws.ToString(decl.Name)).Msg("Pipeline created")
		return nil
	}

	// Updating the declaration never restarts an in-flight or past
	// execution; runs start only from the source webhook.
	if _, err := s.client.UpdatePipeline(ctx, &codepipeline.UpdatePipelineInput{Pipeline: &decl}); err != nil {
		return fmt.Errorf("failed to update pipeline %s: %w", aws.ToString(decl.Name), err)
	}
	logger.Info().Str("pipeline", aws.ToString(decl.Name)).Msg("Pipeline updated")
	return nil
}

// RegisterWebhook points the repository's webhook at the pipeline's source
// action, filtered to the configured branch.
func (s *PipelineService) RegisterWebhook(ctx context.Context, d *deployment.Deployment, secretToken string) error {
	logger := zerolog.Ctx(ctx)

	name := d.Definition.Name() + "-webhook"
	_, err := s.client.PutWebhook(ctx, &codepipeline.PutWebhookInput{
		Webhook: &types.WebhookDefinition{
			Name:           aws.String(name),
			TargetPipeline: aws.String(d.Definition.Name()),
			TargetAction:   aws.String(deployment.ActionCheckout),
			Authentication: types.WebhookAuthenticationTypeGithubHmac,
			AuthenticationConfiguration: &types.WebhookAuthConfiguration{
				SecretToken: aws.String(secretToken),
			},
			Filters: []types.WebhookFilterRule{
				{
					JsonPath:    aws.String("$.ref"),
					MatchEquals: aws.String("refs/heads/{Branch}"),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to register webhook %s: %w", name, err)
	}

	logger.Info().Str("webhook", name).Msg("Webhook registered")
	return nil
}
