// Package deployment declares the cra-serverless pipeline: a static
// front-end plus serverless backend deployed through four sequential stages
// (Sources, Build, Deploy, Release). The package translates static input
// configuration into the validated pipeline topology, the release role's
// minimal permission set, and the published configuration entries that
// independent stacks discover the website bucket through.
package deployment

import (
	"fmt"

	"github.com/devsky83/cra-serverless/internal/config"
	"github.com/devsky83/cra-serverless/internal/configstore"
	"github.com/devsky83/cra-serverless/internal/iampolicy"
	"github.com/devsky83/cra-serverless/internal/pipeline"
)

// Stage names, in execution order.
const (
	StageSources = "Sources"
	StageBuild   = "Build"
	StageDeploy  = "Deploy"
	StageRelease = "Release"
)

// Artifact names.
const (
	ArtifactSource    = "source"
	ArtifactTemplates = "templates"
	ArtifactAssets    = "assets"
	ArtifactRender    = "render"
)

// Action IDs.
const (
	ActionCheckout       = "checkout"
	ActionBuildTemplates = "build-infrastructure"
	ActionBuildAssets    = "build-assets"
	ActionBuildRender    = "build-render"
	ActionDeployAssets   = "deploy-assets"
	ActionDeployStack    = "deploy-stack"
	ActionDeployDomain   = "deploy-domain"
	ActionInvalidate     = "invalidate-cache"
)

// Parameters of the application stack, bound to the render artifact's
// storage location.
const (
	ParamCodeBucket = "CodeBucket"
	ParamCodeKey    = "CodeKey"
)

// Published config keys, relative to the namespace.
const (
	KeyWebsiteBucket = "website/bucket-name"
	KeyWebsiteDomain = "website/bucket-domain"
)

// Deployment bundles everything the provisioners need: the validated
// topology, the release role, the published configuration, and the source
// and website settings carried through from the input config.
type Deployment struct {
	Definition  *pipeline.Definition
	ReleaseRole iampolicy.RoleDefinition
	Published   *configstore.Store

	Source  config.Source
	Website config.Website

	// ArtifactBucket stores pipeline artifacts between actions.
	ArtifactBucket string
}

// New synthesizes the full deployment from static input configuration.
// Every configuration error (cycle, duplicate producer, unresolved
// parameter, duplicate publish, over-broad grant) surfaces here, before any
// provisioning request exists.
func New(cfg *config.Config) (*Deployment, error) {
	definition, err := buildDefinition(cfg)
	if err != nil {
		return nil, err
	}

	role, err := buildReleaseRole(cfg)
	if err != nil {
		return nil, err
	}

	published, err := buildPublishedConfig(cfg)
	if err != nil {
		return nil, err
	}

	return &Deployment{
		Definition:     definition,
		ReleaseRole:    role,
		Published:      published,
		Source:         cfg.Source,
		Website:        cfg.Website,
		ArtifactBucket: cfg.ArtifactBucket,
	}, nil
}

func buildDefinition(cfg *config.Config) (*pipeline.Definition, error) {
	b := pipeline.NewBuilder(cfg.Pipeline)

	for _, name := range []string{ArtifactSource, ArtifactTemplates, ArtifactAssets, ArtifactRender} {
		b.DeclareArtifact(name)
	}
	for _, name := range []string{StageSources, StageBuild, StageDeploy, StageRelease} {
		if err := b.AddStage(name); err != nil {
			return nil, err
		}
	}

	actions := []pipeline.Action{
		{
			ID:       ActionCheckout,
			Stage:    StageSources,
			RunOrder: 1,
			Kind:     pipeline.KindCheckout,
			Outputs:  []string{ArtifactSource},
			Config: map[string]string{
				"Owner":  cfg.Source.Owner,
				"Repo":   cfg.Source.Repository,
				"Branch": cfg.Source.Branch,
			},
		},
		{
			ID:       ActionBuildTemplates,
			Stage:    StageBuild,
			RunOrder: 10,
			Kind:     pipeline.KindBuild,
			Inputs:   []string{ArtifactSource},
			Outputs:  []string{ArtifactTemplates},
			Config:   map[string]string{"Buildspec": cfg.Build.InfrastructureSpec},
		},
		{
			ID:       ActionBuildAssets,
			Stage:    StageBuild,
			RunOrder: 10,
			Kind:     pipeline.KindBuild,
			Inputs:   []string{ArtifactSource},
			Outputs:  []string{ArtifactAssets},
			Config:   map[string]string{"Buildspec": cfg.Build.AssetsSpec},
		},
		{
			ID:          ActionBuildRender,
			Stage:       StageBuild,
			RunOrder:    20,
			Kind:        pipeline.KindBuild,
			Inputs:      []string{ArtifactSource},
			ExtraInputs: []string{ArtifactAssets},
			Outputs:     []string{ArtifactRender},
			Config:      map[string]string{"Buildspec": cfg.Build.RenderSpec},
		},
		{
			ID:       ActionDeployAssets,
			Stage:    StageDeploy,
			RunOrder: 1,
			Kind:     pipeline.KindObjectDeploy,
			Inputs:   []string{ArtifactAssets},
			Config:   map[string]string{"BucketName": cfg.Website.Bucket},
		},
		{
			ID:          ActionDeployStack,
			Stage:       StageDeploy,
			RunOrder:    1,
			Kind:        pipeline.KindStackDeploy,
			Inputs:      []string{ArtifactTemplates},
			ExtraInputs: []string{ArtifactRender},
			Parameters:  []string{ParamCodeBucket, ParamCodeKey},
			Config: map[string]string{
				"StackName":    cfg.Stacks.Application,
				"TemplatePath": fmt.Sprintf("%s::%s", ArtifactTemplates, cfg.Stacks.Template),
			},
		},
		{
			ID:       ActionDeployDomain,
			Stage:    StageDeploy,
			RunOrder: 1,
			Kind:     pipeline.KindStackDeploy,
			Inputs:   []string{ArtifactTemplates},
			Config: map[string]string{
				"StackName":    cfg.Stacks.Domain,
				"TemplatePath": fmt.Sprintf("%s::%s", ArtifactTemplates, cfg.Stacks.DomainTemplate),
			},
		},
		{
			ID:       ActionInvalidate,
			Stage:    StageRelease,
			RunOrder: 1,
			Kind:     pipeline.KindInvalidate,
			Inputs:   []string{ArtifactSource},
			RoleName: ReleaseRoleName(cfg.Pipeline),
			Config:   map[string]string{"Buildspec": cfg.Build.InvalidateSpec},
		},
	}
	for _, a := range actions {
		if err := b.AddAction(a); err != nil {
			return nil, err
		}
	}

	bindings := []struct {
		parameter string
		attribute pipeline.ArtifactAttribute
	}{
		{ParamCodeBucket, pipeline.AttributeBucketName},
		{ParamCodeKey, pipeline.AttributeObjectKey},
	}
	for _, bind := range bindings {
		if err := b.BindParameter(ActionDeployStack, bind.parameter, ArtifactRender, bind.attribute); err != nil {
			return nil, err
		}
	}

	return b.Build()
}

// ReleaseRoleName derives the release role name from the pipeline name.
func ReleaseRoleName(pipelineName string) string {
	return pipelineName + "-release"
}

// buildReleaseRole grants the cache-invalidation action exactly what it
// needs: read access restricted to the published-configuration namespace,
// and invalidation access scoped to the owning account's distributions.
func buildReleaseRole(cfg *config.Config) (iampolicy.RoleDefinition, error) {
	b := iampolicy.NewBuilder(ReleaseRoleName(cfg.Pipeline), "codebuild.amazonaws.com")

	err := b.Grant(iampolicy.EffectAllow,
		[]string{"ssm:GetParameter", "ssm:GetParametersByPath"},
		[]string{fmt.Sprintf("arn:aws:ssm:%s:%s:parameter%s/*", cfg.Region, cfg.Account, cfg.Namespace)},
	)
	if err != nil {
		return iampolicy.RoleDefinition{}, err
	}

	err = b.Grant(iampolicy.EffectAllow,
		[]string{"cloudfront:CreateInvalidation"},
		[]string{fmt.Sprintf("arn:aws:cloudfront::%s:distribution/*", cfg.Account)},
	)
	if err != nil {
		return iampolicy.RoleDefinition{}, err
	}

	return b.Definition(), nil
}

// buildPublishedConfig records the website bucket identifiers so that
// independently-deployed stacks can discover them.
func buildPublishedConfig(cfg *config.Config) (*configstore.Store, error) {
	store, err := configstore.New(cfg.Namespace)
	if err != nil {
		return nil, err
	}
	if err := store.Publish(KeyWebsiteBucket, cfg.Website.Bucket); err != nil {
		return nil, err
	}
	if err := store.Publish(KeyWebsiteDomain, websiteDomain(cfg.Website.Bucket, cfg.Region)); err != nil {
		return nil, err
	}
	return store, nil
}

// dashWebsiteRegions lists the S3 regions whose website endpoint uses the
// legacy dash separator (s3-website-<region>) instead of the dot form.
var dashWebsiteRegions = map[string]bool{
	"us-east-1":      true,
	"us-west-1":      true,
	"us-west-2":      true,
	"ap-southeast-1": true,
	"ap-southeast-2": true,
	"ap-northeast-1": true,
	"eu-west-1":      true,
	"sa-east-1":      true,
	"us-gov-west-1":  true,
}

// websiteDomain returns the bucket's static-website endpoint. Distribution
// origins reference this exact hostname, so the separator must match what S3
// actually serves in the region.
func websiteDomain(bucket, region string) string {
	if dashWebsiteRegions[region] {
		return fmt.Sprintf("%s.s3-website-%s.amazonaws.com", bucket, region)
	}
	return fmt.Sprintf("%s.s3-website.%s.amazonaws.com", bucket, region)
}
