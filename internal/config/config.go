// Package config loads the static input configuration the pipeline
// definition is synthesized from: repository coordinates, the webhook
// credential handle, buildspec references, and resource names. The file is
// plain YAML; nothing in it is discovered at runtime.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full static input.
type Config struct {
	// Pipeline is the pipeline name, also used to derive resource names.
	Pipeline string `yaml:"pipeline"`

	// Namespace is the published-configuration namespace prefix, e.g.
	// "/cra-serverless/prod".
	Namespace string `yaml:"namespace"`

	// Account and Region scope synthesized role resources. When empty they
	// are discovered from the caller's credentials before provisioning.
	Account string `yaml:"account"`
	Region  string `yaml:"region"`

	// ArtifactBucket stores pipeline artifacts between actions.
	ArtifactBucket string `yaml:"artifact_bucket"`

	Source  Source  `yaml:"source"`
	Website Website `yaml:"website"`
	Build   Build   `yaml:"build"`
	Stacks  Stacks  `yaml:"stacks"`
}

// Source identifies the repository the pipeline checks out.
type Source struct {
	Owner      string `yaml:"owner"`
	Repository string `yaml:"repository"`
	Branch     string `yaml:"branch"`

	// TokenSecret is an opaque Secrets Manager handle for the webhook
	// credential. The literal value never enters the definition.
	TokenSecret string `yaml:"token_secret"`
}

// Website configures the public static-site bucket.
type Website struct {
	Bucket        string `yaml:"bucket"`
	IndexDocument string `yaml:"index_document"`
}

// Build references the external build-instruction files. The paths are
// opaque to the definition; the build system that interprets them is out of
// scope here.
type Build struct {
	InfrastructureSpec string `yaml:"infrastructure_spec"`
	AssetsSpec         string `yaml:"assets_spec"`
	RenderSpec         string `yaml:"render_spec"`
	InvalidateSpec     string `yaml:"invalidate_spec"`
}

// Stacks names the two stack deployments the Deploy stage performs.
type Stacks struct {
	// Application receives the rendered-output artifact's storage location
	// as parameters.
	Application string `yaml:"application"`
	// Domain carries the DNS-facing resources and takes no runtime
	// parameters.
	Domain string `yaml:"domain"`
	// Template is the template path within the templates artifact.
	Template string `yaml:"template"`
	// DomainTemplate is the domain stack's template path within the
	// templates artifact.
	DomainTemplate string `yaml:"domain_template"`
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Source.Branch == "" {
		c.Source.Branch = "main"
	}
	if c.Website.IndexDocument == "" {
		c.Website.IndexDocument = "index.html"
	}
	if c.Stacks.Template == "" {
		c.Stacks.Template = "stack.yaml"
	}
	if c.Stacks.DomainTemplate == "" {
		c.Stacks.DomainTemplate = "domain.yaml"
	}
	if c.Build.InfrastructureSpec == "" {
		c.Build.InfrastructureSpec = "buildspec.infrastructure.yml"
	}
	if c.Build.AssetsSpec == "" {
		c.Build.AssetsSpec = "buildspec.assets.yml"
	}
	if c.Build.RenderSpec == "" {
		c.Build.RenderSpec = "buildspec.render.yml"
	}
	if c.Build.InvalidateSpec == "" {
		c.Build.InvalidateSpec = "buildspec.invalidate.yml"
	}
	if c.Namespace == "" && c.Pipeline != "" {
		c.Namespace = "/" + c.Pipeline
	}
}

func (c *Config) validate() error {
	switch {
	case c.Pipeline == "":
		return fmt.Errorf("pipeline name is required")
	case c.Source.Owner == "":
		return fmt.Errorf("source.owner is required")
	case c.Source.Repository == "":
		return fmt.Errorf("source.repository is required")
	case c.Source.TokenSecret == "":
		return fmt.Errorf("source.token_secret is required")
	case c.Website.Bucket == "":
		return fmt.Errorf("website.bucket is required")
	case c.ArtifactBucket == "":
		return fmt.Errorf("artifact_bucket is required")
	case c.Stacks.Application == "":
		return fmt.Errorf("stacks.application is required")
	case c.Stacks.Domain == "":
		return fmt.Errorf("stacks.domain is required")
	}
	return nil
}
