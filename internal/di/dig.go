// Package di provides a lightweight wrapper around uber's dig dependency
// injection framework. It simplifies container setup and provides type-safe
// dependency retrieval with generics.
package di

import (
	"context"

	"go.uber.org/dig"
)

// Container defines a dependency injection container based on uber's dig.
// This interface allows for easy testing and mocking of the DI container.
type Container interface {
	// Invoke executes a function, injecting its dependencies from the container.
	Invoke(function any, opts ...dig.InvokeOption) error

	// Provide registers a constructor function in the container.
	Provide(constructor any, opts ...dig.ProvideOption) error
}

// MustGet returns an instance constructed via dependency injection or panics.
// Use it when the dependency is known to be resolvable.
//
// Example:
//
//	publisher := MustGet[*configstore.Publisher](container)
func MustGet[T any](container Container) (want T) {
	callback := func(got T) {
		want = got
	}
	if err := container.Invoke(callback); err != nil {
		panic(err)
	}
	return want
}

// New creates a dependency injection container rooted at the given config
// file path. The context (carrying the logger) and the path are registered
// as dependencies for the providers that need them.
func New(ctx context.Context, configPath string, opts ...Option) (Container, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	container := dig.New()
	if err := container.Provide(func() context.Context { return ctx }); err != nil {
		return nil, err
	}
	if err := container.Provide(func() ConfigPath { return ConfigPath(configPath) }); err != nil {
		return nil, err
	}

	for _, provider := range core {
		if err := container.Provide(provider); err != nil {
			return nil, err
		}
	}
	for _, provider := range o.providers {
		if err := container.Provide(provider); err != nil {
			return nil, err
		}
	}

	return container, nil
}

var core = []any{
	ProvideConfig,
	ProvideDeployment,
	ProvideAWSConfig,
	ProvideCodePipelineClient,
	ProvideCodeBuildClient,
	ProvideCloudFormationClient,
	ProvideCloudFrontClient,
	ProvideS3Client,
	ProvideSSMClient,
	ProvideIAMClient,
	ProvideSecretsManagerClient,
	ProvidePublisher,
}
