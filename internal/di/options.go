package di

// ConfigPath is the location of the static pipeline configuration file.
type ConfigPath string

// Option is a function that configures the dependency injection container.
type Option func(*options)

// WithProviders adds constructor functions to the dependency injection
// container. Each provider should be a constructor function that returns one
// or more values; providers declare dependencies as function parameters,
// which are resolved automatically by the container.
//
// Example:
//
//	WithProviders(
//	    func(client *ssm.Client) *configstore.Publisher { ... },
//	)
func WithProviders(providers ...any) Option {
	return func(opts *options) {
		opts.providers = append(opts.providers, providers...)
	}
}

type options struct {
	providers []any
}
