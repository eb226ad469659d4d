package configstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// Publisher flushes a Store's entries to SSM Parameter Store and reads
// published values back for downstream consumers.
type Publisher struct {
	client *ssm.Client
	mu     sync.RWMutex
	cache  map[string]string
}

// NewPublisher returns a Publisher backed by the given SSM client.
func NewPublisher(client *ssm.Client) *Publisher {
	return &Publisher{
		client: client,
		cache:  map[string]string{},
	}
}

// Flush writes every entry of the store as a String parameter. Overwrite is
// disabled to preserve the write-once contract end to end; an entry whose
// path already exists with a different value surfaces as an error from SSM.
func (p *Publisher) Flush(ctx context.Context, store *Store) error {
	for _, entry := range store.Entries() {
		current, err := p.Read(ctx, entry.KeyPath)
		if err == nil && current == entry.Value {
			continue // already published with the same value, idempotent
		}
		_, err = p.client.PutParameter(ctx, &ssm.PutParameterInput{
			Name:      aws.String(entry.KeyPath),
			Value:     aws.String(entry.Value),
			Type:      types.ParameterTypeString,
			Overwrite: aws.Bool(false),
		})
		if err != nil {
			return fmt.Errorf("failed to publish config entry %s: %w", entry.KeyPath, err)
		}

		p.mu.Lock()
		p.cache[entry.KeyPath] = entry.Value
		p.mu.Unlock()
	}
	return nil
}

// Read returns the value published at an absolute key path.
func (p *Publisher) Read(ctx context.Context, keyPath string) (string, error) {
	p.mu.RLock()
	if value, ok := p.cache[keyPath]; ok {
		p.mu.RUnlock()
		return value, nil
	}
	p.mu.RUnlock()

	result, err := p.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name: aws.String(keyPath),
	})
	if err != nil {
		return "", fmt.Errorf("failed to read config entry %s: %w", keyPath, err)
	}
	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", fmt.Errorf("config entry %s not found", keyPath)
	}

	value := *result.Parameter.Value

	p.mu.Lock()
	p.cache[keyPath] = value
	p.mu.Unlock()

	return value, nil
}

// ReadNamespace returns every entry under a namespace prefix, keyed by
// absolute path.
func (p *Publisher) ReadNamespace(ctx context.Context, namespace string) (map[string]string, error) {
	result, err := p.client.GetParametersByPath(ctx, &ssm.GetParametersByPathInput{
		Path:      aws.String(namespace),
		Recursive: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read config namespace %s: %w", namespace, err)
	}

	values := make(map[string]string, len(result.Parameters))
	for _, param := range result.Parameters {
		if param.Name != nil && param.Value != nil {
			values[*param.Name] = *param.Value
		}
	}

	p.mu.Lock()
	for k, v := range values {
		p.cache[k] = v
	}
	p.mu.Unlock()

	return values, nil
}
