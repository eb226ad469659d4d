package provision

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretService resolves the webhook credential handle. The deployment
// model only ever carries the handle; the literal token is fetched here,
// transiently, at provisioning time.
type SecretService struct {
	client *secretsmanager.Client
}

// NewSecretService returns a SecretService.
func NewSecretService(client *secretsmanager.Client) *SecretService {
	return &SecretService{client: client}
}

// Verify confirms the handle refers to an existing secret without reading
// its value. Used by synth-time checks so a bad handle fails before any
// resource is touched.
func (s *SecretService) Verify(ctx context.Context, handle string) error {
	_, err := s.client.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{
		SecretId: aws.String(handle),
	})
	if err != nil {
		return fmt.Errorf("webhook credential %s not resolvable: %w", handle, err)
	}
	return nil
}

// Token returns the secret's current value.
func (s *SecretService) Token(ctx context.Context, handle string) (string, error) {
	result, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(handle),
	})
	if err != nil {
		return "", fmt.Errorf("failed to read webhook credential %s: %w", handle, err)
	}
	if result.SecretString == nil {
		return "", fmt.Errorf("webhook credential %s has no string value", handle)
	}
	return *result.SecretString, nil
}
