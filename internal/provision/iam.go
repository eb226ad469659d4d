package provision

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/rs/zerolog"

	"github.com/devsky83/cra-serverless/internal/iampolicy"
)

// RoleService materializes synthesized RoleDefinitions as IAM roles with
// inline policies.
type RoleService struct {
	client *iam.Client
}

// NewRoleService returns a RoleService.
func NewRoleService(client *iam.Client) *RoleService {
	return &RoleService{client: client}
}

// EnsureRole creates the role if missing, refreshes its trust policy if
// present, and puts the inline permission policy either way (PutRolePolicy
// is idempotent). Returns the role ARN.
func (s *RoleService) EnsureRole(ctx context.Context, role iampolicy.RoleDefinition) (string, error) {
	logger := zerolog.Ctx(ctx)

	getResult, err := s.client.GetRole(ctx, &iam.GetRoleInput{
		RoleName: aws.String(role.RoleName),
	})
	switch {
	case err == nil:
		_, err = s.client.UpdateAssumeRolePolicy(ctx, &iam.UpdateAssumeRolePolicyInput{
			RoleName:       aws.String(role.RoleName),
			PolicyDocument: aws.String(role.TrustPolicy()),
		})
		if err != nil {
			return "", fmt.Errorf("failed to update trust policy for role %s: %w", role.RoleName, err)
		}
	default:
		var notFound *types.NoSuchEntityException
		if !errors.As(err, &notFound) {
			return "", fmt.Errorf("failed to check role %s: %w", role.RoleName, err)
		}
		_, err = s.client.CreateRole(ctx, &iam.CreateRoleInput{
			RoleName:                 aws.String(role.RoleName),
			AssumeRolePolicyDocument: aws.String(role.TrustPolicy()),
			Description:              aws.String("Pipeline execution role for " + role.RoleName),
		})
		if err != nil {
			return "", fmt.Errorf("failed to create role %s: %w", role.RoleName, err)
		}
		logger.Info().Str("role", role.RoleName).Msg("Role created")
	}

	document, err := role.Document()
	if err != nil {
		return "", err
	}
	_, err = s.client.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
		RoleName:       aws.String(role.RoleName),
		PolicyName:     aws.String("permissions"),
		PolicyDocument: aws.String(document),
	})
	if err != nil {
		return "", fmt.Errorf("failed to attach policy to role %s: %w", role.RoleName, err)
	}

	if getResult != nil && getResult.Role != nil && getResult.Role.Arn != nil {
		return *getResult.Role.Arn, nil
	}

	result, err := s.client.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(role.RoleName)})
	if err != nil {
		return "", fmt.Errorf("failed to read back role %s: %w", role.RoleName, err)
	}
	return aws.ToString(result.Role.Arn), nil
}
