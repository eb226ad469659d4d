package provision

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Identity is the account and region the deployment provisions into, used
// to scope synthesized resource ARNs.
type Identity struct {
	Account string
	Region  string
}

// DiscoverIdentity fills in the caller's account from STS. The region comes
// from the resolved AWS config.
func DiscoverIdentity(ctx context.Context, cfg aws.Config) (Identity, error) {
	client := sts.NewFromConfig(cfg)
	result, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return Identity{}, fmt.Errorf("failed to get caller identity: %w", err)
	}
	if result.Account == nil {
		return Identity{}, fmt.Errorf("caller identity has no account ID")
	}
	return Identity{Account: *result.Account, Region: cfg.Region}, nil
}
