package provision

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"
)

// Invalidator issues cache invalidations against the distribution that
// fronts the website bucket. It is the release stage's workhorse: the
// invalidate action reads the published configuration for the bucket domain
// and flushes the paths that changed.
type Invalidator struct {
	client *cloudfront.Client
}

// NewInvalidator returns an Invalidator.
func NewInvalidator(client *cloudfront.Client) *Invalidator {
	return &Invalidator{client: client}
}

// FindByOrigin returns the ID of the distribution whose origin matches the
// given domain name. Listing distributions requires the caller's own
// credentials; the release role itself holds only the invalidation grant.
func (i *Invalidator) FindByOrigin(ctx context.Context, originDomain string) (string, error) {
	paginator := cloudfront.NewListDistributionsPaginator(i.client, &cloudfront.ListDistributionsInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to list distributions: %w", err)
		}
		if page.DistributionList == nil {
			continue
		}
		for _, dist := range page.DistributionList.Items {
			if dist.Origins == nil {
				continue
			}
			for _, origin := range dist.Origins.Items {
				if aws.ToString(origin.DomainName) == originDomain {
					return aws.ToString(dist.Id), nil
				}
			}
		}
	}
	return "", fmt.Errorf("no distribution found with origin %s", originDomain)
}

// Invalidate flushes the given paths from the distribution's cache. The
// caller reference is a fresh ksuid, so retried invocations create distinct
// invalidations instead of colliding.
func (i *Invalidator) Invalidate(ctx context.Context, distributionID string, paths []string) (string, error) {
	logger := zerolog.Ctx(ctx)

	if len(paths) == 0 {
		paths = []string{"/*"}
	}

	result, err := i.client.CreateInvalidation(ctx, &cloudfront.CreateInvalidationInput{
		DistributionId: aws.String(distributionID),
		InvalidationBatch: &types.InvalidationBatch{
			CallerReference: aws.String(ksuid.New().String()),
			Paths: &types.Paths{
				Quantity: aws.Int32(int32(len(paths))),
				Items:    paths,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create invalidation for distribution %s: %w", distributionID, err)
	}

	invalidationID := ""
	if result.Invalidation != nil {
		invalidationID = aws.ToString(result.Invalidation.Id)
	}

	logger.Info().
		Str("distribution", distributionID).
		Str("invalidation", invalidationID).
		Int("paths", len(paths)).
		Msg("Cache invalidation created")
	return invalidationID, nil
}
