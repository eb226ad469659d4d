package provision

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/smithy-go"
)

// StackStatus summarizes one stack the pipeline deploys.
type StackStatus struct {
	StackName string
	Status    string
	Exists    bool
	Outputs   map[string]string
}

// StackService reads back the state of the stacks the Deploy stage manages.
// The deployments themselves run inside the execution engine; this service
// only observes.
type StackService struct {
	client *cloudformation.Client
}

// NewStackService returns a StackService.
func NewStackService(client *cloudformation.Client) *StackService {
	return &StackService{client: client}
}

// Status describes a stack. A missing stack is not an error; Exists reports
// it.
func (s *StackService) Status(ctx context.Context, stackName string) (StackStatus, error) {
	result, err := s.client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) &&
			(apiErr.ErrorCode() == "ValidationError" || strings.Contains(apiErr.ErrorMessage(), "does not exist")) {
			return StackStatus{StackName: stackName}, nil
		}
		return StackStatus{}, fmt.Errorf("failed to describe stack %s: %w", stackName, err)
	}
	if len(result.Stacks) == 0 {
		return StackStatus{StackName: stackName}, nil
	}

	stack := result.Stacks[0]
	outputs := map[string]string{}
	for _, output := range stack.Outputs {
		if output.OutputKey != nil && output.OutputValue != nil {
			outputs[*output.OutputKey] = *output.OutputValue
		}
	}

	return StackStatus{
		StackName: stackName,
		Status:    string(stack.StackStatus),
		Exists:    true,
		Outputs:   outputs,
	}, nil
}
