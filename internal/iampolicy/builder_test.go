package iampolicy

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_RejectsBareWildcardOnMutatingAction(t *testing.T) {
	tests := []struct {
		name     string
		actions  []string
		resource string
		wantErr  bool
	}{
		{
			name:     "mutating action with bare wildcard",
			actions:  []string{"cloudfront:CreateInvalidation"},
			resource: "*",
			wantErr:  true,
		},
		{
			name:     "mutating action with wildcard before trailing segment",
			actions:  []string{"s3:PutObject"},
			resource: "arn:aws:s3:::*/assets",
			wantErr:  true,
		},
		{
			name:     "mutating action with trailing-segment wildcard",
			actions:  []string{"cloudfront:CreateInvalidation"},
			resource: "arn:aws:cloudfront::123456789012:distribution/*",
			wantErr:  false,
		},
		{
			name:     "read-only action with bare wildcard",
			actions:  []string{"ssm:GetParameter"},
			resource: "*",
			wantErr:  false,
		},
		{
			name:     "mixed actions checked individually",
			actions:  []string{"ssm:GetParameter", "ssm:PutParameter"},
			resource: "*",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder("release", "codebuild.amazonaws.com")
			err := b.Grant(EffectAllow, tt.actions, []string{tt.resource})
			if tt.wantErr {
				var overBroad *OverBroadGrantError
				require.ErrorAs(t, err, &overBroad)
				assert.Equal(t, "release", overBroad.Role)
				assert.Equal(t, tt.resource, overBroad.Resource)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestBuilder_DeduplicatesIdenticalGrants(t *testing.T) {
	b := NewBuilder("release", "codebuild.amazonaws.com")

	resources := []string{"arn:aws:ssm:us-east-1:123456789012:parameter/site/*"}
	require.NoError(t, b.Grant(EffectAllow, []string{"ssm:GetParameter", "ssm:GetParametersByPath"}, resources))
	// Same grant with actions in a different order collapses.
	require.NoError(t, b.Grant(EffectAllow, []string{"ssm:GetParametersByPath", "ssm:GetParameter"}, resources))

	def := b.Definition()
	assert.Len(t, def.Statements, 1)
}

func TestBuilder_StatementsAreAdditive(t *testing.T) {
	b := NewBuilder("release", "codebuild.amazonaws.com")
	require.NoError(t, b.Grant(EffectAllow,
		[]string{"ssm:GetParameter"},
		[]string{"arn:aws:ssm:us-east-1:123456789012:parameter/site/*"}))
	require.NoError(t, b.Grant(EffectAllow,
		[]string{"cloudfront:CreateInvalidation"},
		[]string{"arn:aws:cloudfront::123456789012:distribution/*"}))

	def := b.Definition()
	require.Len(t, def.Statements, 2)
	assert.Equal(t, []string{"ssm:GetParameter"}, def.Statements[0].Actions)
	assert.Equal(t, []string{"cloudfront:CreateInvalidation"}, def.Statements[1].Actions)
}

func TestBuilder_DefinitionIsDetached(t *testing.T) {
	b := NewBuilder("release", "codebuild.amazonaws.com")
	require.NoError(t, b.Grant(EffectAllow,
		[]string{"ssm:GetParameter"},
		[]string{"arn:aws:ssm:us-east-1:123456789012:parameter/site/*"}))

	def := b.Definition()
	def.Statements[0].Actions[0] = "tampered"

	assert.Equal(t, "ssm:GetParameter", b.Definition().Statements[0].Actions[0])
}

func TestBuilder_EmptyGrant(t *testing.T) {
	b := NewBuilder("release", "codebuild.amazonaws.com")
	assert.Error(t, b.Grant(EffectAllow, nil, []string{"*"}))
	assert.Error(t, b.Grant(EffectAllow, []string{"ssm:GetParameter"}, nil))
}

func TestRoleDefinition_Document(t *testing.T) {
	b := NewBuilder("release", "codebuild.amazonaws.com")
	require.NoError(t, b.Grant(EffectAllow,
		[]string{"cloudfront:CreateInvalidation"},
		[]string{"arn:aws:cloudfront::123456789012:distribution/*"}))

	document, err := b.Definition().Document()
	require.NoError(t, err)

	var parsed struct {
		Version   string `json:"Version"`
		Statement []struct {
			Effect   string   `json:"Effect"`
			Action   []string `json:"Action"`
			Resource []string `json:"Resource"`
		} `json:"Statement"`
	}
	require.NoError(t, json.Unmarshal([]byte(document), &parsed))
	assert.Equal(t, "2012-10-17", parsed.Version)
	require.Len(t, parsed.Statement, 1)
	assert.Equal(t, "Allow", parsed.Statement[0].Effect)
	assert.Equal(t, []string{"cloudfront:CreateInvalidation"}, parsed.Statement[0].Action)
}

func TestRoleDefinition_TrustPolicy(t *testing.T) {
	b := NewBuilder("release", "codebuild.amazonaws.com")
	trust := b.Definition().TrustPolicy()

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(trust), &parsed))
	assert.Contains(t, trust, "codebuild.amazonaws.com")
	assert.Contains(t, trust, "sts:AssumeRole")
}

func TestMutatingClassification(t *testing.T) {
	assert.True(t, mutating("cloudfront:CreateInvalidation"))
	assert.True(t, mutating("s3:PutObject"))
	assert.True(t, mutating("weird"))
	assert.False(t, mutating("ssm:GetParameter"))
	assert.False(t, mutating("cloudfront:ListDistributions"))
	assert.False(t, mutating("cloudformation:DescribeStacks"))
	assert.False(t, mutating("s3:HeadObject"))
}
