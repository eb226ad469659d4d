package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deployBuilder assembles a minimal two-stage topology with one stackDeploy
// action declaring the given placeholder parameters.
func deployBuilder(t *testing.T, parameters ...string) *Builder {
	t.Helper()

	b := NewBuilder("test")
	b.DeclareArtifact("source")
	b.DeclareArtifact("render")
	require.NoError(t, b.AddStage("Sources"))
	require.NoError(t, b.AddStage("Deploy"))

	require.NoError(t, b.AddAction(Action{
		ID: "checkout", Stage: "Sources", RunOrder: 1, Kind: KindCheckout,
		Outputs: []string{"source", "render"},
	}))
	require.NoError(t, b.AddAction(Action{
		ID: "deploy", Stage: "Deploy", RunOrder: 1, Kind: KindStackDeploy,
		Inputs: []string{"render"}, Parameters: parameters,
	}))
	return b
}

func TestParameterBinder_UnresolvedPlaceholder(t *testing.T) {
	// A deploy action declaring a parameter with no matching binding fails
	// at build time, before any deployment request exists.
	b := deployBuilder(t, "codeLocation")

	def, err := b.Build()
	assert.Nil(t, def)

	var unresolved *UnresolvedParameterError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "deploy", unresolved.Action)
	assert.Equal(t, "codeLocation", unresolved.Parameter)
	assert.False(t, unresolved.Bound)
}

func TestParameterBinder_BindingForUndeclaredParameter(t *testing.T) {
	b := deployBuilder(t)
	require.NoError(t, b.BindParameter("deploy", "surprise", "render", AttributeBucketName))

	_, err := b.Build()

	var unresolved *UnresolvedParameterError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "surprise", unresolved.Parameter)
	assert.True(t, unresolved.Bound)
}

func TestParameterBinder_BindingForUnknownAction(t *testing.T) {
	// A misspelled action ID must fail the build, not drop the binding.
	b := deployBuilder(t, "CodeBucket")
	require.NoError(t, b.BindParameter("depoly", "CodeBucket", "render", AttributeBucketName))

	def, err := b.Build()
	assert.Nil(t, def)
	assert.ErrorContains(t, err, `references unknown action "depoly"`)
}

func TestParameterBinder_BindingForNonStackDeployAction(t *testing.T) {
	b := deployBuilder(t, "CodeBucket")
	require.NoError(t, b.BindParameter("checkout", "CodeBucket", "render", AttributeBucketName))

	_, err := b.Build()
	assert.ErrorContains(t, err, `action "checkout" is not a stackDeploy action`)
}

func TestParameterBinder_DuplicateBinding(t *testing.T) {
	b := deployBuilder(t, "CodeBucket")
	require.NoError(t, b.BindParameter("deploy", "CodeBucket", "render", AttributeBucketName))

	err := b.BindParameter("deploy", "CodeBucket", "render", AttributeObjectKey)

	var dup *DuplicateBindingError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "deploy", dup.Action)
	assert.Equal(t, "CodeBucket", dup.Parameter)
}

func TestParameterBinder_UnknownAttribute(t *testing.T) {
	b := deployBuilder(t, "CodeBucket")
	err := b.BindParameter("deploy", "CodeBucket", "render", ArtifactAttribute("ETag"))
	assert.ErrorContains(t, err, "unknown artifact attribute")
}

func TestParameterBinder_BindingMustReferenceConsumedArtifact(t *testing.T) {
	b := deployBuilder(t, "CodeBucket")
	require.NoError(t, b.BindParameter("deploy", "CodeBucket", "source", AttributeBucketName))

	_, err := b.Build()
	assert.ErrorContains(t, err, "does not consume")
}

func TestParameterBinder_ResolvedMapMatchesDeclaredSet(t *testing.T) {
	b := deployBuilder(t, "CodeBucket", "CodeKey")
	require.NoError(t, b.BindParameter("deploy", "CodeBucket", "render", AttributeBucketName))
	require.NoError(t, b.BindParameter("deploy", "CodeKey", "render", AttributeObjectKey))

	def, err := b.Build()
	require.NoError(t, err)

	params := def.Parameters("deploy")
	assert.Equal(t, map[string]string{
		"CodeBucket": `{"Fn::GetArtifactAtt":["render","BucketName"]}`,
		"CodeKey":    `{"Fn::GetArtifactAtt":["render","ObjectKey"]}`,
	}, params)

	// The returned map is a copy; mutating it must not leak back.
	params["CodeBucket"] = "tampered"
	assert.NotEqual(t, "tampered", def.Parameters("deploy")["CodeBucket"])
}

func TestParameterBinder_ParametersOnlyOnStackDeploy(t *testing.T) {
	b := NewBuilder("test")
	b.DeclareArtifact("source")
	require.NoError(t, b.AddStage("Build"))
	require.NoError(t, b.AddAction(Action{
		ID: "build", Stage: "Build", RunOrder: 1, Kind: KindBuild,
		Outputs: []string{"source"}, Parameters: []string{"Oops"},
	}))

	_, err := b.Build()
	assert.ErrorContains(t, err, "only stackDeploy actions declare parameters")
}
