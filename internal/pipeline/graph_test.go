package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactGraph_DuplicateProducer(t *testing.T) {
	b := NewBuilder("test")
	b.DeclareArtifact("assets")
	require.NoError(t, b.AddStage("Build"))

	err := b.AddAction(Action{
		ID: "build-a", Stage: "Build", RunOrder: 10, Kind: KindBuild,
		Outputs: []string{"assets"},
	})
	require.NoError(t, err)

	err = b.AddAction(Action{
		ID: "build-b", Stage: "Build", RunOrder: 10, Kind: KindBuild,
		Outputs: []string{"assets"},
	})

	var dupErr *DuplicateProducerError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "assets", dupErr.Artifact)
	assert.Equal(t, "build-a", dupErr.Existing)
	assert.Equal(t, "build-b", dupErr.Action)
}

func TestArtifactGraph_UndeclaredArtifact(t *testing.T) {
	b := NewBuilder("test")
	require.NoError(t, b.AddStage("Build"))

	err := b.AddAction(Action{
		ID: "build", Stage: "Build", RunOrder: 1, Kind: KindBuild,
		Outputs: []string{"mystery"},
	})

	var undeclared *UndeclaredArtifactError
	require.ErrorAs(t, err, &undeclared)
	assert.Equal(t, "mystery", undeclared.Artifact)
	assert.Equal(t, "build", undeclared.Action)
}

func TestArtifactGraph_CrossStageCycle(t *testing.T) {
	// An artifact consumed by an action in an earlier stage than its
	// producer must be rejected.
	b := NewBuilder("test")
	b.DeclareArtifact("render")
	require.NoError(t, b.AddStage("Deploy"))
	require.NoError(t, b.AddStage("Release"))

	require.NoError(t, b.AddAction(Action{
		ID: "deploy", Stage: "Deploy", RunOrder: 1, Kind: KindStackDeploy,
		Inputs: []string{"render"},
	}))
	require.NoError(t, b.AddAction(Action{
		ID: "produce", Stage: "Release", RunOrder: 1, Kind: KindBuild,
		Outputs: []string{"render"},
	}))

	_, err := b.Build()

	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, "render", cycleErr.Artifact)
	assert.Equal(t, "produce", cycleErr.Producer)
	assert.Equal(t, "deploy", cycleErr.Consumer)
	assert.Equal(t, "Deploy", cycleErr.Stage)
}

func TestArtifactGraph_SameLevelConsumption(t *testing.T) {
	// Equal (stage, runOrder) positions are concurrent, so consuming a
	// sibling's output is also a cycle.
	b := NewBuilder("test")
	b.DeclareArtifact("assets")
	require.NoError(t, b.AddStage("Build"))

	require.NoError(t, b.AddAction(Action{
		ID: "producer", Stage: "Build", RunOrder: 10, Kind: KindBuild,
		Outputs: []string{"assets"},
	}))
	require.NoError(t, b.AddAction(Action{
		ID: "consumer", Stage: "Build", RunOrder: 10, Kind: KindBuild,
		Inputs: []string{"assets"},
	}))

	_, err := b.Build()

	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, "assets", cycleErr.Artifact)
}

func TestArtifactGraph_MissingProducer(t *testing.T) {
	b := NewBuilder("test")
	b.DeclareArtifact("orphan")
	require.NoError(t, b.AddStage("Build"))

	require.NoError(t, b.AddAction(Action{
		ID: "consumer", Stage: "Build", RunOrder: 1, Kind: KindBuild,
		Inputs: []string{"orphan"},
	}))

	_, err := b.Build()

	var missing *MissingProducerError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "orphan", missing.Artifact)
	assert.Equal(t, "consumer", missing.Consumer)
}

func TestArtifactGraph_DeclarationOrderIrrelevant(t *testing.T) {
	// A consumer may be attached before its producer; validation runs on
	// the explicit (stage, runOrder) fields, not on declaration order.
	b := NewBuilder("test")
	b.DeclareArtifact("source")
	require.NoError(t, b.AddStage("Sources"))
	require.NoError(t, b.AddStage("Build"))

	require.NoError(t, b.AddAction(Action{
		ID: "build", Stage: "Build", RunOrder: 1, Kind: KindBuild,
		Inputs: []string{"source"},
	}))
	require.NoError(t, b.AddAction(Action{
		ID: "checkout", Stage: "Sources", RunOrder: 1, Kind: KindCheckout,
		Outputs: []string{"source"},
	}))

	_, err := b.Build()
	require.NoError(t, err)
}

func TestArtifactGraph_ProducerStrictlyBeforeEveryConsumer(t *testing.T) {
	def := buildValidDefinition(t)

	positions := map[string]position{}
	for idx, stage := range def.Stages() {
		for _, a := range stage.Actions {
			positions[a.ID] = position{stageIndex: idx, runOrder: a.RunOrder}
		}
	}

	for _, art := range def.Artifacts() {
		produced := positions[art.Producer]
		for _, consumer := range art.Consumers {
			assert.True(t, produced.strictlyBefore(positions[consumer]),
				"artifact %s: producer %s must precede consumer %s", art.Name, art.Producer, consumer)
		}
	}
}

func TestArtifactGraph_ErrorsAreConfigurationTime(t *testing.T) {
	// All graph errors come out of Build, not out of some later phase.
	b := NewBuilder("test")
	b.DeclareArtifact("a")
	require.NoError(t, b.AddStage("Build"))
	require.NoError(t, b.AddAction(Action{
		ID: "self", Stage: "Build", RunOrder: 1, Kind: KindBuild,
		Inputs: []string{"a"}, Outputs: []string{"a"},
	}))

	def, err := b.Build()
	assert.Nil(t, def)
	assert.True(t, errors.As(err, new(*CycleError)))
}

// buildValidDefinition assembles the reference topology: one source action,
// two parallel builds, a dependent render build, and two deploy actions.
func buildValidDefinition(t *testing.T) *Definition {
	t.Helper()

	b := NewBuilder("test")
	for _, name := range []string{"source", "templates", "assets", "render"} {
		b.DeclareArtifact(name)
	}
	for _, stage := range []string{"Sources", "Build", "Deploy"} {
		require.NoError(t, b.AddStage(stage))
	}

	actions := []Action{
		{ID: "checkout", Stage: "Sources", RunOrder: 1, Kind: KindCheckout, Outputs: []string{"source"}},
		{ID: "build-templates", Stage: "Build", RunOrder: 10, Kind: KindBuild, Inputs: []string{"source"}, Outputs: []string{"templates"}},
		{ID: "build-assets", Stage: "Build", RunOrder: 10, Kind: KindBuild, Inputs: []string{"source"}, Outputs: []string{"assets"}},
		{ID: "build-render", Stage: "Build", RunOrder: 20, Kind: KindBuild, Inputs: []string{"source"}, ExtraInputs: []string{"assets"}, Outputs: []string{"render"}},
		{ID: "deploy-assets", Stage: "Deploy", RunOrder: 1, Kind: KindObjectDeploy, Inputs: []string{"assets"}},
		{
			ID: "deploy-stack", Stage: "Deploy", RunOrder: 1, Kind: KindStackDeploy,
			Inputs: []string{"templates"}, ExtraInputs: []string{"render"},
			Parameters: []string{"CodeBucket", "CodeKey"},
		},
	}
	for _, a := range actions {
		require.NoError(t, b.AddAction(a))
	}

	require.NoError(t, b.BindParameter("deploy-stack", "CodeBucket", "render", AttributeBucketName))
	require.NoError(t, b.BindParameter("deploy-stack", "CodeKey", "render", AttributeObjectKey))

	def, err := b.Build()
	require.NoError(t, err)
	return def
}
