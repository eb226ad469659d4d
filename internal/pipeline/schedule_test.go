package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevels_BarrierOrdering(t *testing.T) {
	// One source action, two build actions at runOrder 10, one build action
	// at runOrder 20 consuming one of their outputs. Expected levels:
	// [checkout], [build-assets, build-templates], [build-render].
	b := NewBuilder("test")
	for _, name := range []string{"source", "templates", "assets", "render"} {
		b.DeclareArtifact(name)
	}
	require.NoError(t, b.AddStage("Sources"))
	require.NoError(t, b.AddStage("Build"))

	actions := []Action{
		{ID: "checkout", Stage: "Sources", RunOrder: 1, Kind: KindCheckout, Outputs: []string{"source"}},
		{ID: "build-templates", Stage: "Build", RunOrder: 10, Kind: KindBuild, Inputs: []string{"source"}, Outputs: []string{"templates"}},
		{ID: "build-assets", Stage: "Build", RunOrder: 10, Kind: KindBuild, Inputs: []string{"source"}, Outputs: []string{"assets"}},
		{ID: "build-render", Stage: "Build", RunOrder: 20, Kind: KindBuild, Inputs: []string{"source"}, ExtraInputs: []string{"assets"}, Outputs: []string{"render"}},
	}
	for _, a := range actions {
		require.NoError(t, b.AddAction(a))
	}

	def, err := b.Build()
	require.NoError(t, err)

	levels := def.Levels()
	require.Len(t, levels, 3)

	assert.Equal(t, "Sources", levels[0].Stage)
	assert.Equal(t, []string{"checkout"}, actionIDs(levels[0]))

	assert.Equal(t, "Build", levels[1].Stage)
	assert.Equal(t, 10, levels[1].RunOrder)
	assert.Equal(t, []string{"build-assets", "build-templates"}, actionIDs(levels[1]))

	assert.Equal(t, "Build", levels[2].Stage)
	assert.Equal(t, 20, levels[2].RunOrder)
	assert.Equal(t, []string{"build-render"}, actionIDs(levels[2]))
}

func TestLevels_StagesStrictlySequential(t *testing.T) {
	def := buildValidDefinition(t)

	// Regardless of runOrder values, every level of a stage must come after
	// every level of all earlier stages.
	stageIndex := map[string]int{}
	for idx, stage := range def.Stages() {
		stageIndex[stage.Name] = idx
	}

	levels := def.Levels()
	for i := 1; i < len(levels); i++ {
		prev, curr := levels[i-1], levels[i]
		if stageIndex[curr.Stage] == stageIndex[prev.Stage] {
			assert.Greater(t, curr.RunOrder, prev.RunOrder,
				"levels within stage %s must ascend", curr.Stage)
			continue
		}
		assert.Greater(t, stageIndex[curr.Stage], stageIndex[prev.Stage],
			"stage %s must follow %s", curr.Stage, prev.Stage)
	}
}

func TestLevels_RunOrderMustBePositive(t *testing.T) {
	b := NewBuilder("test")
	require.NoError(t, b.AddStage("Build"))

	err := b.AddAction(Action{ID: "bad", Stage: "Build", RunOrder: 0, Kind: KindBuild})
	assert.ErrorContains(t, err, "runOrder must be a positive integer")
}

func actionIDs(level Level) []string {
	ids := make([]string, 0, len(level.Actions))
	for _, a := range level.Actions {
		ids = append(ids, a.ID)
	}
	return ids
}
