package pipeline

import (
	"fmt"
	"maps"
	"slices"
)

// Builder accumulates stages, actions, artifact declarations, and parameter
// bindings, then validates the whole topology in Build. The builder is the
// only mutable surface; the Definition it returns is a detached value and
// never changes after Build.
type Builder struct {
	name       string
	stages     []Stage
	stageIndex map[string]int
	actions    map[string]*Action
	graph      *ArtifactGraph
	binder     *ParameterBinder
}

// NewBuilder returns a builder for a pipeline with the given name.
func NewBuilder(name string) *Builder {
	return &Builder{
		name:       name,
		stageIndex: map[string]int{},
		actions:    map[string]*Action{},
		graph:      NewArtifactGraph(),
		binder:     NewParameterBinder(),
	}
}

// DeclareArtifact registers an artifact name for use in action inputs and
// outputs.
func (b *Builder) DeclareArtifact(name string) {
	b.graph.Declare(name)
}

// AddStage appends a stage. Stages execute strictly in the order they are
// added; the next stage's first level may not begin before the prior stage's
// last level completes.
func (b *Builder) AddStage(name string) error {
	if _, ok := b.stageIndex[name]; ok {
		return fmt.Errorf("stage %q already added", name)
	}
	b.stageIndex[name] = len(b.stages)
	b.stages = append(b.stages, Stage{Name: name})
	return nil
}

// AddAction places an action in its stage and attaches its artifact edges to
// the graph. The action's stage must exist and its runOrder must be positive.
func (b *Builder) AddAction(a Action) error {
	idx, ok := b.stageIndex[a.Stage]
	if !ok {
		return fmt.Errorf("action %q references unknown stage %q", a.ID, a.Stage)
	}
	if a.ID == "" {
		return fmt.Errorf("stage %q: action requires an ID", a.Stage)
	}
	if _, ok := b.actions[a.ID]; ok {
		return fmt.Errorf("action %q already added", a.ID)
	}
	if a.RunOrder < 1 {
		return fmt.Errorf("action %q: runOrder must be a positive integer, got %d", a.ID, a.RunOrder)
	}

	action := a // detach from the caller's value
	if err := b.graph.Attach(&action, idx); err != nil {
		return err
	}
	b.actions[a.ID] = &action
	b.stages[idx].Actions = append(b.stages[idx].Actions, &action)
	return nil
}

// BindParameter defers resolution of a stackDeploy placeholder parameter to
// an attribute of a consumed artifact. Resolution happens once, in Build.
func (b *Builder) BindParameter(actionID, parameter, artifact string, attribute ArtifactAttribute) error {
	return b.binder.Bind(actionID, parameter, artifact, attribute)
}

// Build validates the topology and returns the immutable Definition. All
// configuration errors (cycles, missing producers, unresolved parameters)
// surface here, before any provisioning request can be issued.
func (b *Builder) Build() (*Definition, error) {
	stageOf := func(actionID string) string {
		if a, ok := b.actions[actionID]; ok {
			return a.Stage
		}
		return ""
	}
	if err := b.graph.validate(stageOf); err != nil {
		return nil, err
	}

	lookup := func(id string) (*Action, bool) {
		a, ok := b.actions[id]
		return a, ok
	}
	if err := b.binder.validateTargets(lookup); err != nil {
		return nil, err
	}

	parameters := map[string]map[string]string{}
	for _, level := range levels(b.stages) {
		for _, a := range level.Actions {
			if a.Kind != KindStackDeploy {
				if len(a.Parameters) > 0 {
					return nil, fmt.Errorf("action %q: only stackDeploy actions declare parameters", a.ID)
				}
				continue
			}
			resolved, err := b.binder.resolve(a)
			if err != nil {
				return nil, err
			}
			parameters[a.ID] = resolved
		}
	}

	// Detach the stage and action collections so later builder mutations
	// cannot reach the returned value.
	stages := make([]Stage, len(b.stages))
	for i, stage := range b.stages {
		stages[i] = Stage{Name: stage.Name, Actions: slices.Clone(stage.Actions)}
	}

	return &Definition{
		name:       b.name,
		stages:     stages,
		actions:    maps.Clone(b.actions),
		artifacts:  b.graph.snapshot(),
		parameters: parameters,
	}, nil
}

// Definition is the validated, immutable pipeline topology handed to the
// execution engine. The first action is triggered externally by a
// version-control webhook; updating the pipeline definition itself never
// re-triggers an execution (RestartExecutionOnUpdate always reports false).
type Definition struct {
	name       string
	stages     []Stage
	actions    map[string]*Action
	artifacts  []Artifact
	parameters map[string]map[string]string
}

// Name returns the pipeline name.
func (d *Definition) Name() string { return d.name }

// Stages returns the ordered stage list.
func (d *Definition) Stages() []Stage { return d.stages }

// Levels returns the ordered execution levels (see Level).
func (d *Definition) Levels() []Level { return levels(d.stages) }

// Artifacts returns every declared artifact, sorted by name, with consumers
// in deterministic order.
func (d *Definition) Artifacts() []Artifact { return d.artifacts }

// Action returns the action with the given ID.
func (d *Definition) Action(id string) (*Action, bool) {
	a, ok := d.actions[id]
	return a, ok
}

// Parameters returns the resolved parameter map for a stackDeploy action.
// The returned map is a copy.
func (d *Definition) Parameters(actionID string) map[string]string {
	return maps.Clone(d.parameters[actionID])
}

// RestartExecutionOnUpdate reports whether pushing an updated definition
// re-triggers an execution. It never does: executions start only from the
// source webhook.
func (d *Definition) RestartExecutionOnUpdate() bool { return false }
