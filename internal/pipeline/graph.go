package pipeline

import (
	"maps"
	"slices"
)

// position locates an action in the pipeline's partial order.
type position struct {
	stageIndex int
	runOrder   int
}

// strictlyBefore reports whether p precedes o: an earlier stage, or an
// earlier runOrder level within the same stage. Equal positions are
// concurrent, which is not "before".
func (p position) strictlyBefore(o position) bool {
	if p.stageIndex != o.stageIndex {
		return p.stageIndex < o.stageIndex
	}
	return p.runOrder < o.runOrder
}

// ArtifactGraph tracks named artifacts, their single producer action, and
// their consumer actions. Construction is pure: the graph accumulates
// declarations and attachments, then validate checks that every consumer
// strictly follows its producer. Validation is independent of declaration
// order, so a consumer may be attached before its producer.
type ArtifactGraph struct {
	artifacts map[string]*Artifact
	positions map[string]position
}

// NewArtifactGraph returns an empty graph.
func NewArtifactGraph() *ArtifactGraph {
	return &ArtifactGraph{
		artifacts: map[string]*Artifact{},
		positions: map[string]position{},
	}
}

// Declare registers an artifact name. Declaring the same name twice is a
// no-op; only production and consumption are constrained.
func (g *ArtifactGraph) Declare(name string) {
	if _, ok := g.artifacts[name]; ok {
		return
	}
	g.artifacts[name] = &Artifact{Name: name}
}

// Attach records an action's artifact edges: each output gains the action as
// its producer, each input and extra input gains it as a consumer. Returns
// DuplicateProducerError if an output already has a producer (this also
// rejects two actions at the same level sharing an output name), and
// UndeclaredArtifactError for any reference to an unknown artifact.
func (g *ArtifactGraph) Attach(a *Action, stageIndex int) error {
	for _, name := range a.Outputs {
		art, ok := g.artifacts[name]
		if !ok {
			return &UndeclaredArtifactError{Artifact: name, Action: a.ID}
		}
		if art.Producer != "" {
			return &DuplicateProducerError{Artifact: name, Existing: art.Producer, Action: a.ID}
		}
		art.Producer = a.ID
	}
	for _, name := range a.consumes() {
		art, ok := g.artifacts[name]
		if !ok {
			return &UndeclaredArtifactError{Artifact: name, Action: a.ID}
		}
		art.Consumers = append(art.Consumers, a.ID)
	}
	g.positions[a.ID] = position{stageIndex: stageIndex, runOrder: a.RunOrder}
	return nil
}

// validate checks the producer-before-consumer invariant for every artifact.
// An artifact consumed in a stage at or before its producing stage, or at an
// equal-or-earlier runOrder within the same stage, yields a CycleError. An
// artifact consumed but never produced yields a MissingProducerError.
func (g *ArtifactGraph) validate(stageName func(actionID string) string) error {
	for _, name := range slices.Sorted(maps.Keys(g.artifacts)) {
		art := g.artifacts[name]
		if art.Producer == "" {
			if len(art.Consumers) == 0 {
				continue // declared but unused, harmless
			}
			return &MissingProducerError{Artifact: name, Consumer: art.Consumers[0]}
		}
		produced := g.positions[art.Producer]
		for _, consumer := range art.Consumers {
			if !produced.strictlyBefore(g.positions[consumer]) {
				return &CycleError{
					Artifact: name,
					Producer: art.Producer,
					Consumer: consumer,
					Stage:    stageName(consumer),
				}
			}
		}
	}
	return nil
}

// snapshot returns the graph's artifacts as a sorted, detached slice with
// consumers in deterministic order.
func (g *ArtifactGraph) snapshot() []Artifact {
	out := make([]Artifact, 0, len(g.artifacts))
	for _, name := range slices.Sorted(maps.Keys(g.artifacts)) {
		art := g.artifacts[name]
		consumers := slices.Clone(art.Consumers)
		slices.Sort(consumers)
		out = append(out, Artifact{Name: art.Name, Producer: art.Producer, Consumers: consumers})
	}
	return out
}
