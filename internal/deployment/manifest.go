package deployment

import (
	"github.com/devsky83/cra-serverless/internal/iampolicy"
)

// Manifest is the serializable form of a synthesized deployment, emitted by
// the synth command for review and diffing. Field order and slice ordering
// are deterministic: synthesizing the same configuration twice yields
// byte-identical output.
type Manifest struct {
	Pipeline                 string             `yaml:"pipeline"`
	RestartExecutionOnUpdate bool               `yaml:"restartExecutionOnUpdate"`
	Stages                   []ManifestStage    `yaml:"stages"`
	Artifacts                []ManifestArtifact `yaml:"artifacts"`
	Role                     ManifestRole       `yaml:"releaseRole"`
	Published                []ManifestEntry    `yaml:"published"`
}

type ManifestStage struct {
	Name   string          `yaml:"name"`
	Levels []ManifestLevel `yaml:"levels"`
}

type ManifestLevel struct {
	RunOrder int              `yaml:"runOrder"`
	Actions  []ManifestAction `yaml:"actions"`
}

type ManifestAction struct {
	ID          string            `yaml:"id"`
	Kind        string            `yaml:"kind"`
	Inputs      []string          `yaml:"inputs,omitempty"`
	ExtraInputs []string          `yaml:"extraInputs,omitempty"`
	Outputs     []string          `yaml:"outputs,omitempty"`
	Parameters  map[string]string `yaml:"parameters,omitempty"`
	Role        string            `yaml:"role,omitempty"`
	Config      map[string]string `yaml:"config,omitempty"`
}

type ManifestArtifact struct {
	Name      string   `yaml:"name"`
	Producer  string   `yaml:"producer"`
	Consumers []string `yaml:"consumers,omitempty"`
}

type ManifestRole struct {
	Name       string               `yaml:"name"`
	Principal  string               `yaml:"principal"`
	Statements []iampolicy.Statement `yaml:"statements"`
}

type ManifestEntry struct {
	KeyPath string `yaml:"keyPath"`
	Value   string `yaml:"value"`
}

// Manifest renders the deployment.
func (d *Deployment) Manifest() Manifest {
	m := Manifest{
		Pipeline:                 d.Definition.Name(),
		RestartExecutionOnUpdate: d.Definition.RestartExecutionOnUpdate(),
		Role: ManifestRole{
			Name:       d.ReleaseRole.RoleName,
			Principal:  d.ReleaseRole.Principal,
			Statements: d.ReleaseRole.Statements,
		},
	}

	for _, stage := range d.Definition.Stages() {
		ms := ManifestStage{Name: stage.Name}
		for _, level := range d.Definition.Levels() {
			if level.Stage != stage.Name {
				continue
			}
			ml := ManifestLevel{RunOrder: level.RunOrder}
			for _, a := range level.Actions {
				ml.Actions = append(ml.Actions, ManifestAction{
					ID:          a.ID,
					Kind:        string(a.Kind),
					Inputs:      a.Inputs,
					ExtraInputs: a.ExtraInputs,
					Outputs:     a.Outputs,
					Parameters:  d.Definition.Parameters(a.ID),
					Role:        a.RoleName,
					Config:      a.Config,
				})
			}
			ms.Levels = append(ms.Levels, ml)
		}
		m.Stages = append(m.Stages, ms)
	}

	for _, art := range d.Definition.Artifacts() {
		m.Artifacts = append(m.Artifacts, ManifestArtifact{
			Name:      art.Name,
			Producer:  art.Producer,
			Consumers: art.Consumers,
		})
	}

	for _, entry := range d.Published.Entries() {
		m.Published = append(m.Published, ManifestEntry{KeyPath: entry.KeyPath, Value: entry.Value})
	}

	return m
}
