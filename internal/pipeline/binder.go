package pipeline

import (
	"cmp"
	"fmt"
	"slices"
)

// ArtifactAttribute selects which attribute of an artifact's deploy-time
// storage location a binding resolves to. The set is fixed: these are the
// only attributes the execution engine exposes on an artifact.
type ArtifactAttribute string

const (
	AttributeBucketName ArtifactAttribute = "BucketName"
	AttributeObjectKey  ArtifactAttribute = "ObjectKey"
	AttributeURL        ArtifactAttribute = "URL"
)

// ParameterBinding maps one placeholder parameter of a stackDeploy action to
// an attribute of a consumed artifact.
type ParameterBinding struct {
	ActionID  string
	Parameter string
	Artifact  string
	Attribute ArtifactAttribute
}

type bindingKey struct {
	actionID  string
	parameter string
}

// ParameterBinder accumulates deferred parameter bindings and resolves them
// exactly once, at graph-build time, into concrete parameter maps.
type ParameterBinder struct {
	bindings map[bindingKey]ParameterBinding
}

// NewParameterBinder returns an empty binder.
func NewParameterBinder() *ParameterBinder {
	return &ParameterBinder{bindings: map[bindingKey]ParameterBinding{}}
}

// Bind registers a binding for the (action, parameter) pair. A second bind
// for the same pair returns DuplicateBindingError.
func (b *ParameterBinder) Bind(actionID, parameter, artifact string, attribute ArtifactAttribute) error {
	switch attribute {
	case AttributeBucketName, AttributeObjectKey, AttributeURL:
	default:
		return fmt.Errorf("action %q: unknown artifact attribute %q for parameter %q", actionID, attribute, parameter)
	}
	key := bindingKey{actionID: actionID, parameter: parameter}
	if _, ok := b.bindings[key]; ok {
		return &DuplicateBindingError{Action: actionID, Parameter: parameter}
	}
	b.bindings[key] = ParameterBinding{
		ActionID:  actionID,
		Parameter: parameter,
		Artifact:  artifact,
		Attribute: attribute,
	}
	return nil
}

// validateTargets checks that every binding names an existing stackDeploy
// action. A binding whose action ID matches nothing (a typo, say) would
// otherwise vanish silently, since resolution only visits stackDeploy
// actions.
func (b *ParameterBinder) validateTargets(action func(id string) (*Action, bool)) error {
	keys := make([]bindingKey, 0, len(b.bindings))
	for key := range b.bindings {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, func(x, y bindingKey) int {
		if c := cmp.Compare(x.actionID, y.actionID); c != 0 {
			return c
		}
		return cmp.Compare(x.parameter, y.parameter)
	})

	for _, key := range keys {
		a, ok := action(key.actionID)
		if !ok {
			return fmt.Errorf("binding for parameter %q references unknown action %q", key.parameter, key.actionID)
		}
		if a.Kind != KindStackDeploy {
			return fmt.Errorf("binding for parameter %q: action %q is not a stackDeploy action", key.parameter, key.actionID)
		}
	}
	return nil
}

// resolve produces the concrete parameter map for one stackDeploy action.
// The resolved key set must equal the action's declared placeholder set;
// any mismatch returns UnresolvedParameterError. Each binding must reference
// an artifact the action consumes.
//
// Values are rendered as engine artifact-attribute references, e.g.
// {"Fn::GetArtifactAtt":["render","BucketName"]}, so resolution is fully
// deterministic at build time even though the storage location itself is
// assigned when the pipeline runs.
func (b *ParameterBinder) resolve(a *Action) (map[string]string, error) {
	declared := make(map[string]bool, len(a.Parameters))
	for _, p := range a.Parameters {
		declared[p] = true
	}
	for key := range b.bindings {
		if key.actionID == a.ID && !declared[key.parameter] {
			return nil, &UnresolvedParameterError{Action: a.ID, Parameter: key.parameter, Bound: true}
		}
	}

	params := make(map[string]string, len(a.Parameters))
	for _, p := range a.Parameters {
		binding, ok := b.bindings[bindingKey{actionID: a.ID, parameter: p}]
		if !ok {
			return nil, &UnresolvedParameterError{Action: a.ID, Parameter: p}
		}
		if !slices.Contains(a.consumes(), binding.Artifact) {
			return nil, fmt.Errorf("action %q: parameter %q bound to artifact %q which the action does not consume",
				a.ID, p, binding.Artifact)
		}
		params[p] = fmt.Sprintf(`{"Fn::GetArtifactAtt":[%q,%q]}`, binding.Artifact, binding.Attribute)
	}
	return params, nil
}
