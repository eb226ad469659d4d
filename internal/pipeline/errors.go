package pipeline

import "fmt"

// Configuration errors are raised while the definition is being built,
// before any provisioning request is issued. Each carries enough detail to
// locate the offending declaration without consulting the engine's logs.

// CycleError reports an artifact consumed at or before the point where it is
// produced, which would deadlock the declared topology.
type CycleError struct {
	Artifact string
	Producer string
	Consumer string
	Stage    string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("artifact %q is consumed by action %q (stage %q) at or before its producer %q",
		e.Artifact, e.Consumer, e.Stage, e.Producer)
}

// DuplicateProducerError reports a second action claiming to produce an
// artifact that already has a producer.
type DuplicateProducerError struct {
	Artifact string
	Existing string
	Action   string
}

func (e *DuplicateProducerError) Error() string {
	return fmt.Sprintf("artifact %q already produced by action %q, cannot also be produced by %q",
		e.Artifact, e.Existing, e.Action)
}

// UndeclaredArtifactError reports an action referencing an artifact name that
// was never declared on the builder.
type UndeclaredArtifactError struct {
	Artifact string
	Action   string
}

func (e *UndeclaredArtifactError) Error() string {
	return fmt.Sprintf("action %q references undeclared artifact %q", e.Action, e.Artifact)
}

// MissingProducerError reports an artifact that is consumed but never
// produced by any action.
type MissingProducerError struct {
	Artifact string
	Consumer string
}

func (e *MissingProducerError) Error() string {
	return fmt.Sprintf("artifact %q consumed by action %q has no producer", e.Artifact, e.Consumer)
}

// UnresolvedParameterError reports a mismatch between a stackDeploy action's
// declared placeholder parameters and its bindings: either a placeholder with
// no binding, or a binding for a parameter the action never declared.
type UnresolvedParameterError struct {
	Action    string
	Parameter string

	// Bound is true when a binding exists for an undeclared parameter.
	Bound bool
}

func (e *UnresolvedParameterError) Error() string {
	if e.Bound {
		return fmt.Sprintf("action %q: binding for undeclared parameter %q", e.Action, e.Parameter)
	}
	return fmt.Sprintf("action %q: parameter %q declared with no matching binding", e.Action, e.Parameter)
}

// DuplicateBindingError reports a second binding for the same
// (action, parameter) pair. Bindings resolve exactly once.
type DuplicateBindingError struct {
	Action    string
	Parameter string
}

func (e *DuplicateBindingError) Error() string {
	return fmt.Sprintf("action %q: parameter %q is already bound", e.Action, e.Parameter)
}
