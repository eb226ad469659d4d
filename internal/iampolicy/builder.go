// Package iampolicy synthesizes minimal permission sets for pipeline
// execution identities. A Builder accumulates deduplicated statements,
// enforces the least-privilege invariant (no unscoped resource wildcard on a
// mutating action), and produces an immutable RoleDefinition that renders to
// an IAM policy document.
package iampolicy

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Effect is a statement effect.
type Effect string

const (
	EffectAllow Effect = "Allow"
	EffectDeny  Effect = "Deny"
)

// Statement grants or denies a set of IAM actions on a set of resources.
type Statement struct {
	Effect    Effect   `json:"Effect"`
	Actions   []string `json:"Action"`
	Resources []string `json:"Resource"`
}

// RoleDefinition is the minimal permission grant set bound to one execution
// identity, plus the service principal allowed to assume it.
type RoleDefinition struct {
	RoleName   string
	Principal  string
	Statements []Statement
}

// OverBroadGrantError reports a statement granting a mutating action on a
// resource pattern that is not scoped: either the bare "*", or a wildcard
// placed anywhere but the trailing segment of the ARN.
type OverBroadGrantError struct {
	Role     string
	Action   string
	Resource string
}

func (e *OverBroadGrantError) Error() string {
	return fmt.Sprintf("role %q: mutating action %q granted on unscoped resource %q", e.Role, e.Action, e.Resource)
}

// Builder accumulates statements for one role. Statements are additive only;
// two grants with identical (effect, actions, resources) collapse to one.
type Builder struct {
	roleName   string
	principal  string
	statements []Statement
	seen       map[string]bool
}

// NewBuilder returns a builder for the named role, assumable by the given
// service principal (e.g. "codebuild.amazonaws.com").
func NewBuilder(roleName, principal string) *Builder {
	return &Builder{roleName: roleName, principal: principal, seen: map[string]bool{}}
}

// Grant adds a statement. Actions and resources are copied and sorted so the
// resulting definition is independent of call-site ordering.
func (b *Builder) Grant(effect Effect, actions, resources []string) error {
	if len(actions) == 0 || len(resources) == 0 {
		return fmt.Errorf("role %q: grant requires at least one action and one resource", b.roleName)
	}

	actions = slices.Sorted(slices.Values(actions))
	resources = slices.Sorted(slices.Values(resources))

	if effect == EffectAllow {
		for _, action := range actions {
			if !mutating(action) {
				continue
			}
			for _, resource := range resources {
				if unscoped(resource) {
					return &OverBroadGrantError{Role: b.roleName, Action: action, Resource: resource}
				}
			}
		}
	}

	fingerprint := string(effect) + "|" + strings.Join(actions, ",") + "|" + strings.Join(resources, ",")
	if b.seen[fingerprint] {
		return nil
	}
	b.seen[fingerprint] = true
	b.statements = append(b.statements, Statement{Effect: effect, Actions: actions, Resources: resources})
	return nil
}

// Definition returns the accumulated role as an immutable value.
func (b *Builder) Definition() RoleDefinition {
	statements := make([]Statement, len(b.statements))
	for i, s := range b.statements {
		statements[i] = Statement{
			Effect:    s.Effect,
			Actions:   slices.Clone(s.Actions),
			Resources: slices.Clone(s.Resources),
		}
	}
	return RoleDefinition{RoleName: b.roleName, Principal: b.principal, Statements: statements}
}

// readOnlyVerbPrefixes lists the IAM verb prefixes that never mutate state.
// Anything else is treated as mutating for the wildcard-scoping rule.
var readOnlyVerbPrefixes = []string{"Get", "List", "Describe", "Head"}

func mutating(action string) bool {
	_, verb, ok := strings.Cut(action, ":")
	if !ok {
		return true
	}
	for _, prefix := range readOnlyVerbPrefixes {
		if strings.HasPrefix(verb, prefix) {
			return false
		}
	}
	return true
}

// unscoped reports whether a resource pattern is too broad for a mutating
// action: the bare "*", or a wildcard that appears before the trailing
// segment (an enumerable-identifier wildcard at the end is fine, e.g. all
// distributions within one account).
func unscoped(resource string) bool {
	if resource == "*" {
		return true
	}
	idx := strings.IndexByte(resource, '*')
	if idx < 0 {
		return false
	}
	return strings.ContainsAny(resource[idx:], ":/")
}

type policyDocument struct {
	Version   string      `json:"Version"`
	Statement []Statement `json:"Statement"`
}

// Document renders the role's statements as an IAM policy document.
func (r RoleDefinition) Document() (string, error) {
	doc := policyDocument{Version: "2012-10-17", Statement: r.Statements}
	buf, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal policy document for role %s: %w", r.RoleName, err)
	}
	return string(buf), nil
}

// TrustPolicy renders the assume-role policy allowing the role's service
// principal to assume it.
func (r RoleDefinition) TrustPolicy() string {
	return fmt.Sprintf(`{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Effect": "Allow",
      "Principal": {
        "Service": %q
      },
      "Action": "sts:AssumeRole"
    }
  ]
}`, r.Principal)
}
