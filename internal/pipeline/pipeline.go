// Package pipeline models the topology of a continuous-deployment pipeline:
// named artifacts flowing between ordered stages and parallel actions,
// barrier synchronization via runOrder levels, and deferred parameter
// bindings resolved once at construction time. The package builds an
// immutable Definition that is handed to the execution engine; all runtime
// state (run status, logs, retries) belongs to the engine, not to this model.
package pipeline

// Kind identifies the unit of work an action performs.
type Kind string

const (
	KindCheckout     Kind = "checkout"
	KindBuild        Kind = "build"
	KindObjectDeploy Kind = "objectDeploy"
	KindStackDeploy  Kind = "stackDeploy"
	KindInvalidate   Kind = "invalidate"
)

// Artifact is a named, immutable unit of build output. Exactly one action
// produces it; any number of later actions may consume it.
type Artifact struct {
	Name      string
	Producer  string
	Consumers []string
}

// Action is one unit of work within a stage. RunOrder is a positive integer
// defining the barrier level within the stage: all actions at a level run
// concurrently and must all succeed before the next level starts.
type Action struct {
	ID          string
	Stage       string
	RunOrder    int
	Kind        Kind
	Inputs      []string
	ExtraInputs []string
	Outputs     []string

	// Parameters lists the placeholder parameter names a stackDeploy action
	// declares. Each must be bound via Builder.BindParameter before Build.
	Parameters []string

	// RoleName names the execution identity the action runs under, when it
	// needs one beyond the engine's default.
	RoleName string

	// Config carries opaque engine configuration (buildspec path, project
	// name, target bucket, stack name). The model never interprets it.
	Config map[string]string
}

// consumes returns every artifact the action reads, primary inputs first.
func (a *Action) consumes() []string {
	out := make([]string, 0, len(a.Inputs)+len(a.ExtraInputs))
	out = append(out, a.Inputs...)
	out = append(out, a.ExtraInputs...)
	return out
}

// Stage is a sequential phase of the pipeline. Stage order is the sole
// cross-stage dependency: a stage starts only after the prior stage fully
// completes, and no artifact may cross stages out of order.
type Stage struct {
	Name    string
	Actions []*Action
}
