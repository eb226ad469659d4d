package pipeline

import (
	"cmp"
	"slices"
)

// Level is one barrier group of the execution schedule: every action in a
// level runs concurrently, and all of them must succeed before the next
// level starts. On failure, siblings at the failed level run to completion,
// then the barrier halts the stage; no later level or stage starts. There is
// no partial-success advancement and no retry at this layer.
type Level struct {
	Stage    string
	RunOrder int
	Actions  []*Action
}

// levels groups actions by (stage index, runOrder) into the ordered sequence
// of execution levels: stages strictly sequential, runOrder ascending within
// a stage. Actions within a level are sorted by ID for deterministic output;
// their relative order carries no meaning.
func levels(stages []Stage) []Level {
	var out []Level
	for _, stage := range stages {
		byOrder := map[int][]*Action{}
		for _, a := range stage.Actions {
			byOrder[a.RunOrder] = append(byOrder[a.RunOrder], a)
		}
		orders := make([]int, 0, len(byOrder))
		for order := range byOrder {
			orders = append(orders, order)
		}
		slices.Sort(orders)
		for _, order := range orders {
			actions := byOrder[order]
			slices.SortFunc(actions, func(a, b *Action) int { return cmp.Compare(a.ID, b.ID) })
			out = append(out, Level{Stage: stage.Name, RunOrder: order, Actions: actions})
		}
	}
	return out
}
