package flow

import "fmt"

// Compile validates a flow definition and turns it into a DAG. It rejects
// duplicate action ids, a missing or empty root, next references to unknown
// actions, and cycles.
func Compile(def *Definition) (*DAG, error) {
	if def == nil {
		return nil, invalidFlow("definition is nil")
	}
	if len(def.Root) == 0 {
		return nil, invalidFlow("flow has no root steps")
	}

	actionIndex := make(map[string]int, len(def.Steps))
	nodes := make([]*Node, len(def.Steps))
	for i, step := range def.Steps {
		if step.Action == "" {
			return nil, invalidFlow(fmt.Sprintf("step at index %d has an empty action id", i))
		}
		if _, dup := actionIndex[step.Action]; dup {
			return nil, invalidFlow(fmt.Sprintf("duplicate action id %q", step.Action))
		}
		actionIndex[step.Action] = i
		nodes[i] = &Node{Action: step}
	}

	for _, rootAction := range def.Root {
		idx, ok := actionIndex[rootAction]
		if !ok {
			return nil, invalidFlow(fmt.Sprintf("root references unknown action %q", rootAction))
		}
		_ = idx
	}

	for i, step := range def.Steps {
		for _, next := range step.Next {
			childIdx, ok := actionIndex[next]
			if !ok {
				return nil, invalidFlow(
					fmt.Sprintf("step %q references unknown next action %q", step.Action, next),
				)
			}
			nodes[i].Children = append(nodes[i].Children, childIdx)
			nodes[childIdx].Parents = append(nodes[childIdx].Parents, i)
		}
	}

	rootChildren := make([]int, 0, len(def.Root))
	for _, rootAction := range def.Root {
		rootChildren = append(rootChildren, actionIndex[rootAction])
	}

	if err := assignDepths(nodes, rootChildren); err != nil {
		return nil, err
	}
	assignSiblings(nodes, rootChildren)

	return &DAG{
		Name:         def.Name,
		Nodes:        nodes,
		RootChildren: rootChildren,
		actionIndex:  actionIndex,
	}, nil
}

// assignDepths computes each node's longest-path distance from the root via
// Kahn's algorithm, detecting cycles along the way.
func assignDepths(nodes []*Node, rootChildren []int) error {
	indegree := make([]int, len(nodes))
	for _, n := range nodes {
		for _, childIdx := range n.Children {
			indegree[childIdx]++
		}
	}

	queue := make([]int, 0, len(rootChildren))
	for _, idx := range rootChildren {
		nodes[idx].Depth = 0
		queue = append(queue, idx)
	}

	visited := 0
	for len(queue) > 0 {
		idx := queue[0]
		queue = queue[1:]
		visited++

		for _, childIdx := range nodes[idx].Children {
			if d := nodes[idx].Depth + 1; d > nodes[childIdx].Depth {
				nodes[childIdx].Depth = d
			}
			indegree[childIdx]--
			if indegree[childIdx] == 0 {
				queue = append(queue, childIdx)
			}
		}
	}

	if visited != len(nodes) {
		return invalidFlow("flow contains a cycle or an unreachable step")
	}
	return nil
}

// assignSiblings groups nodes dispatched in the same traversal pass: nodes
// sharing at least one parent, or root-layer nodes with each other.
func assignSiblings(nodes []*Node, rootChildren []int) {
	groupFor := func(idx int) []int {
		if len(nodes[idx].Parents) == 0 {
			return rootChildren
		}
		seen := make(map[int]bool)
		group := make([]int, 0)
		for _, parentIdx := range nodes[idx].Parents {
			for _, siblingIdx := range nodes[parentIdx].Children {
				if !seen[siblingIdx] {
					seen[siblingIdx] = true
					group = append(group, siblingIdx)
				}
			}
		}
		return group
	}

	for i, n := range nodes {
		group := groupFor(i)
		siblings := make([]int, 0, len(group))
		for _, idx := range group {
			if idx != i {
				siblings = append(siblings, idx)
			}
		}
		n.Siblings = siblings
	}
}
