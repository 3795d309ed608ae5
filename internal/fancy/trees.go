package fancy

import (
	"github.com/charmbracelet/lipgloss/tree"
)

// ComponentTree wraps a lipgloss tree with common styling.
type ComponentTree struct {
	tree *tree.Tree
}

// NewComponentTree creates a new component tree with appropriate styling.
func NewComponentTree(title string) *ComponentTree {
	t := tree.New()
	t.EnumeratorStyle(BranchStyle)
	t.Enumerator(tree.RoundedEnumerator)

	t.Root(title)

	return &ComponentTree{
		tree: t,
	}
}

// Tree returns the underlying tree.
func (c *ComponentTree) Tree() *tree.Tree {
	return c.tree
}

// AddBranch adds a new branch with the given text.
func (c *ComponentTree) AddBranch(text string) *tree.Tree {
	return c.tree.Child(text)
}

// AddChild adds a child node to the root branch.
func (c *ComponentTree) AddChild(child interface{}) *tree.Tree {
	return c.tree.Child(child)
}

// FlowTree creates a tree rooted at a flow name, for rendering a compiled
// DAG's structure.
func FlowTree(flowName string) *ComponentTree {
	return NewComponentTree(RootStyle.Render(flowName))
}

// NodeTree creates a tree branch for a single DAG node, labeled with its
// action id and colored by its current lifecycle state.
func NodeTree(actionID, state string) *ComponentTree {
	label := NodeStateText(state, ActionText(actionID))
	return NewComponentTree(label)
}
