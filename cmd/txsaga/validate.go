package main

import (
	"context"
	"fmt"
	"os"

	"github.com/flowforge/txsaga/internal/fancy"
	"github.com/flowforge/txsaga/internal/flow"
	"github.com/urfave/cli/v3"
)

var validateCmd = &cli.Command{
	Name:  "validate",
	Usage: "Compile a TOML flow definition and render its structure",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    "tree",
			Aliases: []string{"t"},
			Usage:   "Render the compiled DAG as a tree",
		},
	},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		if cmd.Args().Len() < 1 {
			return cli.Exit("flow file path required", 1)
		}
		path := cmd.Args().Get(0)

		source, err := os.ReadFile(path)
		if err != nil {
			return cli.Exit(fmt.Errorf("failed to read flow file %s: %w", path, err), 1)
		}

		dag, err := flow.LoadTOML(source)
		if err != nil {
			return cli.Exit(fmt.Errorf("failed to compile flow: %w", err), 1)
		}

		fmt.Printf("%s: valid (%d steps, %d root steps)\n", path, len(dag.Nodes), len(dag.RootChildren))

		if cmd.Bool("tree") {
			fmt.Println(renderFlowTree(dag))
		}
		return nil
	},
}

// renderFlowTree renders a compiled DAG's static structure, depth-first
// starting from its root-layer nodes. Labels carry action ids only; no node
// state coloring is applied.
func renderFlowTree(dag *flow.DAG) string {
	root := fancy.FlowTree(dag.Name)
	for _, idx := range dag.RootChildren {
		root.Tree().Child(renderNode(dag, idx).Tree())
	}
	return root.Tree().String()
}

func renderNode(dag *flow.DAG, idx int) *fancy.ComponentTree {
	node := dag.Nodes[idx]
	label := fancy.ActionText(node.Action.Action)
	branch := fancy.NewComponentTree(label)
	for _, childIdx := range node.Children {
		branch.Tree().Child(renderNode(dag, childIdx).Tree())
	}
	return branch
}
