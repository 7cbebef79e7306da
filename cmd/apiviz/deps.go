package main

import (
	"github.com/spf13/cobra"

	"github.com/apiviz/apiviz-go/internal/config"
	"github.com/apiviz/apiviz-go/internal/graph"
	"github.com/apiviz/apiviz-go/internal/registry"
)

var depsCmd = &cobra.Command{
	Use:   "deps [path]",
	Short: "Build the file-level dependency graph for a project",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDeps,
}

func runDeps(cmd *cobra.Command, args []string) error {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	root := graph.DiscoverRoot(path)
	logger.WithField("root", root).Debug("Building dependency graph")

	builder := graph.NewBuilder(registry.NewDefault(), config.Load(root))
	g, err := builder.Build(path, root)
	if err != nil {
		return err
	}
	logger.WithField("nodes", len(g.Nodes)).WithField("edges", len(g.Edges)).
		Debug("Graph built")
	return printJSON(g)
}
