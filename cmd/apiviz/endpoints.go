package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/apiviz/apiviz-go/internal/task"
)

var endpointsCmd = &cobra.Command{
	Use:   "endpoints [path]",
	Short: "Extract API endpoints with schemas and dependencies",
	Long: `Detects the project type under [path] and runs the matching route
analyzer: the in-process TypeScript extractor for Next.js/Node projects, the
Python scanner for FastAPI projects.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEndpoints,
}

var endpointsFile string

func init() {
	endpointsCmd.Flags().StringVar(&endpointsFile, "file", "", "analyze a single handler file")
}

func runEndpoints(cmd *cobra.Command, args []string) error {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}

	dispatcher := task.NewDispatcher()
	req := task.Request{
		Type:    task.TypeAPIEndpoints,
		Payload: task.Payload{Path: path},
	}
	if endpointsFile != "" {
		req.Type = task.TypeRoute
		req.Payload.File = endpointsFile
	}

	resp := dispatcher.Dispatch(context.Background(), req)
	return printJSON(resp.Results)
}
