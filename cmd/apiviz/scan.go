package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/apiviz/apiviz-go/internal/pyscan"
)

// scanCmd runs the Python scanner directly, skipping project detection.
// Useful when a FastAPI app lives inside a mixed repo that detects as
// something else.
var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Run the Python route scanner on a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "."
		if len(args) > 0 {
			path = args[0]
		}
		eps := pyscan.NewAnalyzer().AnalyzeProject(context.Background(), path)
		logger.WithField("routes", len(eps)).Debug("Python scan complete")
		return printJSON(eps)
	},
}
