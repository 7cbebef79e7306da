package main

import (
	"github.com/spf13/cobra"

	"github.com/apiviz/apiviz-go/internal/detect"
)

var detectCmd = &cobra.Command{
	Use:   "detect [path]",
	Short: "Classify a directory as nextjs, node, fastapi, python or unknown",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "."
		if len(args) > 0 {
			path = args[0]
		}
		return printJSON(detect.Detect(path))
	},
}
