package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/apiviz/apiviz-go/internal/logging"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	verbose bool
	logFile string
	logger  *logrus.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "apiviz",
	Short: "API Viz - dependency graphs and route analysis for web projects",
	Long: `API Viz analyzes a project's source tree and reports its file-level
dependency graph and the API routes it exposes, including request/response
schemas and per-route dependencies. Results are JSON on stdout; diagnostics
go to stderr.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = logrus.New()
		logger.SetOutput(os.Stderr)
		if verbose {
			logger.SetLevel(logrus.DebugLevel)
		} else {
			logger.SetLevel(logrus.WarnLevel)
		}

		level := logging.WARN
		if verbose {
			level = logging.DEBUG
		}
		if err := logging.Initialize(logging.Config{Level: level, OutputFile: logFile}); err != nil {
			logger.WithError(err).Warn("Failed to initialize analysis log")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write diagnostics to this file")

	rootCmd.SetVersionTemplate(`API Viz {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(depsCmd)
	rootCmd.AddCommand(endpointsCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(watchCmd)
}

// printJSON writes one result document to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
