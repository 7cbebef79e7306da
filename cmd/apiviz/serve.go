package main

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/apiviz/apiviz-go/internal/task"
)

// serveCmd is the collaborator boundary: newline-delimited JSON requests on
// stdin, one JSON response per line on stdout. Analysis trouble never
// produces an error response; tasks resolve to their safe defaults. Only a
// line that is not a valid request comes back as an error.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve analysis requests as JSON lines over stdin/stdout",
	Long: `Reads one JSON request per line from stdin and writes one JSON
response per line to stdout. Request shape:

  {"id": "42", "type": "deps", "payload": {"path": "/abs/project"}}

Types: deps, detect-project, analyze-route, analyze-api-endpoints,
cache-stats.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatcher := task.NewDispatcher()
	enc := json.NewEncoder(os.Stdout)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	logger.Info("serving analysis requests on stdin")
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req task.Request
		if err := json.Unmarshal(line, &req); err != nil {
			logger.WithError(err).Warn("Malformed request line")
			if err := enc.Encode(task.Response{Status: "error", Error: "malformed request: " + err.Error()}); err != nil {
				return err
			}
			continue
		}

		resp := dispatcher.Dispatch(ctx, req)
		if err := enc.Encode(resp); err != nil {
			return err
		}
	}
	return scanner.Err()
}
