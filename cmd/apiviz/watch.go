package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/apiviz/apiviz-go/internal/graph"
	"github.com/apiviz/apiviz-go/internal/task"
	"github.com/apiviz/apiviz-go/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Watch a project and re-emit endpoints on change",
	Long: `Watches the project tree and, after each debounced batch of file
changes, invalidates cached analysis and prints the refreshed endpoint list
to stdout.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	root := graph.DiscoverRoot(path)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatcher := task.NewDispatcher()

	analyze := func() {
		resp := dispatcher.Dispatch(ctx, task.Request{
			Type:    task.TypeAPIEndpoints,
			Payload: task.Payload{Path: root},
		})
		if err := printJSON(resp.Results); err != nil {
			logger.WithError(err).Warn("Failed to write results")
		}
	}

	w, err := watch.New(root, dispatcher, func(changed []string) {
		logger.WithField("files", len(changed)).Debug("Change batch, re-analyzing")
		analyze()
	}, watch.WithExtensions(".ts", ".tsx", ".js", ".jsx", ".py"))
	if err != nil {
		return err
	}
	defer w.Close()

	analyze()

	if err := w.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
