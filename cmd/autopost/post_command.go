package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"autopost/internal/automation"
	"autopost/internal/config"
	"autopost/internal/events"
	"autopost/internal/logging"
	"autopost/internal/queue"
	"autopost/internal/workflow"
)

// errRunFailed reports that a one-shot run stopped on a failed post.
var errRunFailed = errors.New("posting run failed")

func newPostCommand(ctx *commandContext) *cobra.Command {
	var flags submissionFlags
	var verbose bool

	cmd := &cobra.Command{
		Use:   "post [FILE...]",
		Short: "Post images right away without the daemon",
		Long: "Post a batch immediately in this process using an in-memory queue.\n" +
			"The daemon should be stopped so both do not drive the same browser tab.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			sub, err := flags.build(cmd, args)
			if err != nil {
				return err
			}

			logger := logging.NewNop()
			if verbose {
				logger, err = logging.New(logging.Options{
					Level:            cfg.Logging.Level,
					Format:           "console",
					OutputPaths:      []string{"stderr"},
					ErrorOutputPaths: []string{"stderr"},
				})
				if err != nil {
					return fmt.Errorf("init logger: %w", err)
				}
				defer func() { _ = logger.Sync() }()
			}

			browser := automation.NewRodBrowser(automation.RodOptionsFromConfig(cfg), logger)
			defer browser.Close()
			driver := automation.NewDriver(browser, automation.OptionsFromConfig(cfg), logger)

			return postOnce(cmd.Context(), cfg, driver, sub, logger, cmd.OutOrStdout())
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log driver activity to stderr")
	return cmd
}

// postOnce drains sub through a batch-mode manager backed by memory and
// prints its events until the run completes.
func postOnce(ctx context.Context, base *config.Config, poster workflow.Poster, sub workflow.Submission, logger *zap.Logger, out io.Writer) error {
	cfg := *base
	cfg.Posting.Mode = config.ModeBatch
	cfg.Posting.Store = config.StoreMemory

	store := queue.NewMemoryQueue()
	defer store.Close()

	hub := events.NewHub(0)
	mgr := workflow.NewManager(&cfg, store, poster, logger, workflow.WithEventHub(hub))
	if err := mgr.Start(ctx); err != nil {
		return err
	}
	defer mgr.Stop()

	since := hub.Last()
	ack, err := mgr.Submit(ctx, sub)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Posting %d image(s)\n", len(ack.JobIDs))

	for {
		batch, next, err := hub.Fetch(ctx, since, 0, true)
		if err != nil {
			return err
		}
		since = next
		for _, evt := range batch {
			fmt.Fprintln(out, formatEvent(evt, false))
			if !evt.Complete {
				continue
			}
			if evt.Severity == events.SeverityError {
				return errRunFailed
			}
			return nil
		}
	}
}
