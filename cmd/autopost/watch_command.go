package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"autopost/internal/events"
	"autopost/internal/ipc"
)

const watchWait = 20 * time.Second

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var history int
	var untilComplete bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow status events from the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Events(ipc.EventsRequest{})
				if err != nil {
					return err
				}
				since := resp.Next
				if history > 0 {
					backlog := resp.Events
					if len(backlog) > history {
						backlog = backlog[len(backlog)-history:]
					}
					for _, evt := range backlog {
						fmt.Fprintln(out, formatEvent(evt, colorize))
					}
				}

				for {
					resp, err := client.Events(ipc.EventsRequest{Since: since, WaitMillis: int(watchWait / time.Millisecond)})
					if err != nil {
						return err
					}
					since = resp.Next
					for _, evt := range resp.Events {
						fmt.Fprintln(out, formatEvent(evt, colorize))
						if untilComplete && evt.Complete {
							return nil
						}
					}
				}
			})
		},
	}
	cmd.Flags().IntVar(&history, "history", 10, "Number of recent events to print first")
	cmd.Flags().BoolVar(&untilComplete, "until-complete", false, "Exit after the next run finishes")
	return cmd
}

func formatEvent(evt events.Event, colorize bool) string {
	var kind statusKind
	switch evt.Severity {
	case events.SeveritySuccess:
		kind = statusOK
	case events.SeverityError:
		kind = statusError
	default:
		kind = statusInfo
	}
	meta := statusKinds[kind]
	stamp := "--:--:--"
	if !evt.Time.IsZero() {
		stamp = evt.Time.Local().Format(time.TimeOnly)
	}
	line := fmt.Sprintf("%s %-7s %s", stamp, "["+meta.label+"]", evt.Message)
	if colorize {
		return meta.color + line + ansiReset
	}
	return line
}
