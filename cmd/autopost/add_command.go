package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"autopost/internal/ipc"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var flags submissionFlags
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "add [FILE...]",
		Short: "Queue images for posting by the daemon",
		Long: "Queue one or more images as a single batch. Captions come from --caption,\n" +
			"a sidecar file next to each image, or a --manifest file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := flags.build(cmd, args)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Submit(ipc.NewSubmitRequest(sub))
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Queued %d image(s) in batch %s\n", len(resp.JobIDs), resp.BatchID)
				ids := make([]string, 0, len(resp.JobIDs))
				for _, id := range resp.JobIDs {
					ids = append(ids, strconv.FormatInt(id, 10))
				}
				fmt.Fprintf(out, "Job IDs: %s\n", strings.Join(ids, ", "))
				return nil
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the acknowledgement as JSON")
	return cmd
}
