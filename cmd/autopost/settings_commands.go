package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"autopost/internal/ipc"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change persisted posting settings",
	}

	var asJSON bool
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective posting settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Settings()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Settings)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Setting", "Value"}, buildSettingRows(resp.Settings),
					[]columnAlignment{alignLeft, alignLeft}, 0, 60))
				return nil
			})
		},
	}
	showCmd.Flags().BoolVar(&asJSON, "json", false, "Print settings as JSON")

	setCmd := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Store a posting setting (caption_template, trigger_interval_minutes, default_delay_seconds)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.SetSetting(args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stored %s\n", args[0])
				return nil
			})
		},
	}

	settingsCmd.AddCommand(showCmd, setCmd)
	return settingsCmd
}

func buildSettingRows(settings map[string]string) [][]string {
	keys := make([]string, 0, len(settings))
	for key := range settings {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		value := settings[key]
		if value == "" {
			value = "-"
		}
		rows = append(rows, []string{key, value})
	}
	return rows
}
