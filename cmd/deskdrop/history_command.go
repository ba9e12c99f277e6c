package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"deskdrop/internal/daemonctl"
	"deskdrop/internal/history"
	"deskdrop/internal/ipc"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent arrangements",
		RunE: func(cmd *cobra.Command, args []string) error {
			var entries []history.Entry
			err := ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.History(limit)
				if err != nil {
					return err
				}
				entries = resp.Entries
				return nil
			})
			if errors.Is(err, errDaemonOffline) {
				entries, err = daemonctl.OfflineHistory(cmd.Context(), ctx.configValue(), limit)
			}
			if err != nil {
				return err
			}

			if asJSON {
				if entries == nil {
					entries = []history.Entry{}
				}
				return writeJSON(cmd, entries)
			}
			stdout := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(stdout, "No arrangements recorded")
				return nil
			}
			fmt.Fprint(stdout, renderHistoryTable(entries, time.Now()))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func renderHistoryTable(entries []history.Entry, now time.Time) string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		target := entry.Target
		if target != "" {
			target = filepath.Base(filepath.Dir(target)) + string(filepath.Separator) + filepath.Base(target)
		}
		size := "-"
		if entry.Status == history.StatusMoved {
			size = humanize.IBytes(uint64(max(entry.Bytes, 0)))
		}
		detail := target
		if entry.Error != "" {
			detail = entry.Error
		}
		rows = append(rows, []string{
			strconv.FormatInt(entry.ID, 10),
			humanize.RelTime(entry.CreatedAt, now, "ago", "from now"),
			string(entry.Status),
			filepath.Base(entry.Source),
			detail,
			size,
		})
	}
	return renderTable(
		[]string{"ID", "When", "Status", "Entry", "Destination", "Size"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
	)
}
