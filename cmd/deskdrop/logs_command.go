package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"deskdrop/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon log of the current run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := logs.CurrentLogPath(cfg.Paths.LogDir)
			return printLogs(cmd.Context(), cmd.OutOrStdout(), path, lines, follow)
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new log lines")
	return cmd
}

func printLogs(ctx context.Context, out io.Writer, path string, lines int, follow bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	result, err := logs.Tail(ctx, path, logs.TailOptions{Offset: -1, Limit: lines})
	if err != nil {
		return err
	}
	for _, line := range result.Lines {
		fmt.Fprintln(out, line)
	}
	if !follow {
		return nil
	}

	offset := result.Offset
	for {
		result, err := logs.Tail(ctx, path, logs.TailOptions{
			Offset: offset,
			Follow: true,
			Wait:   5 * time.Second,
		})
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}
		for _, line := range result.Lines {
			fmt.Fprintln(out, line)
		}
		offset = result.Offset
	}
}
