package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"deskdrop/internal/arranger"
	"deskdrop/internal/config"
	"deskdrop/internal/devices"
	"deskdrop/internal/history"
	"deskdrop/internal/ipc"
	"deskdrop/internal/logging"
	"deskdrop/internal/notifications"
	"deskdrop/internal/opener"
	"deskdrop/internal/watcher"
)

func newArrangeCommand(ctx *commandContext) *cobra.Command {
	var local bool
	cmd := &cobra.Command{
		Use:   "arrange <path>...",
		Short: "Move desktop entries into the current destination folder now",
		Long: "Arrange runs the settle, move, and open steps for each path immediately.\n" +
			"Paths are handed to the running daemon; when no daemon is running, or with\n" +
			"--local, they are arranged in this process using the drives mounted now.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := make([]string, 0, len(args))
			for _, arg := range args {
				path, err := config.ExpandPath(strings.TrimSpace(arg))
				if err != nil {
					return err
				}
				abs, err := filepath.Abs(path)
				if err != nil {
					return fmt.Errorf("resolve path: %w", err)
				}
				paths = append(paths, abs)
			}

			stdout := cmd.OutOrStdout()
			if !local {
				err := ctx.withClient(func(client *ipc.Client) error {
					return arrangeRemote(stdout, client, paths)
				})
				if !errors.Is(err, errDaemonOffline) {
					return err
				}
				fmt.Fprintln(stdout, "Daemon not running; arranging locally")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return arrangeLocal(cmd.Context(), stdout, cfg, paths)
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "Arrange in this process even if the daemon is running")
	return cmd
}

func arrangeRemote(out io.Writer, client *ipc.Client, paths []string) error {
	var failed int
	for _, path := range paths {
		resp, err := client.Arrange(path)
		if err != nil {
			return err
		}
		if !printOutcome(out, resp.Outcome) {
			failed++
		}
	}
	return arrangeFailures(failed, len(paths))
}

func arrangeLocal(ctx context.Context, out io.Writer, cfg *config.Config, paths []string) error {
	store, err := history.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	tracker := devices.NewTracker()
	if cfg.Devices.Enabled {
		devs, err := devices.NewLister(cfg).List(ctx)
		if err != nil {
			fmt.Fprintf(out, "Unable to list drives, using %s: %v\n", cfg.Arrange.FallbackFolder, err)
		}
		devices.NewMonitor(cfg, tracker, logging.NewNop()).Seed(devs)
	}

	a := arranger.New(cfg, arranger.Deps{
		Tracker:  tracker,
		Notifier: notifications.NewService(cfg),
		Opener:   opener.New(cfg),
		History:  store,
		Managed:  watcher.NewManaged(),
	}, logging.NewNop())

	var failed int
	for _, path := range paths {
		outcome, err := a.Arrange(ctx, path)
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		if !printOutcome(out, outcome) {
			failed++
		}
	}
	return arrangeFailures(failed, len(paths))
}

// printOutcome reports whether the entry was moved.
func printOutcome(out io.Writer, outcome arranger.Outcome) bool {
	name := filepath.Base(outcome.Source)
	switch outcome.Status {
	case history.StatusMoved:
		fmt.Fprintf(out, "Moved %s -> %s (%s)\n", name, outcome.Result.Target, humanize.IBytes(uint64(max(outcome.Result.Bytes, 0))))
		return true
	case history.StatusSkipped:
		fmt.Fprintf(out, "Skipped %s: %s\n", name, outcome.Error)
	default:
		fmt.Fprintf(out, "Failed %s: %s\n", name, outcome.Error)
	}
	return false
}

func arrangeFailures(failed, total int) error {
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d entries not moved", failed, total)
}
