package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"deskdrop/internal/daemonctl"
	"deskdrop/internal/ipc"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var startLogLevel string
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the deskdrop daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			launched, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonLaunchOptions(ctx, startLogLevel),
				10*time.Second,
			)
			if err != nil {
				return err
			}
			if !launched {
				fmt.Fprintln(stdout, "Daemon already running")
				return nil
			}
			fmt.Fprintln(stdout, "Daemon started")
			return nil
		},
	}
	startCmd.Flags().StringVar(&startLogLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the deskdrop daemon (terminates the process)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return stopDaemon(cmd, ctx)
		},
	}

	var restartLogLevel string
	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the deskdrop daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			if err := stopDaemon(cmd, ctx); err != nil {
				return err
			}
			if _, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonLaunchOptions(ctx, restartLogLevel),
				10*time.Second,
			); err != nil {
				return err
			}
			fmt.Fprintln(stdout, "Daemon started")
			return nil
		},
	}
	restartCmd.Flags().StringVar(&restartLogLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, drive, and readiness status",
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), ctx.configValue())
			if err != nil {
				return err
			}
			if statusJSON {
				return writeJSON(cmd, snapshot)
			}
			stdout := cmd.OutOrStdout()
			for _, line := range renderStatus(snapshot, shouldColorize(stdout), time.Now()) {
				fmt.Fprintln(stdout, line)
			}
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")

	pauseCmd := &cobra.Command{
		Use:   "pause",
		Short: "Stop arranging new desktop entries until resumed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Pause()
				if err != nil {
					return err
				}
				if resp.Changed {
					fmt.Fprintln(cmd.OutOrStdout(), "Arranging paused")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Arranging already paused")
				}
				return nil
			})
		},
	}

	resumeCmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume arranging new desktop entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Resume()
				if err != nil {
					return err
				}
				if resp.Changed {
					fmt.Fprintln(cmd.OutOrStdout(), "Arranging resumed")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Arranging already active")
				}
				return nil
			})
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd, pauseCmd, resumeCmd}
}

func stopDaemon(cmd *cobra.Command, ctx *commandContext) error {
	stdout := cmd.OutOrStdout()
	result, err := daemonctl.StopAndTerminate(ctx.socketPath(), ctx.configValue(), 5*time.Second)
	if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		fmt.Fprintln(stdout, "Daemon is not running")
		return nil
	}
	if err != nil {
		return err
	}
	if !result.StopAcknowledged {
		fmt.Fprintln(stdout, "Stop request sent")
	}
	if result.ForcedKill && result.PID > 0 {
		fmt.Fprintf(stdout, "Daemon did not exit in time, killed pid %d\n", result.PID)
	}
	fmt.Fprintln(stdout, "Daemon stopped")
	return nil
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext, logLevel string) daemonctl.LaunchOptions {
	return daemonctl.LaunchOptions{
		ConfigPath: ctx.launchConfigPath(),
		LogLevel:   logLevel,
	}
}
