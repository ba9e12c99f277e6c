package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"deskdrop/internal/daemonrun"
	"deskdrop/internal/service"
)

func newServiceCommand(ctx *commandContext) *cobra.Command {
	serviceCmd := &cobra.Command{
		Use:   "service",
		Short: "Manage deskdrop as a per-user system service",
	}

	newManager := func() (*service.Manager, error) {
		cfg, err := ctx.ensureConfig()
		if err != nil {
			return nil, err
		}
		return service.NewManager(ctx.launchConfigPath(), func(runCtx context.Context) error {
			return daemonrun.Run(runCtx, cfg, daemonrun.Options{})
		}, nil)
	}

	action := func(use, short, done string, fn func(*service.Manager) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				mgr, err := newManager()
				if err != nil {
					return err
				}
				if err := fn(mgr); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), done)
				return nil
			},
		}
	}

	serviceCmd.AddCommand(
		action("install", "Install deskdrop to start at login", "Service installed", (*service.Manager).Install),
		action("uninstall", "Remove the deskdrop service", "Service removed", (*service.Manager).Uninstall),
		action("start", "Start the deskdrop service", "Service started", (*service.Manager).Start),
		action("stop", "Stop the deskdrop service", "Service stopped", (*service.Manager).Stop),
		action("restart", "Restart the deskdrop service", "Service restarted", (*service.Manager).Restart),
	)

	serviceCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the service state",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newManager()
			if err != nil {
				return err
			}
			state, err := mgr.Status()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Service: %s (%s)\n", state, mgr.Platform())
			return nil
		},
	})

	serviceCmd.AddCommand(&cobra.Command{
		Use:    "run",
		Short:  "Run under the service manager",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newManager()
			if err != nil {
				return err
			}
			return mgr.Run()
		},
	})

	return serviceCmd
}
