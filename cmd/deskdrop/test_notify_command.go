package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"deskdrop/internal/ipc"
	"deskdrop/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			err := ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestNotification()
				if err != nil {
					return err
				}
				if resp == nil {
					return errors.New("missing notification response")
				}
				switch {
				case resp.Message != "":
					fmt.Fprintln(out, resp.Message)
				case resp.Sent:
					fmt.Fprintln(out, "Test notification sent")
				default:
					fmt.Fprintln(out, "Notification not sent")
				}
				return nil
			})
			if !errors.Is(err, errDaemonOffline) {
				return err
			}

			cfg := ctx.configValue()
			if !cfg.Notify.Desktop && strings.TrimSpace(cfg.Notify.NtfyTopic) == "" {
				fmt.Fprintln(out, "no notification backend configured")
				return nil
			}
			if err := notifications.NewService(cfg).TestNotification(cmd.Context()); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintln(out, "test notification sent")
			return nil
		},
	}
}
