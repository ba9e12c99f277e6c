package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"deskdrop/internal/arranger"
	"deskdrop/internal/devices"
	"deskdrop/internal/ipc"
)

func newDevicesCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List connected removable drives and their destination folders",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			var resp ipc.DevicesResponse
			online := true
			err := ctx.withClient(func(client *ipc.Client) error {
				r, err := client.Devices()
				if err != nil {
					return err
				}
				resp = *r
				return nil
			})
			if errors.Is(err, errDaemonOffline) {
				online = false
				devs, listErr := devices.NewLister(cfg).List(cmd.Context())
				if listErr != nil {
					return listErr
				}
				resp = ipc.DevicesResponse{Devices: devs}
				err = nil
			}
			if err != nil {
				return err
			}

			if asJSON {
				if resp.Devices == nil {
					resp.Devices = []devices.Device{}
				}
				return writeJSON(cmd, resp)
			}

			stdout := cmd.OutOrStdout()
			if len(resp.Devices) == 0 {
				fmt.Fprintln(stdout, "No removable drives mounted")
			} else {
				rows := make([][]string, 0, len(resp.Devices))
				for _, dev := range resp.Devices {
					dev = dev.WithAliases(cfg.Devices.Aliases)
					folder := arranger.SanitizeFolderName(dev.DisplayName())
					if folder == "" {
						folder = cfg.Arrange.FallbackFolder
					}
					rows = append(rows, []string{
						dev.Node,
						dev.Label,
						dev.Bus,
						dev.MountPoint,
						folder,
					})
				}
				fmt.Fprint(stdout, renderTable(
					[]string{"Device", "Label", "Bus", "Mount", "Folder"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				))
			}

			switch {
			case !online:
				fmt.Fprintln(stdout, "Daemon not running; drive order is unknown")
			case resp.Count > 0 && resp.Current != "":
				fmt.Fprintf(stdout, "Latest drive: %s (%d connected)\n", resp.Current, resp.Count)
			default:
				fmt.Fprintf(stdout, "No drive connected; new entries go to %s\n", cfg.Arrange.FallbackFolder)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
