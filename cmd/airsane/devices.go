package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mzyy94/airsane/internal/sane"
)

func newDevicesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List available scanners",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(a.cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			devices, err := sane.Devices(s.anchor, a.cfg.LocalOnly)
			if err != nil {
				return fmt.Errorf("list devices: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "backend version %s\n", s.version)
			if len(devices) == 0 {
				fmt.Fprintln(out, "no devices found")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tVENDOR\tMODEL\tTYPE")
			for _, d := range devices {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Name, d.Vendor, d.Model, d.Type)
			}
			return tw.Flush()
		},
	}
}
