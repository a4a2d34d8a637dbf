package snapshotcmder

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/recall/pkg/cliui"
	"github.com/papercomputeco/recall/pkg/memory"
)

func newExportCmd() *cobra.Command {
	var (
		target string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the server's snapshot to a file or stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}

			var snap *memory.Snapshot
			fetch := func() error {
				snap, err = c.Snapshot(cmd.Context())
				return err
			}

			if output == "" || output == "-" {
				if err := fetch(); err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			}

			if err := cliui.Step(cmd.ErrOrStderr(), "Fetching snapshot", fetch); err != nil {
				return err
			}

			data, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding snapshot: %w", err)
			}
			if err := os.WriteFile(output, data, 0o600); err != nil {
				return fmt.Errorf("writing snapshot: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d messages and %d summaries to %s\n",
				len(snap.Messages), len(snap.Summaries), output)
			return nil
		},
	}

	addClientFlags(cmd, &target)
	cmd.Flags().StringVarP(&output, "output", "o", "", "File to write (default: stdout)")

	return cmd
}
