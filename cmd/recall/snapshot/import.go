package snapshotcmder

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/recall/pkg/cliui"
	"github.com/papercomputeco/recall/pkg/memory"
)

func newImportCmd() *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the server's state with a snapshot file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading snapshot: %w", err)
			}

			var snap memory.Snapshot
			if err := json.Unmarshal(data, &snap); err != nil {
				return fmt.Errorf("parsing snapshot: %w", err)
			}

			c, err := newClient(cmd)
			if err != nil {
				return err
			}

			var st memory.Stats
			err = cliui.Step(cmd.ErrOrStderr(), "Restoring snapshot", func() error {
				st, err = c.Restore(cmd.Context(), &snap)
				return err
			})
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), cliui.KeyValues(map[string]string{
				"messages":      strconv.Itoa(st.TotalMessages),
				"summaries":     strconv.Itoa(st.TotalSummaries),
				"conversations": strconv.Itoa(st.TotalConversations),
				"buffered":      strconv.Itoa(st.BufferedMessages),
			}))
			return nil
		},
	}

	addClientFlags(cmd, &target)

	return cmd
}
