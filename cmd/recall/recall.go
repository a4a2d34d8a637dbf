// Package recallcmder assembles the recall command tree.
package recallcmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/recall/cmd/recall/config"
	initcmder "github.com/papercomputeco/recall/cmd/recall/init"
	searchcmder "github.com/papercomputeco/recall/cmd/recall/search"
	servecmder "github.com/papercomputeco/recall/cmd/recall/serve"
	snapshotcmder "github.com/papercomputeco/recall/cmd/recall/snapshot"
	versioncmder "github.com/papercomputeco/recall/cmd/recall/version"
)

const recallLongDesc string = `recall is a conversation memory engine for agents.

It keeps recent messages per conversation, compresses older ones into
summaries, and assembles token-bounded context windows from recent history
and semantically relevant past summaries.

Run the server:
  recall serve           Run the API server (HTTP and MCP)

Work with a running server:
  recall search <query>  Search stored memories
  recall snapshot        Export or import memory snapshots

Manage configuration:
  recall init            Create a local .recall/ directory
  recall config          Get, set or list config values`

const recallShortDesc string = "recall - conversation memory for agents"

func NewRecallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "recall",
		Short:        recallShortDesc,
		Long:         recallLongDesc,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().Bool("json-logs", false, "Write logs as JSON")
	cmd.PersistentFlags().String("config-dir", "", "Directory holding config.toml and recall state (default: ./.recall or ~/.recall)")

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(snapshotcmder.NewSnapshotCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
