// Package snapshotcmder provides commands that export and import engine
// snapshots through a running recall server.
package snapshotcmder

import (
	"github.com/spf13/cobra"

	"github.com/papercomputeco/recall/api/client"
	"github.com/papercomputeco/recall/pkg/config"
	"github.com/papercomputeco/recall/pkg/runstate"
)

const snapshotLongDesc string = `Export or import memory snapshots.

A snapshot is a JSON document with every stored message and summary.
Embeddings are not included; the server re-embeds on import.

  recall snapshot export [-o file]    Write the server's snapshot
  recall snapshot import <file>       Replace the server's state`

const snapshotShortDesc string = "Export or import memory snapshots"

func NewSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: snapshotShortDesc,
		Long:  snapshotLongDesc,
	}

	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newImportCmd())

	return cmd
}

// newClient resolves the API target for cmd and returns a client for it.
func newClient(cmd *cobra.Command) (*client.Client, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, err
	}

	var explicit string
	if f := cmd.Flags().Lookup("api-target"); f != nil && f.Changed {
		explicit = f.Value.String()
	}

	return client.New(runstate.ResolveAPITarget(configDir, explicit, v.GetString("client.api_target")))
}

func addClientFlags(cmd *cobra.Command, target *string) {
	config.AddStringFlag(cmd, config.ClientFlags, config.FlagAPITarget, target)
}
