// Package backupcmd manages configuration snapshots: create, list, diff,
// restore.
package backupcmd

import "github.com/spf13/cobra"

// Cmd returns the parent "kasaio backup" command. dataRootFlag points to
// the root persistent flag value.
func Cmd(dataRootFlag *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage configuration snapshots",
	}

	cmd.AddCommand(createCmd(dataRootFlag))
	cmd.AddCommand(listCmd(dataRootFlag))
	cmd.AddCommand(diffCmd(dataRootFlag))
	cmd.AddCommand(restoreCmd(dataRootFlag))
	return cmd
}
