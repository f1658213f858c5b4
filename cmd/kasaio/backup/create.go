package backupcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"kasaio/cmd/kasaio/cmdutil"
	"kasaio/cmd/kasaio/ui"
	"kasaio/internal/snapshot"
)

func createCmd(dataRootFlag *string) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Snapshot the current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cmdutil.Open(*dataRootFlag)
			if err != nil {
				return err
			}
			defer env.Close()

			payload, err := snapshot.CaptureFiles(env.Files)
			if err != nil {
				return err
			}
			snap, err := env.Snapshots.Create(cmd.Context(), payload, reason, nil)
			if err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("Snapshot %s created (%d bytes).", ui.Bold(snap.ID), snap.SizeBytes))
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "manual backup", "Why this snapshot is taken")
	return cmd
}
