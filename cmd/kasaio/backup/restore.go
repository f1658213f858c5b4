package backupcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"kasaio/cmd/kasaio/cmdutil"
	"kasaio/cmd/kasaio/ui"
	"kasaio/internal/snapshot"
)

func restoreCmd(dataRootFlag *string) *cobra.Command {
	var (
		yes      bool
		noSafety bool
		restart  bool
	)
	cmd := &cobra.Command{
		Use:   "restore <snapshot>",
		Short: "Restore a snapshot over the live configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cmdutil.Open(*dataRootFlag)
			if err != nil {
				return err
			}
			defer env.Close()

			if !yes {
				ok, err := ui.Confirm(
					fmt.Sprintf("Overwrite the live configuration with snapshot %s?", ui.Bold(args[0])),
					"use --yes to skip",
				)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Println(ui.InfoMsg("Aborted."))
					return nil
				}
			}

			result, err := env.Snapshots.Restore(cmd.Context(), args[0], env.Files, snapshot.RestoreOptions{
				BackupCurrent: !noSafety,
			})
			if err != nil {
				return err
			}

			fmt.Println(ui.SuccessMsg("Restored snapshot %s.", ui.Bold(result.SnapshotID)))
			if result.SafetySnapshotID != "" {
				fmt.Println(ui.Muted("Pre-restore state saved as " + result.SafetySnapshotID))
			}
			if !result.RestartRequired {
				return nil
			}

			if !restart {
				fmt.Println(ui.WarnMsg("Configuration changed; restart services with: kasaio apply --yes"))
				return nil
			}

			st, found, err := env.StateFile.Load()
			if err != nil {
				return err
			}
			if !found {
				fmt.Println(ui.WarnMsg("No installation state; skipping restart."))
				return nil
			}
			manager, err := env.Manager()
			if err != nil {
				return err
			}
			if err := manager.Restart(cmd.Context(), st.SelectedProfiles); err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("Services restarted."))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Restore without confirmation")
	cmd.Flags().BoolVar(&noSafety, "no-safety", false, "Skip the pre-restore safety snapshot")
	cmd.Flags().BoolVar(&restart, "restart", false, "Restart services after restoring")
	return cmd
}
