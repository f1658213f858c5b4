package backupcmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"kasaio/cmd/kasaio/cmdutil"
	"kasaio/cmd/kasaio/ui"
)

func listCmd(dataRootFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cmdutil.Open(*dataRootFlag)
			if err != nil {
				return err
			}
			defer env.Close()

			snaps, err := env.Snapshots.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(snaps) == 0 {
				fmt.Println(ui.InfoMsg("No snapshots yet."))
				return nil
			}

			rows := make([][]string, 0, len(snaps))
			for _, snap := range snaps {
				rows = append(rows, []string{
					snap.ID,
					snap.CreatedAt.Local().Format(time.RFC3339),
					snap.Reason,
					fmt.Sprintf("%d B", snap.SizeBytes),
				})
			}
			fmt.Println(ui.Table([]string{"ID", "CREATED", "REASON", "SIZE"}, rows))

			total, err := env.Snapshots.StorageUsage(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(ui.Muted(fmt.Sprintf("%d snapshot(s), %d bytes total", len(snaps), total)))
			return nil
		},
	}
}
