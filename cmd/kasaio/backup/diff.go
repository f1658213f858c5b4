package backupcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"kasaio/cmd/kasaio/cmdutil"
	"kasaio/cmd/kasaio/ui"
	"kasaio/internal/snapshot"
)

func diffCmd(dataRootFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "diff <snapshot> [<snapshot>]",
		Short: "Diff a snapshot against the live configuration, or two snapshots",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cmdutil.Open(*dataRootFlag)
			if err != nil {
				return err
			}
			defer env.Close()

			_, from, err := env.Snapshots.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			var to snapshot.Payload
			target := "live configuration"
			if len(args) == 2 {
				_, to, err = env.Snapshots.Get(cmd.Context(), args[1])
				if err != nil {
					return err
				}
				target = args[1]
			} else {
				to, err = snapshot.CaptureFiles(env.Files)
				if err != nil {
					return err
				}
			}

			diff, err := snapshot.DiffSnapshots(cmd.Context(), from, to)
			if err != nil {
				return err
			}
			if diff.ChangeCount() == 0 {
				fmt.Println(ui.InfoMsg("No differences between %s and %s.", args[0], target))
				return nil
			}

			fmt.Println(ui.Bold(fmt.Sprintf("%s vs %s", args[0], target)))
			for _, ch := range diff.Services {
				fmt.Printf("  %s service %s\n", string(ch.Type), ch.Name)
			}
			for _, ch := range diff.Env {
				fmt.Printf("  %s env %s\n", string(ch.Type), ch.Key)
			}
			return nil
		},
	}
}
