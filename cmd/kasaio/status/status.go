// Package statuscmd reports the installation and its container states.
package statuscmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"kasaio/cmd/kasaio/cmdutil"
	"kasaio/cmd/kasaio/ui"
)

func Cmd(dataRootFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show installed profiles and container states",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cmdutil.Open(*dataRootFlag)
			if err != nil {
				return err
			}
			defer env.Close()

			st, found, err := env.StateFile.Load()
			if err != nil {
				return err
			}
			if !found {
				fmt.Println(ui.InfoMsg("No installation found under %s.", env.DataRoot))
				return nil
			}

			fmt.Print(ui.KeyValues("",
				ui.KV("data root", env.DataRoot),
				ui.KV("mode", string(st.Mode)),
				ui.KV("profiles", strings.Join(st.SelectedProfiles, ", ")),
			))

			manager, err := env.Manager()
			if err != nil {
				return err
			}
			statuses, err := manager.Status(cmd.Context(), st.SelectedProfiles)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(statuses))
			for _, s := range statuses {
				stateCol := ui.ErrorStyle.Render("missing")
				if s.Exists {
					stateCol = ui.RunningState(s.Running)
				}
				rows = append(rows, []string{s.Service, s.Profile, stateCol})
			}
			fmt.Println(ui.Table([]string{"SERVICE", "PROFILE", "STATE"}, rows))

			if n := len(st.History); n > 0 {
				last := st.History[n-1]
				fmt.Println(ui.Muted(fmt.Sprintf("last change: %s (%s, snapshot %s)",
					last.Timestamp.Local().Format("2006-01-02 15:04:05"), last.Action, last.SnapshotID)))
			}
			return nil
		},
	}
}
