package servicecmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"kasaio/cmd/kasaio/cmdutil"
	"kasaio/cmd/kasaio/ui"
)

func removeCmd(dataRootFlag *string) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "remove <profile>...",
		Short: "Remove a profile's services from the installation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cmdutil.Open(*dataRootFlag)
			if err != nil {
				return err
			}
			defer env.Close()

			manager, err := env.Manager()
			if err != nil {
				return err
			}
			services := manager.ContainerNamesForProfiles(args)
			if len(services) == 0 {
				return fmt.Errorf("no known services for profiles %v", args)
			}

			if !yes {
				ok, err := ui.Confirm(
					fmt.Sprintf("Remove containers %s and their configuration entries?",
						ui.Bold(strings.Join(services, ", "))),
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

			if err := manager.RemoveServices(cmd.Context(), services); err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("Removed %s.", strings.Join(services, ", ")))
			fmt.Println(ui.Muted("Run kasaio apply to update the installed profile set."))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Remove without confirmation")
	return cmd
}
