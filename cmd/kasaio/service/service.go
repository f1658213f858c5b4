// Package servicecmd drives container lifecycle for installed profiles
// without regenerating configuration.
package servicecmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"kasaio/cmd/kasaio/cmdutil"
	"kasaio/cmd/kasaio/ui"
	"kasaio/internal/lifecycle"
)

// Cmd returns the parent "kasaio service" command. dataRootFlag points to
// the root persistent flag value.
func Cmd(dataRootFlag *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Start, stop and remove installed services",
	}

	cmd.AddCommand(lifecycleCmd(dataRootFlag, "start", "Start the containers of the given profiles",
		(*lifecycle.Manager).Start))
	cmd.AddCommand(lifecycleCmd(dataRootFlag, "stop", "Stop the containers of the given profiles",
		(*lifecycle.Manager).Stop))
	cmd.AddCommand(lifecycleCmd(dataRootFlag, "restart", "Restart the containers of the given profiles",
		(*lifecycle.Manager).Restart))
	cmd.AddCommand(removeCmd(dataRootFlag))
	return cmd
}

func lifecycleCmd(dataRootFlag *string, verb, short string, action func(*lifecycle.Manager, context.Context, []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " [<profile>...]",
		Short: short,
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cmdutil.Open(*dataRootFlag)
			if err != nil {
				return err
			}
			defer env.Close()

			selection, err := resolveSelection(env, args)
			if err != nil {
				return err
			}
			manager, err := env.Manager()
			if err != nil {
				return err
			}
			if err := action(manager, cmd.Context(), selection); err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("%s: %s", verb, strings.Join(selection, ", ")))
			return nil
		},
	}
}

// resolveSelection falls back to the installed profile set when no ids are
// given on the command line.
func resolveSelection(env *cmdutil.Env, args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	st, found, err := env.StateFile.Load()
	if err != nil {
		return nil, err
	}
	if !found || len(st.SelectedProfiles) == 0 {
		return nil, fmt.Errorf("no installation found, name the profiles to operate on")
	}
	return st.SelectedProfiles, nil
}
