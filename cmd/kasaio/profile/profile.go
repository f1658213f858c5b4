package profilecmd

import "github.com/spf13/cobra"

// Cmd returns the parent "kasaio profile" command.
func Cmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Inspect and validate service profiles",
	}

	cmd.AddCommand(listCmd())
	cmd.AddCommand(validateCmd())
	return cmd
}
