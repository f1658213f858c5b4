package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	applycmd "kasaio/cmd/kasaio/apply"
	backupcmd "kasaio/cmd/kasaio/backup"
	generatecmd "kasaio/cmd/kasaio/generate"
	profilecmd "kasaio/cmd/kasaio/profile"
	servicecmd "kasaio/cmd/kasaio/service"
	statuscmd "kasaio/cmd/kasaio/status"
	"kasaio/cmd/kasaio/ui"
	"kasaio/internal/logging"
)

func main() {
	var (
		debug         bool
		dataRoot      string
		noInteraction bool
	)
	if err := logging.Configure(logging.LevelWarn); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	root := &cobra.Command{
		Use:           "kasaio",
		Short:         "Install and reconfigure the Kaspa service stack",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelWarn
			if debug {
				level = logging.LevelDebug
			}
			if err := logging.Configure(level); err != nil {
				return err
			}
			ui.ConfigureInteraction(noInteraction)
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&dataRoot, "data-root", "", "Installation directory (default $KASAIO_DATA_ROOT or /var/lib/kasaio)")
	root.PersistentFlags().BoolVar(&noInteraction, "no-interaction", false, "Disable prompts and colors")

	root.AddCommand(profilecmd.Cmd())
	root.AddCommand(generatecmd.Cmd(&dataRoot))
	root.AddCommand(applycmd.Cmd(&dataRoot))
	root.AddCommand(backupcmd.Cmd(&dataRoot))
	root.AddCommand(servicecmd.Cmd(&dataRoot))
	root.AddCommand(statuscmd.Cmd(&dataRoot))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.ErrorMsg("%v", err))
		os.Exit(1)
	}
}
