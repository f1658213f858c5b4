// Package generatecmd renders the compose document and env file for a
// profile selection without touching the container engine.
package generatecmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"kasaio/cmd/kasaio/cmdutil"
	"kasaio/cmd/kasaio/ui"
	"kasaio/internal/catalog"
	"kasaio/internal/fsx"
	"kasaio/internal/generate"
	"kasaio/internal/resolve"
)

func Cmd(dataRootFlag *string) *cobra.Command {
	var (
		settings []string
		stdout   bool
	)
	cmd := &cobra.Command{
		Use:   "generate <profile>... [--set KEY=VALUE]...",
		Short: "Generate the compose document and env file for a selection",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := cmdutil.ParseSettings(settings)
			if err != nil {
				return err
			}

			validator := resolve.NewValidator(catalog.Default)
			result := validator.ValidateSelection(args)
			for _, issue := range result.Warnings {
				fmt.Println(ui.WarnMsg("%s", issue.Message))
			}
			if !result.Valid {
				for _, issue := range result.Errors {
					fmt.Println(ui.ErrorMsg("%s", issue.Message))
				}
				return fmt.Errorf("selection is invalid (%d error(s))", len(result.Errors))
			}

			generator := generate.NewGenerator(catalog.Default)
			out, fieldErrs, err := generator.Generate(result.Resolved, parsed)
			if err != nil {
				return err
			}
			if len(fieldErrs) > 0 {
				for _, fe := range fieldErrs {
					fmt.Println(ui.ErrorMsg("%s", fe.Error()))
				}
				return fmt.Errorf("settings are invalid (%d error(s))", len(fieldErrs))
			}

			for _, warning := range out.Warnings {
				fmt.Println(ui.WarnMsg("%s", warning))
			}

			if stdout {
				fmt.Print(string(out.ComposeYAML))
				return nil
			}

			envData, err := generate.EncodeEnv(out.Env)
			if err != nil {
				return err
			}
			root := cmdutil.ResolveDataRoot(*dataRootFlag)
			composePath := filepath.Join(root, "docker-compose.yml")
			envPath := filepath.Join(root, ".env")
			if err := fsx.WriteAtomic(composePath, out.ComposeYAML, 0o600); err != nil {
				return err
			}
			if err := fsx.WriteAtomic(envPath, envData, 0o600); err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("Wrote %s and %s", ui.Bold(composePath), ui.Bold(envPath)))
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&settings, "set", nil, "Configuration KEY=VALUE (repeatable)")
	cmd.Flags().BoolVar(&stdout, "stdout", false, "Print the compose document instead of writing files")
	return cmd
}
