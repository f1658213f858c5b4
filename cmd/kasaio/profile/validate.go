package profilecmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"kasaio/cmd/kasaio/ui"
	"kasaio/internal/catalog"
	"kasaio/internal/resolve"
)

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <profile>...",
		Short: "Validate a profile selection without changing anything",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			validator := resolve.NewValidator(catalog.Default)
			result := validator.ValidateSelection(args)

			for _, issue := range result.Warnings {
				fmt.Println(ui.WarnMsg("%s", issue.Message))
				if issue.Hint != "" {
					fmt.Println("  " + ui.Muted(issue.Hint))
				}
			}
			for _, issue := range result.Errors {
				fmt.Println(ui.ErrorMsg("%s", issue.Message))
				if issue.Hint != "" {
					fmt.Println("  " + ui.Muted(issue.Hint))
				}
			}

			if !result.Valid {
				return fmt.Errorf("selection is invalid (%d error(s))", len(result.Errors))
			}

			fmt.Println(ui.SuccessMsg("Selection valid: %s", strings.Join(result.Resolved, ", ")))
			fmt.Println()
			fmt.Println(ui.Bold("Startup order"))
			for _, group := range result.Order {
				names := make([]string, 0, len(group.Services))
				for _, svc := range group.Services {
					names = append(names, svc.Name)
				}
				fmt.Print(ui.KeyValues("  ", ui.KV(string(group.Phase), strings.Join(names, ", "))))
			}
			fmt.Println(ui.Bold("Minimum resources"))
			fmt.Print(ui.KeyValues("  ",
				ui.KV("cpu", fmt.Sprintf("%.1f cores", result.Resources.MinCPU)),
				ui.KV("memory", fmt.Sprintf("%d MiB", result.Resources.MinMemoryMiB)),
				ui.KV("disk", fmt.Sprintf("%d MiB", result.Resources.MinDiskMiB)),
			))
			return nil
		},
	}
}
