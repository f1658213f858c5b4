package profilecmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"kasaio/cmd/kasaio/ui"
	"kasaio/internal/catalog"
)

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := make([][]string, 0, len(catalog.IDs()))
			for _, p := range catalog.All() {
				rows = append(rows, []string{
					p.ID,
					p.Description,
					strings.Join(p.ServiceNames(), ", "),
					joinOr(p.Dependencies, "-"),
					joinOr(p.Conflicts, "-"),
				})
			}
			fmt.Println(ui.Table(
				[]string{"PROFILE", "DESCRIPTION", "SERVICES", "DEPENDS ON", "CONFLICTS"},
				rows,
			))
			return nil
		},
	}
}

func joinOr(values []string, empty string) string {
	if len(values) == 0 {
		return empty
	}
	return strings.Join(values, ", ")
}
