// Package applycmd reconciles the installation to a profile selection.
package applycmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"kasaio/cmd/kasaio/cmdutil"
	"kasaio/cmd/kasaio/ui"
	"kasaio/internal/generate"
	"kasaio/internal/reconcile"
	"kasaio/internal/snapshot"
)

func Cmd(dataRootFlag *string) *cobra.Command {
	var (
		settings []string
		yes      bool
		dryRun   bool
	)
	cmd := &cobra.Command{
		Use:   "apply [<profile>...] [--set KEY=VALUE]...",
		Short: "Reconcile containers to a profile selection",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := cmdutil.ParseSettings(settings)
			if err != nil {
				return err
			}

			env, err := cmdutil.Open(*dataRootFlag)
			if err != nil {
				return err
			}
			defer env.Close()

			selection := args
			if len(selection) == 0 {
				st, found, err := env.StateFile.Load()
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("no installation found, name the profiles to install")
				}
				selection = st.SelectedProfiles
			}

			engine, err := env.Engine()
			if err != nil {
				return err
			}

			preview, err := engine.Reconcile(cmd.Context(), reconcile.Request{
				Profiles: selection,
				Settings: parsed,
				DryRun:   true,
			})
			if err != nil {
				return renderError(err)
			}
			printDiff(preview.Diff)
			if dryRun {
				return nil
			}
			if preview.Diff.ChangeCount() == 0 {
				fmt.Println(ui.InfoMsg("Nothing to change."))
				return nil
			}

			if !yes {
				ok, err := ui.Confirm(
					fmt.Sprintf("Apply %d change(s)?", preview.Diff.ChangeCount()),
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

			rt, err := env.Runtime()
			if err != nil {
				return err
			}
			if err := rt.EnsureNetwork(cmd.Context(), generate.NetworkName); err != nil {
				return err
			}

			result, err := engine.Reconcile(cmd.Context(), reconcile.Request{
				Profiles: selection,
				Settings: parsed,
				Reason:   "pre-apply backup",
			})
			if err != nil {
				return renderError(err)
			}

			for _, key := range result.GeneratedSecrets {
				fmt.Println(ui.WarnMsg("Generated value for %s; keep the env file safe.", ui.Bold(key)))
			}
			fmt.Println(ui.SuccessMsg("Applied. Services: %v", result.Services))
			fmt.Println(ui.Muted("Rollback snapshot: " + result.SnapshotID))
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&settings, "set", nil, "Configuration KEY=VALUE (repeatable)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Apply without confirmation")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show the diff and exit without changing anything")
	return cmd
}

func printDiff(diff snapshot.Diff) {
	if diff.ChangeCount() == 0 {
		return
	}
	fmt.Println(ui.Bold("Planned changes"))
	for _, ch := range diff.Services {
		fmt.Printf("  %s service %s\n", changeMark(string(ch.Type)), ch.Name)
	}
	for _, ch := range diff.Env {
		fmt.Printf("  %s env %s\n", changeMark(string(ch.Type)), ch.Key)
	}
}

func changeMark(changeType string) string {
	switch changeType {
	case "added":
		return ui.Success("+")
	case "removed":
		return ui.ErrorStyle.Render("-")
	default:
		return ui.Warn("~")
	}
}

func renderError(err error) error {
	re, ok := reconcile.AsError(err)
	if !ok {
		return err
	}
	for _, issue := range re.Issues {
		fmt.Println(ui.ErrorMsg("%s", issue.Message))
		if issue.Hint != "" {
			fmt.Println("  " + ui.Muted(issue.Hint))
		}
	}
	for _, fe := range re.Fields {
		fmt.Println(ui.ErrorMsg("%s", fe.Error()))
	}
	if re.Hint != "" {
		fmt.Println(ui.InfoMsg("%s", re.Hint))
	}
	var kindErr error
	switch re.Kind {
	case reconcile.KindValidation:
		kindErr = errors.New("validation failed")
	case reconcile.KindManualRecovery:
		kindErr = errors.New("manual recovery required")
	default:
		kindErr = err
	}
	return kindErr
}
