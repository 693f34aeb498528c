// Package main provides the entry point for the gitport CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/gitport/cmd/gitport/commands"
	"github.com/Sumatoshi-tech/gitport/pkg/version"
)

func main() {
	flags := &commands.GlobalFlags{}

	rootCmd := &cobra.Command{
		Use:   "gitport",
		Short: "gitport migrates GitLab projects to GitHub",
		Long: `gitport migrates GitLab projects to GitHub through a staged,
resumable pipeline: discover, export, transform, plan, apply, verify.

Every stage writes its results into the artifact tree, so any stage can
be re-run or resumed without repeating earlier work.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags.Register(rootCmd)

	rootCmd.AddCommand(
		commands.NewDiscoverCommand(flags),
		commands.NewExportCommand(flags),
		commands.NewTransformCommand(flags),
		commands.NewPlanCommand(flags),
		commands.NewDryRunCommand(flags),
		commands.NewApplyCommand(flags),
		commands.NewVerifyCommand(flags),
		commands.NewFullCommand(flags),
		commands.NewBatchCommand(flags),
		commands.NewRollbackCommand(flags),
		commands.NewMCPCommand(flags),
		versionCmd(),
	)

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}

	os.Exit(commands.ExitCode(err))
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "gitport %s (commit: %s, built: %s)\n",
				version.Version, version.Commit, version.Date)
		},
	}
}
