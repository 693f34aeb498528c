package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/gitport/internal/pipeline"
)

// NewDiscoverCommand inventories the source scope without exporting.
func NewDiscoverCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Inventory source projects and assess migration readiness",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMode(cmd, flags, pipeline.ModeDiscoverOnly, modeOptions{})
		},
	}
}

// NewExportCommand extracts every component into the artifact tree.
func NewExportCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Export the source project into the artifact tree",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMode(cmd, flags, pipeline.ModeExportOnly, modeOptions{})
		},
	}
}

// NewTransformCommand converts exported data to destination formats.
func NewTransformCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "transform",
		Short: "Convert exported data into destination formats",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMode(cmd, flags, pipeline.ModeTransformOnly, modeOptions{})
		},
	}
}

// NewPlanCommand builds the migration plan.
func NewPlanCommand(flags *GlobalFlags) *cobra.Command {
	var direct bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Build the ordered migration plan",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mode := pipeline.ModePlanOnly
			if direct {
				mode = pipeline.ModeSingleProject
			}

			return runMode(cmd, flags, mode, modeOptions{})
		},
	}

	cmd.Flags().BoolVar(&direct, "direct", false,
		"skip discovery and resolve the project directly")

	return cmd
}

// NewDryRunCommand simulates the plan without destination writes.
func NewDryRunCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "dry-run",
		Short: "Simulate the migration without writing to the destination",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMode(cmd, flags, pipeline.ModeDryRun, modeOptions{})
		},
	}
}

// NewApplyCommand executes the plan against the destination.
func NewApplyCommand(flags *GlobalFlags) *cobra.Command {
	var opts modeOptions

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Execute the migration plan against the destination",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMode(cmd, flags, pipeline.ModeApply, opts)
		},
	}

	cmd.Flags().StringVar(&opts.ResumeFrom, "resume-from", "",
		"resume the pipeline at this stage (export, transform, plan, apply)")
	cmd.Flags().IntVar(&opts.ResumeActionID, "resume-action", 0,
		"skip plan actions with smaller ids, trusting the prior execution record")
	cmd.Flags().StringArrayVar(&opts.Inputs, "input", nil,
		"operator-supplied secret as KEY=VALUE, repeatable")

	return cmd
}

// NewVerifyCommand compares the destination against the expected state.
func NewVerifyCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Verify the destination against the exported state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMode(cmd, flags, pipeline.ModeVerify, modeOptions{})
		},
	}
}

// NewFullCommand runs every stage end to end.
func NewFullCommand(flags *GlobalFlags) *cobra.Command {
	var opts modeOptions

	cmd := &cobra.Command{
		Use:   "full",
		Short: "Run the whole migration: discover through verify",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMode(cmd, flags, pipeline.ModeFull, opts)
		},
	}

	cmd.Flags().StringVar(&opts.ResumeFrom, "resume-from", "",
		"resume the pipeline at this stage")
	cmd.Flags().StringArrayVar(&opts.Inputs, "input", nil,
		"operator-supplied secret as KEY=VALUE, repeatable")

	return cmd
}
