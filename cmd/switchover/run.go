package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newRunCommand(globals *globalFlags) *cobra.Command {
	flags := runFlags{}

	cmd := &cobra.Command{
		Use:   "run <primary-context> <secondary-context>",
		Short: "Execute the switchover phase pipeline from its current state through COMPLETED",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.method == "" || flags.oldHubAction == "" {
				return errMissingRequired
			}
			return executeOrchestratorRun(*globals, flags, args[0], args[1])
		},
	}
	addRunFlags(cmd, &flags)
	cmd.Flags().BoolVar(&flags.validateOnly, "validate-only", false, "run preflight validation only, without entering PRIMARY_PREP")
	return cmd
}

// executeOrchestratorRun is shared by run, validate, and resume: build
// the runtime, run the signal-aware context, drive the orchestrator, and
// always close the state engine on the way out.
func executeOrchestratorRun(globals globalFlags, flags runFlags, primaryContext, secondaryContext string) error {
	ctx, stop := withSignalContext(context.Background())
	defer stop()

	rt, err := buildRuntime(ctx, globals, flags, primaryContext, secondaryContext)
	if err != nil {
		return err
	}
	defer func() { _ = rt.closeFunc(context.Background()) }()

	if err := rt.orch.Run(ctx); err != nil {
		if ctx.Err() != nil {
			return errInterrupted
		}
		return err
	}
	if ctx.Err() != nil {
		return errInterrupted
	}
	return nil
}
