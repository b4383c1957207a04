package main

import (
	"github.com/spf13/cobra"
)

func newResumeCommand(globals *globalFlags) *cobra.Command {
	flags := runFlags{}

	cmd := &cobra.Command{
		Use:   "resume <primary-context> <secondary-context>",
		Short: "Resume a FAILED run from the phase that errored",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.method == "" || flags.oldHubAction == "" {
				return errMissingRequired
			}
			return executeOrchestratorRun(*globals, flags, args[0], args[1])
		},
	}
	addRunFlags(cmd, &flags)
	return cmd
}
