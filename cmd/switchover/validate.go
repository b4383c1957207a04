package main

import (
	"github.com/spf13/cobra"
)

func newValidateCommand(globals *globalFlags) *cobra.Command {
	flags := runFlags{}

	cmd := &cobra.Command{
		Use:   "validate <primary-context> <secondary-context>",
		Short: "Run the pre-flight validator suite and report, without mutating either hub",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.method == "" || flags.oldHubAction == "" {
				return errMissingRequired
			}
			flags.validateOnly = true
			return executeOrchestratorRun(*globals, flags, args[0], args[1])
		},
	}
	addRunFlags(cmd, &flags)
	return cmd
}
