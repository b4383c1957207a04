package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newDecommissionCommand(globals *globalFlags) *cobra.Command {
	flags := runFlags{}
	var nonInteractive bool

	cmd := &cobra.Command{
		Use:   "decommission <old-hub-context> <new-hub-context>",
		Short: "Tear down the old hub's managed-cluster and MultiClusterHub resources",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !nonInteractive {
				ok, err := confirmDecommission(args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("decommission of %s not confirmed", args[0])
				}
			}
			return executeDecommission(*globals, flags, args[0], args[1])
		},
	}
	addRunFlags(cmd, &flags)
	cmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "skip the confirmation prompt")
	return cmd
}

func confirmDecommission(oldHubContext string) (bool, error) {
	fmt.Fprintf(os.Stdout, "This will permanently delete managed clusters and the MultiClusterHub on %q. Type the context name to confirm: ", oldHubContext)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	return strings.TrimSpace(line) == oldHubContext, nil
}

func executeDecommission(globals globalFlags, flags runFlags, oldHubContext, newHubContext string) error {
	ctx, stop := withSignalContext(context.Background())
	defer stop()

	// old_hub_action is irrelevant to decommission itself; fix it to a
	// valid value so buildRuntime's validation passes.
	flags.oldHubAction = "decommission"
	if flags.method == "" {
		flags.method = "passive"
	}

	rt, err := buildRuntime(ctx, globals, flags, oldHubContext, newHubContext)
	if err != nil {
		return err
	}
	defer func() { _ = rt.closeFunc(context.Background()) }()

	if err := rt.orch.RunDecommission(ctx); err != nil {
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
