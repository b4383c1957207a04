// Command switchover drives an ACM hub switchover end to end: preflight
// validation, primary-hub preparation, activation of the new hub,
// post-activation verification, finalization, and (separately)
// decommission of the old hub.
//
// Grounded on github.com/openshift/hypershift's cmd/ tree: a root cobra
// command with persistent flags (kubeconfig, log verbosity) and one
// subcommand per operator-facing action, each building its own clients
// rather than sharing a package-level global.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	os.Exit(run())
}

// run builds the command tree and executes it, translating the three
// exit codes spec.md §6 requires: 0 success, 1 failure, 130 interrupted.
func run() int {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		if err == errInterrupted {
			return 130
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

func newRootCommand() *cobra.Command {
	globals := &globalFlags{}

	cmd := &cobra.Command{
		Use:           "switchover",
		Short:         "Orchestrate an ACM hub switchover",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	addGlobalFlags(cmd, globals)

	cmd.AddCommand(
		newRunCommand(globals),
		newValidateCommand(globals),
		newDecommissionCommand(globals),
		newResumeCommand(globals),
	)
	return cmd
}
