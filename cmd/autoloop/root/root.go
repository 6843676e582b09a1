package root

import (
	"github.com/spf13/cobra"

	"github.com/evanfuller/autoloop/cmd/autoloop/logging"
	"github.com/evanfuller/autoloop/cmd/autoloop/run"
	"github.com/evanfuller/autoloop/cmd/autoloop/serve"
	"github.com/evanfuller/autoloop/cmd/autoloop/setup"
	"github.com/evanfuller/autoloop/cmd/autoloop/version"
)

// NewRootCmd creates the root command for autoloop.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autoloop",
		Short: "Run an autonomous coding agent against a project in bounded sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Show help when no subcommand is provided.
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	logging.AddFlags(cmd.PersistentFlags())

	cmd.AddCommand(run.Cmd)
	cmd.AddCommand(serve.Cmd)
	cmd.AddCommand(setup.Cmd)
	cmd.AddCommand(version.Cmd)

	return cmd
}

// Execute runs the root command with the provided args.
func Execute(args []string) error {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	return cmd.Execute()
}
