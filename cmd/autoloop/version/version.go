package version

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Overridable at build time via -ldflags.
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// Cmd represents the `autoloop version` command.
var Cmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "autoloop %s\n", summary())
		return err
	},
}

func summary() string {
	s := Version
	if Commit != "" {
		c := Commit
		if len(c) > 7 {
			c = c[:7]
		}
		s += " (" + c + ")"
	}
	if Date != "" {
		s += " built " + Date
	}
	return s + " " + runtime.Version()
}
