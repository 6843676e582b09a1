package setup

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/evanfuller/autoloop/pathenv"
)

// Cmd represents the `autoloop setup` command. It appends the directory
// holding the autoloop binary to PATH via the user's shell profile.
// Running it again is a no-op.
var Cmd = &cobra.Command{
	Use:           "setup",
	Short:         "Add the autoloop install directory to your shell PATH",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("locate executable: %w", err)
		}
		dir := filepath.Dir(exe)

		profile, err := pathenv.ProfilePath()
		if err != nil {
			return err
		}

		added, err := pathenv.EnsurePath(profile, dir)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if added {
			fmt.Fprintf(out, "Added %s to PATH in %s\n", dir, profile)
			fmt.Fprintln(out, "Restart your shell or source the profile for the change to take effect.")
		} else {
			fmt.Fprintf(out, "%s is already on PATH in %s\n", dir, profile)
		}
		return nil
	},
}
