package run

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/evanfuller/autoloop/cmd/autoloop/logging"
	"github.com/evanfuller/autoloop/harness"
)

var (
	flagProjectDir    string
	flagMaxIterations int
	flagModel         string
)

// Cmd represents the `autoloop run` command.
var Cmd = &cobra.Command{
	Use:           "run [project-dir]",
	Short:         "Run the agent loop against a project directory",
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := harness.LoadConfig()
		if err != nil {
			return err
		}

		// Flags win over environment; the positional argument is an
		// alternative spelling of --project-dir.
		if len(args) == 1 {
			cfg.ProjectDir = args[0]
		}
		if flagProjectDir != "" {
			cfg.ProjectDir = flagProjectDir
		}
		if cmd.Flags().Changed("max-iterations") {
			cfg.MaxIterations = flagMaxIterations
		}
		if flagModel != "" {
			cfg.Model = flagModel
		}
		if err := cfg.Normalize(); err != nil {
			return err
		}

		printBanner(cmd.OutOrStdout(), cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return harness.New(cfg, logging.New()).Run(ctx)
	},
}

func printBanner(w io.Writer, cfg harness.Config) {
	fmt.Fprintln(w, "AUTONOMOUS CODING AGENT")
	fmt.Fprintf(w, "Project directory: %s\n", cfg.ProjectDir)
	fmt.Fprintf(w, "Model: %s\n", cfg.Model)
	fmt.Fprintf(w, "Max iterations: %d\n", cfg.MaxIterations)
	fmt.Fprintln(w)
}

func init() {
	Cmd.Flags().StringVar(&flagProjectDir, "project-dir", "", "Project directory (default: current directory)")
	Cmd.Flags().IntVar(&flagMaxIterations, "max-iterations", 5, "Maximum number of agent sessions")
	Cmd.Flags().StringVar(&flagModel, "model", "", "Model identifier for agent sessions")
}
