package serve

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/evanfuller/autoloop/cmd/autoloop/logging"
	"github.com/evanfuller/autoloop/feature"
	"github.com/evanfuller/autoloop/featureapi"
)

var flagPort int

// Cmd represents the `autoloop serve` command. It runs the feature API
// on its own, without an agent, for inspecting or editing the queue.
var Cmd = &cobra.Command{
	Use:           "serve [project-dir]",
	Short:         "Run only the feature API server",
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := ""
		if len(args) == 1 {
			dir = args[0]
		}
		if dir == "" {
			wd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("determine working directory: %w", err)
			}
			dir = wd
		}
		dir, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("resolve project directory: %w", err)
		}

		store, err := feature.Open(dir)
		if err != nil {
			return err
		}
		defer store.Close()

		logger := logging.New()
		addr := fmt.Sprintf("127.0.0.1:%d", flagPort)
		logger.Info("feature API listening", "addr", addr, "project", dir)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return featureapi.NewServer(store, logger).ListenAndServe(ctx, addr)
	},
}

func init() {
	Cmd.Flags().IntVar(&flagPort, "port", 8765, "Port to listen on (loopback only)")
}
