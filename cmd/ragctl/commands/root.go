// Package commands defines the Cobra commands of the ragctl binary.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tenantrag/internal/bootstrap"
	"tenantrag/internal/config"
	"tenantrag/internal/pkg/logger"
)

// configPath holds the --config flag; empty keeps CONFIG_FILE or the default.
var configPath string

var (
	cfg *config.Config
	log *logger.Logger
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ragctl",
		Short: "Administer a tenantrag deployment",
		Long: `ragctl manages the state shared by the tenantrag processes.

It reads the same configuration as the server (configs/config.toml, .env and
environment variables) and connects to the same database, Redis, RabbitMQ,
blob store and vector store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if configPath != "" {
				if err := os.Setenv("CONFIG_FILE", configPath); err != nil {
					return err
				}
			}
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			cfg = loaded

			l, err := logger.New(cfg.Log.Mode)
			if err != nil {
				return fmt.Errorf("init logger failed: %w", err)
			}
			log = l.With("command", cmd.Name())
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if log != nil {
				log.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to the TOML config file (default: configs/config.toml)")

	root.AddCommand(
		NewMigrateCmd(),
		NewTenantCmd(),
		NewUserCmd(),
		NewIndexCmd(),
	)
	return root
}

// openApp connects to every backing service. The caller closes it.
func openApp(cmd *cobra.Command) (*bootstrap.App, error) {
	a, err := bootstrap.New(cmd.Context(), cfg, log)
	if err != nil {
		return nil, fmt.Errorf("connect failed: %w", err)
	}
	return a, nil
}

func closeApp(a *bootstrap.App) {
	if err := a.Close(); err != nil {
		log.Warn("close resources failed", "error", err)
	}
}
