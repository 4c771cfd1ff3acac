// Command opsdash drives the inventory ingestion pipeline from the shell,
// against the same database the server uses.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/opsdash/internal/config"
	"github.com/JonMunkholm/opsdash/internal/core"
	"github.com/JonMunkholm/opsdash/internal/database"
	"github.com/JonMunkholm/opsdash/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "opsdash: %s\n", describe(err))
		os.Exit(1)
	}
}

// app holds the configuration loaded for every command. The store is opened
// per command so template works without a database.
type app struct {
	cfg *config.Config
}

// withService opens the store, runs fn and closes the store again.
func (a *app) withService(ctx context.Context, fn func(*core.Service) error) error {
	store, err := database.Open(ctx, a.cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(core.NewService(store, a.cfg, nil))
}

func newRootCommand() *cobra.Command {
	a := &app{}
	var logLevel string

	cmd := &cobra.Command{
		Use:   "opsdash",
		Short: "Inventory bulk ingestion CLI",
		Long: `opsdash stages CSV and XLSX inventory files, promotes staged rows into the
product catalog and manages import jobs. Configuration is read from the
environment (and a .env file), exactly as the server reads it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A missing .env is fine; explicit environment wins over it.
			_ = godotenv.Load()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Logging.Level = logLevel
			}
			logging.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
			a.cfg = cfg
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override LOG_LEVEL (debug, info, warn, error)")

	cmd.AddCommand(
		newIngestCmd(a),
		newPreviewCmd(a),
		newPromoteCmd(a),
		newJobsCmd(a),
		newInvalidRowsCmd(a),
		newDeleteCmd(a),
		newTemplateCmd(),
	)
	return cmd
}

// describe renders pipeline errors with their user-facing message and code.
func describe(err error) string {
	if !core.IsUserFacing(err) {
		return err.Error()
	}
	msg := core.FormatUserError(err)
	if id := core.JobIDOf(err); id != "" {
		msg += " [job " + id + "]"
	}
	return msg
}
