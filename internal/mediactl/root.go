// Package mediactl is the operator tool for the media store: key backfill
// for legacy accounts, at-rest verification of a user's blobs, and token
// cleanup.
package mediactl

import (
	"fmt"
	"log/slog"

	"github.com/dmitrijs2005/miloc/internal/logging"
	"github.com/dmitrijs2005/miloc/internal/server/config"
	"github.com/spf13/cobra"
)

type options struct {
	configPath     string
	dsn            string
	mediaRoot      string
	storageBackend string
	logFormat      string
	logLevel       string
}

// state carries the opened Env from the root pre-run to subcommands.
type state struct {
	env *Env
}

// loadConfig resolves defaults, then the JSON file, then the flags that were
// set explicitly.
func (o *options) loadConfig(cmd *cobra.Command) *config.Config {
	var args []string
	if o.configPath != "" {
		args = []string{"-c", o.configPath}
	}
	cfg := config.FromArgs(args)

	flags := cmd.Flags()
	if flags.Changed("dsn") {
		cfg.DatabaseDSN = o.dsn
	}
	if flags.Changed("media-root") {
		cfg.MediaRoot = o.mediaRoot
	}
	if flags.Changed("storage") {
		cfg.StorageBackend = o.storageBackend
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	cfg.LogFormat = o.logFormat

	return cfg
}

func NewRootCmd(open Opener) *cobra.Command {
	var o options
	st := &state{}

	root := &cobra.Command{
		Use:   "mediactl",
		Short: "Operator tool for the miloc media store",
		Long: `mediactl works directly against the database and blob store.

Commands:
  backfill-keys   generate media keys for accounts that have none
  verify          decrypt every asset of a user in memory and report failures
  purge-tokens    delete expired refresh tokens`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg := o.loadConfig(cmd)

			h := logging.NewHandler(cmd.ErrOrStderr(), cfg.LogFormat, logging.ParseLevel(cfg.LogLevel))
			logger := logging.NewSlogLogger(slog.New(h))

			env, err := open(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("open: %w", err)
			}
			st.env = env
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return st.env.Close()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&o.configPath, "config", "c", "", "path to JSON config file")
	pf.StringVar(&o.dsn, "dsn", "", "PostgreSQL DSN")
	pf.StringVar(&o.mediaRoot, "media-root", "", "media root directory (fs backend)")
	pf.StringVar(&o.storageBackend, "storage", "", "storage backend (fs|s3)")
	pf.StringVar(&o.logFormat, "log-format", "text", "log format (json|text)")
	pf.StringVar(&o.logLevel, "log-level", "warn", "log level")

	root.AddCommand(newBackfillCmd(st))
	root.AddCommand(newVerifyCmd(st))
	root.AddCommand(newPurgeTokensCmd(st))

	return root
}
