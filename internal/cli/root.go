package cli

import (
	"context"
	"os"
	"os/signal"

	"github.com/hotload-labs/hotload/internal/branding"
	"github.com/hotload-labs/hotload/internal/config"
	"github.com/hotload-labs/hotload/internal/logger"
	"github.com/spf13/cobra"
)

var (
	buildVersion string
	buildCommit  string
	buildDate    string
)

var (
	logLevel string
	log      = logger.Nop()
)

var rootCmd = &cobra.Command{
	Use:   branding.CLIName(),
	Short: branding.Description(),
	Long: branding.DisplayName() + ` keeps the JavaScript bundle of an app in sync with its release
service: it checks for updates, downloads and installs them, and reports
deployment outcomes back to the server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config.Load()

		level := config.Get(config.KeyLogLevel)
		if cmd.Flags().Changed("log-level") {
			level = logLevel
		}
		l, err := logger.New("cli", logger.Options{
			Level:   level,
			File:    config.Get(config.KeyLogFile),
			Console: cmd.ErrOrStderr(),
		})
		if err != nil {
			return err
		}
		log = l
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
}

// Execute runs the root command with build info injected via ldflags.
func Execute(version, commit, date string) error {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Command failed.")
	}
	return err
}
