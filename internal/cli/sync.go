package cli

import (
	"fmt"

	"github.com/hotload-labs/hotload/internal/hotload"
	"github.com/spf13/cobra"
)

var (
	syncDeploymentKey        string
	syncInstallMode          string
	syncMandatoryInstallMode string
	syncMinBackground        int
	syncIgnoreFailed         bool
	syncDialog               bool
	syncAppendDescription    bool
	syncNoProgress           bool
)

func init() {
	syncCmd.Flags().StringVar(&syncDeploymentKey, "deployment-key", "", "Sync against this deployment instead of the configured one")
	syncCmd.Flags().StringVar(&syncInstallMode, "install-mode", "on-next-restart", "Install mode for optional updates (immediate, on-next-restart, on-next-resume)")
	syncCmd.Flags().StringVar(&syncMandatoryInstallMode, "mandatory-install-mode", "immediate", "Install mode for mandatory updates")
	syncCmd.Flags().IntVar(&syncMinBackground, "minimum-background-duration", 0, "Seconds in background before an on-next-resume install applies")
	syncCmd.Flags().BoolVar(&syncIgnoreFailed, "ignore-failed-updates", true, "Skip updates that were rolled back before")
	syncCmd.Flags().BoolVar(&syncDialog, "dialog", false, "Ask for confirmation before installing")
	syncCmd.Flags().BoolVar(&syncAppendDescription, "append-description", false, "Show the release description in the confirmation")
	syncCmd.Flags().BoolVar(&syncNoProgress, "no-progress", false, "Do not render a download progress bar")
	rootCmd.AddCommand(syncCmd)
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Check for, download and install an update",
	Long: `Runs one full sync: confirms the running bundle, reports pending deployment
status, checks for an update and, when one applies, downloads and installs it.

  hotload sync
  hotload sync --dialog --append-description
  hotload sync --install-mode on-next-resume --minimum-background-duration 60`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireDeploymentKey(syncDeploymentKey); err != nil {
			return err
		}

		opts, err := syncOptionsFromFlags()
		if err != nil {
			return err
		}

		dev, client, err := openEngine(true, hotload.WithPresenter(newPromptPresenter(cmd.InOrStdin(), cmd.ErrOrStderr())))
		if err != nil {
			return err
		}

		var onProgress func(hotload.DownloadProgress)
		var bar *progressRenderer
		if !syncNoProgress {
			bar = newProgressRenderer(cmd.ErrOrStderr())
			onProgress = bar.observe
		}

		status, err := client.Sync(cmd.Context(), opts, func(s hotload.SyncStatus) {
			if bar != nil && s != hotload.StatusDownloadingPackage {
				bar.finish()
			}
			log.Info().Str("status", s.String()).Msg(statusMessage(s))
		}, onProgress)
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		if status == hotload.StatusUpdateInstalled {
			if err := confirmRelaunch(cmd.Context(), dev); err != nil {
				return fmt.Errorf("confirming restarted bundle: %w", err)
			}
		}

		fmt.Fprintln(cmd.OutOrStdout(), status)
		return nil
	},
}

func syncOptionsFromFlags() (*hotload.SyncOptions, error) {
	mode, err := hotload.ParseInstallMode(syncInstallMode)
	if err != nil {
		return nil, fmt.Errorf("--install-mode: %w", err)
	}
	mandatory, err := hotload.ParseInstallMode(syncMandatoryInstallMode)
	if err != nil {
		return nil, fmt.Errorf("--mandatory-install-mode: %w", err)
	}
	if syncMinBackground < 0 {
		return nil, fmt.Errorf("--minimum-background-duration must not be negative")
	}

	opts := &hotload.SyncOptions{
		DeploymentKey:             syncDeploymentKey,
		IgnoreFailedUpdates:       hotload.Bool(syncIgnoreFailed),
		InstallMode:               mode,
		MandatoryInstallMode:      mandatory,
		MinimumBackgroundDuration: syncMinBackground,
	}
	if syncDialog || syncAppendDescription {
		opts.UpdateDialog = &hotload.UpdateDialog{AppendReleaseDescription: syncAppendDescription}
	}
	return opts, nil
}

func statusMessage(s hotload.SyncStatus) string {
	switch s {
	case hotload.StatusCheckingForUpdate:
		return "Checking for update."
	case hotload.StatusAwaitingUserAction:
		return "Awaiting user action."
	case hotload.StatusDownloadingPackage:
		return "Downloading package."
	case hotload.StatusInstallingUpdate:
		return "Installing update."
	case hotload.StatusUpToDate:
		return "App is up to date."
	case hotload.StatusUpdateIgnored:
		return "User cancelled the update."
	case hotload.StatusUpdateInstalled:
		return "Update is installed."
	case hotload.StatusSyncInProgress:
		return "Sync already in progress."
	default:
		return "An unknown error occurred."
	}
}
