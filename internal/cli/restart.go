package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hotload-labs/hotload/internal/device"
	"github.com/hotload-labs/hotload/internal/hotload"
	"github.com/spf13/cobra"
)

var (
	restartOnlyIfPending bool
	restartNoReady       bool
	resumeAfter          time.Duration
)

func init() {
	restartCmd.Flags().BoolVar(&restartOnlyIfPending, "only-if-pending", false, "Restart only when an installed update is waiting")
	restartCmd.Flags().BoolVar(&restartNoReady, "no-ready", false, "Do not confirm the relaunched bundle (it is rolled back on the next launch)")
	resumeCmd.Flags().DurationVar(&resumeAfter, "after", 0, "How long the app spent in the background")
	resumeCmd.Flags().BoolVar(&restartNoReady, "no-ready", false, "Do not confirm the relaunched bundle")
	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(resumeCmd)
}

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Relaunch the app so a pending update runs",
	Long: `Relaunches the app. The relaunched bundle confirms it started unless
--no-ready is given, in which case the next launch rolls it back.

  hotload restart --only-if-pending
  hotload restart --no-ready`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, client, err := openEngine(false)
		if err != nil {
			return err
		}

		pending, err := hasPendingUpdate(cmd.Context(), client)
		if err != nil {
			return err
		}
		if restartOnlyIfPending && !pending {
			fmt.Fprintln(cmd.OutOrStdout(), "No pending update.")
			return nil
		}

		if err := client.RestartApp(cmd.Context(), restartOnlyIfPending); err != nil {
			return fmt.Errorf("restarting: %w", err)
		}
		return confirmLaunch(cmd, client)
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Bring the app back to the foreground",
	Long: `Applies an update installed with --install-mode on-next-resume when the app
spent at least the minimum background duration in the background.

  hotload resume --after 2m`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, client, err := openEngine(false)
		if err != nil {
			return err
		}

		restarted, err := dev.Resume(cmd.Context(), resumeAfter)
		switch {
		case errors.Is(err, device.ErrNoPendingUpdate):
			fmt.Fprintln(cmd.OutOrStdout(), "No update is waiting for a resume.")
			return nil
		case err != nil:
			return fmt.Errorf("resuming: %w", err)
		case !restarted:
			fmt.Fprintln(cmd.OutOrStdout(), "Minimum background duration not reached.")
			return nil
		}
		return confirmLaunch(cmd, client)
	},
}

func hasPendingUpdate(ctx context.Context, client *hotload.Client) (bool, error) {
	pkg, err := client.GetCurrentPackage(ctx)
	if err != nil {
		return false, fmt.Errorf("reading current package: %w", err)
	}
	return pkg != nil && pkg.IsPending, nil
}

// confirmLaunch plays the relaunched app reaching readiness.
func confirmLaunch(cmd *cobra.Command, client *hotload.Client) error {
	out := cmd.OutOrStdout()
	if restartNoReady {
		fmt.Fprintln(out, "Restarted without confirming the bundle.")
		return nil
	}
	if err := client.NotifyApplicationReady(cmd.Context()); err != nil {
		return fmt.Errorf("notifying application ready: %w", err)
	}
	fmt.Fprintln(out, "Restarted.")
	return nil
}
