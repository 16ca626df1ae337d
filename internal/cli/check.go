package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkDeploymentKey string

func init() {
	checkCmd.Flags().StringVar(&checkDeploymentKey, "deployment-key", "", "Check against this deployment instead of the configured one")
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the release service for an applicable update",
	Long: `Asks the release service whether an update exists for the running app
version and installed package, without downloading it.

  hotload check
  hotload check --deployment-key staging-key`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireDeploymentKey(checkDeploymentKey); err != nil {
			return err
		}
		_, client, err := openEngine(false)
		if err != nil {
			return err
		}

		remote, err := client.CheckForUpdate(cmd.Context(), checkDeploymentKey)
		if err != nil {
			return fmt.Errorf("checking for update: %w", err)
		}

		out := cmd.OutOrStdout()
		if remote == nil {
			fmt.Fprintln(out, "App is up to date.")
			return nil
		}

		fmt.Fprintf(out, "Update available: %s (%s)\n", remote.Label, remote.PackageHash)
		if remote.Description != "" {
			fmt.Fprintf(out, "  %s\n", remote.Description)
		}
		if remote.IsMandatory {
			fmt.Fprintln(out, "  mandatory")
		}
		if remote.FailedInstall {
			fmt.Fprintln(out, "  previously rolled back on this device")
		}
		return nil
	},
}
