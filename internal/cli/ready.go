package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(readyCmd)
}

var readyCmd = &cobra.Command{
	Use:   "ready",
	Short: "Confirm the running bundle started successfully",
	Long: `Marks the running package as good so it is not rolled back on the next
launch, then sends any pending deployment status report.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, client, err := openEngine(true)
		if err != nil {
			return err
		}
		if err := client.NotifyApplicationReady(cmd.Context()); err != nil {
			return fmt.Errorf("notifying application ready: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Application ready.")
		return nil
	},
}
