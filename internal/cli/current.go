package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var currentJSON bool

func init() {
	currentCmd.Flags().BoolVar(&currentJSON, "json", false, "Print the package as JSON")
	rootCmd.AddCommand(currentCmd)
}

var currentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the installed package",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, client, err := openEngine(false)
		if err != nil {
			return err
		}

		pkg, err := client.GetCurrentPackage(cmd.Context())
		if err != nil {
			return fmt.Errorf("reading current package: %w", err)
		}

		out := cmd.OutOrStdout()
		if currentJSON {
			data, err := json.MarshalIndent(pkg, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling package: %w", err)
			}
			fmt.Fprintln(out, string(data))
			return nil
		}

		if pkg == nil {
			fmt.Fprintln(out, "Running the bundle shipped with the binary.")
			return nil
		}
		fmt.Fprintf(out, "Label:        %s\n", pkg.Label)
		fmt.Fprintf(out, "Hash:         %s\n", pkg.PackageHash)
		fmt.Fprintf(out, "App version:  %s\n", pkg.AppVersion)
		fmt.Fprintf(out, "Deployment:   %s\n", pkg.DeploymentKey)
		fmt.Fprintf(out, "Mandatory:    %t\n", pkg.IsMandatory)
		fmt.Fprintf(out, "Pending:      %t\n", pkg.IsPending)
		fmt.Fprintf(out, "First run:    %t\n", pkg.IsFirstRun)
		fmt.Fprintf(out, "Rolled back:  %t\n", pkg.FailedInstall)
		return nil
	},
}
