package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd is the base command. Running the binary with no subcommand
// starts the API server, which keeps the container entrypoint a bare
// binary name.
var rootCmd = &cobra.Command{
	Use:   "portal",
	Short: "Bjugstad Utleie customer portal backend",
	Long: `Backend for the Bjugstad Utleie customer and admin portal.

Serves the portal API, reconciles identity provider logins against
provisioned users, and mirrors customer companies from the rental system.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
