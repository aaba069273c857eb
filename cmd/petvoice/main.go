// Command petvoice runs the subscription reconciliation service and its
// operational tasks.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	envFiles []string
	version  = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "petvoice",
	Short: "PetVoice subscription state reconciliation service",
	Long: `petvoice keeps the local subscriber records in step with the billing provider.

It serves the subscription API and the billing webhook, applies database
migrations and offers operator commands for individual subscribers.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files to load before reading the environment")
	rootCmd.AddCommand(serveCmd, migrateCmd, subscriberCmd)
}
