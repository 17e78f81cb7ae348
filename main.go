// crm-notifier serves the CRM notification API and runs the daily task
// reminder pass.
//
// Usage:
//
//	crm-notifier serve
//	crm-notifier dispatch
//	crm-notifier whatsapp-status
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	envFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "crm-notifier",
		Short:         "CRM task reminders over WhatsApp and email",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before the environment")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(dispatchCmd())
	rootCmd.AddCommand(whatsappStatusCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
