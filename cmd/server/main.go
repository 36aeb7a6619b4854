package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"luwei/pkg/platform/secrets"
)

var Version = "dev"

// main wires the command tree. Business logic lives in the internal service packages.
func main() {
	rootCmd := &cobra.Command{
		Use:           "luwei",
		Short:         "Storefront API for the luwei deli",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(genSecretCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func genSecretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gen-secret",
		Short: "Print a random value suitable for SESSION_SECRET or API_KEY",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := secrets.Generate()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), secret)
			return nil
		},
	}
}
