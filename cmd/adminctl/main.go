package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "adminctl",
		Short:         "Operator commands for campaigns, payments and ads account links",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("actor", "adminctl", "Actor id recorded on audit events")

	rootCmd.AddCommand(refundCmd())
	rootCmd.AddCommand(campaignCmd())
	rootCmd.AddCommand(accountCmd())
	rootCmd.AddCommand(linkCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
