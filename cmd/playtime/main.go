package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pscheid92/playtime/internal/platform/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "playtime",
		Short:         "Track Roblox play sessions of a list of users",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(tickCmd())
	rootCmd.AddCommand(historyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
