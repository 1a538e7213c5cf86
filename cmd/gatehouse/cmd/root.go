package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is stamped at build time with
// -ldflags "-X github.com/mfinch/gatehouse/cmd/gatehouse/cmd.Version=...".
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "gatehouse",
	Short: "Gatehouse is a credential and session service",
	Long: `A credential and session service that registers accounts, verifies passwords
and issues signed session tokens over a small REST API.
Complete documentation is available at https://github.com/mfinch/gatehouse`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
