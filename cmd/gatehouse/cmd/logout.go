package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mfinch/gatehouse/client"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Discard the stored session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Logout is purely local, so skip the restore round-trip.
		c, err := newAuthClient()
		if err != nil {
			return err
		}
		ctrl := client.NewSessionController(c)
		if err := ctrl.Logout(); err != nil {
			return fmt.Errorf("failed to clear session token: %w", err)
		}
		fmt.Println("Logged out")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
	addClientFlags(logoutCmd)
}
