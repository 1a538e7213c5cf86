package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mfinch/gatehouse/client"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the account behind the stored session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		ctrl, err := restoreSession(ctx)
		if err != nil {
			return err
		}
		snap := ctrl.Current()
		if snap.State != client.StateAuthenticated {
			return errors.New("not logged in")
		}

		fmt.Printf("%s <%s>\n", snap.User.Username, snap.User.Email)
		fmt.Printf("  id:      %s\n", snap.User.ID)
		fmt.Printf("  created: %s\n", snap.User.CreatedAt.Format(time.RFC3339))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
	addClientFlags(whoamiCmd)
}
