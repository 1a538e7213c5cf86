package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mfinch/gatehouse/client"
)

var loginEmail string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store a session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		ctrl, err := restoreSession(ctx)
		if err != nil {
			return err
		}
		if err := ctrl.RequireAnonymous(ctx); err != nil {
			if errors.Is(err, client.ErrAuthenticated) {
				return loggedInError(ctrl)
			}
			return err
		}

		password, err := promptPassword("Password: ")
		if err != nil {
			return err
		}

		user, err := ctrl.Login(ctx, loginEmail, password)
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		fmt.Printf("Logged in as %s <%s>\n", user.Username, user.Email)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	addClientFlags(loginCmd)
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Email address of the account")
	loginCmd.MarkFlagRequired("email")
}
