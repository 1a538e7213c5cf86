package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mfinch/gatehouse/client"
)

var (
	registerEmail    string
	registerUsername string
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and start a session",
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

		password, err := promptNewPassword()
		if err != nil {
			return err
		}

		user, err := ctrl.Register(ctx, registerEmail, registerUsername, password)
		if err != nil {
			return fmt.Errorf("registration failed: %w", err)
		}
		fmt.Printf("Registered and logged in as %s <%s>\n", user.Username, user.Email)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(registerCmd)
	addClientFlags(registerCmd)
	registerCmd.Flags().StringVar(&registerEmail, "email", "", "Email address for the new account")
	registerCmd.Flags().StringVar(&registerUsername, "username", "", "Username for the new account")
	registerCmd.MarkFlagRequired("email")
	registerCmd.MarkFlagRequired("username")
}
