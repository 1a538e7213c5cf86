package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mfinch/gatehouse/client"
)

// Flags shared by the account commands (register, login, whoami, logout).
var (
	serverURL string
	tokenFile string
)

func addClientFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Base URL of the gatehouse server")
	cmd.Flags().StringVar(&tokenFile, "token-file", "", "Path to the session token file (default: OS config dir)")
}

// newAuthClient builds an API client backed by the on-disk token store.
func newAuthClient() (*client.Client, error) {
	path := tokenFile
	if path == "" {
		p, err := client.DefaultTokenPath()
		if err != nil {
			return nil, fmt.Errorf("failed to locate token file: %w", err)
		}
		path = p
	}
	return client.New(serverURL, client.WithTokenStore(client.NewFileTokenStore(path))), nil
}

// restoreSession builds a session controller and resolves any persisted
// token against the server before returning.
func restoreSession(ctx context.Context) (*client.SessionController, error) {
	c, err := newAuthClient()
	if err != nil {
		return nil, err
	}
	ctrl := client.NewSessionController(c)
	ctrl.Restore(ctx)
	return ctrl, nil
}

// loggedInError tells the user how to end the current session first.
func loggedInError(ctrl *client.SessionController) error {
	if snap := ctrl.Current(); snap.User != nil {
		return fmt.Errorf("already logged in as %s; run 'gatehouse logout' first", snap.User.Username)
	}
	return errors.New("already logged in; run 'gatehouse logout' first")
}
