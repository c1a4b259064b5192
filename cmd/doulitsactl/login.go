package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"doulitsa/internal/models"
)

var (
	loginIdentifier string
	loginPassword   string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and print an access token",
	Long: `Sign in with email or username. The password is read from --password
or DOULITSA_PASSWORD. The access token is printed on stdout and the refresh
token on stderr.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if loginPassword == "" {
			loginPassword = os.Getenv("DOULITSA_PASSWORD")
		}
		if loginIdentifier == "" || loginPassword == "" {
			return fmt.Errorf("--user and a password are required")
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		var out struct {
			User   models.User   `json:"user"`
			Tokens models.Tokens `json:"tokens"`
		}
		req := models.SignInRequest{Identifier: loginIdentifier, Password: loginPassword}
		if err := call(ctx, http.MethodPost, "/auth/signin", req, &out); err != nil {
			return err
		}
		log.WithField("user", out.User.Username).Debug("signed in")
		fmt.Fprintln(cmd.OutOrStdout(), out.Tokens.AccessToken)
		fmt.Fprintln(cmd.ErrOrStderr(), "refresh token:", out.Tokens.RefreshToken)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginIdentifier, "user", "u", "", "email or username")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "password")
}
