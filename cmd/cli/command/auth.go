package command

import (
	"fmt"
	"time"

	"conventionhub/cmd/cli/authentication"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// authCmd groups credential handling. Tokens are issued by the account
// service; notifyctl only stores one.
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authentication commands",
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store an access token in the OS keyring",
	RunE: func(cmd *cobra.Command, args []string) error {
		accessToken, _ := cmd.Flags().GetString("token")
		creds, err := authentication.FromToken(accessToken)
		if err != nil {
			return err
		}
		if creds.Expired(time.Now()) {
			return fmt.Errorf("token already expired")
		}
		if err := authentication.StoreTokens(creds); err != nil {
			return fmt.Errorf("failed to store token: %w", err)
		}

		color.Green("✓ Logged in as %s", creds.UserID)
		if creds.ExpiresAt != 0 {
			fmt.Printf("Token expires at %s\n", time.Unix(creds.ExpiresAt, 0).Format(time.RFC1123))
		}
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := authentication.DeleteTokens(); err != nil {
			return err
		}
		color.Green("✓ Successfully logged out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the stored identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		creds, err := authentication.GetTokens()
		if err != nil {
			return err
		}
		fmt.Printf("user: %s\nrole: %s\n", creds.UserID, creds.Role)
		if creds.Expired(time.Now()) {
			color.Red("token expired")
		}
		return nil
	},
}

func init() {
	authCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd)

	loginCmd.Flags().StringP("token", "t", "", "Access token (JWT)")
	loginCmd.MarkFlagRequired("token")
}
