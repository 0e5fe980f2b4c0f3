package command

// root.go defines the root command of notifyctl and its global flags.

import (
	"fmt"
	"os"
	"time"

	"conventionhub/cmd/cli/authentication"
	"conventionhub/cmd/cli/command/client"

	"github.com/spf13/cobra"
)

var apiURL string // Global flag for API server URL

var rootCmd = &cobra.Command{
	Use:   "notifyctl",
	Short: "notifyctl - conventionhub notifications from the terminal",
	Long: `notifyctl talks to the conventionhub notification API. It can:
- list, read and delete your notifications
- change which categories reach you in-app or by email
- follow the live stream (SSE or websocket)
- announce presence in a conversation

Use "notifyctl command --help" to see all available commands.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command. Called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	defaultURL := os.Getenv("NOTIFYCTL_API")
	if defaultURL == "" {
		defaultURL = "http://localhost:8080"
	}
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", defaultURL, "API server URL")

	rootCmd.AddCommand(authCmd, notificationsCmd, prefsCmd, presenceCmd, streamCmd)
}

// authedClient returns an HTTP client carrying the stored access token
func authedClient() (*client.HTTPClient, error) {
	creds, err := authentication.GetTokens()
	if err != nil {
		return nil, err
	}
	if creds.Expired(time.Now()) {
		return nil, fmt.Errorf("stored token expired, log in again")
	}
	c := client.NewHTTPClient(apiURL)
	c.SetToken(creds.AccessToken)
	return c, nil
}
