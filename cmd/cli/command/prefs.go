package command

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"conventionhub/internal/microservices/http-api/dto"

	"github.com/spf13/cobra"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show or change notification preferences",
}

var prefsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show in-app and email settings per category",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient()
		if err != nil {
			return err
		}
		resp, err := c.GetPreferences(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CATEGORY\tIN-APP\tEMAIL")
		for _, cat := range resp.Categories {
			fmt.Fprintf(w, "%s\t%s\t%s\n", cat, onOff(resp.Preferences.Allows(cat)), onOff(resp.Preferences.AllowsEmail(cat)))
		}
		return w.Flush()
	},
}

var prefsSetCmd = &cobra.Command{
	Use:   "set <category>=<on|off> ...",
	Short: "Change settings, e.g. `prefs set new_message=off --email`",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		changes, err := parseToggles(args)
		if err != nil {
			return err
		}
		var req dto.UpdatePreferencesRequest
		if email, _ := cmd.Flags().GetBool("email"); email {
			req.Email = changes
		} else {
			req.InApp = changes
		}

		c, err := authedClient()
		if err != nil {
			return err
		}
		if _, err := c.UpdatePreferences(cmd.Context(), req); err != nil {
			return err
		}
		return prefsGetCmd.RunE(cmd, nil)
	},
}

// parseToggles reads category=on|off pairs
func parseToggles(args []string) (map[string]bool, error) {
	out := make(map[string]bool, len(args))
	for _, arg := range args {
		cat, val, ok := strings.Cut(arg, "=")
		if !ok || cat == "" {
			return nil, fmt.Errorf("expected category=on|off, got %q", arg)
		}
		switch strings.ToLower(val) {
		case "on":
			out[cat] = true
		case "off":
			out[cat] = false
		default:
			b, err := strconv.ParseBool(val)
			if err != nil {
				return nil, fmt.Errorf("invalid value for %s: %q", cat, val)
			}
			out[cat] = b
		}
	}
	return out, nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func init() {
	prefsCmd.AddCommand(prefsGetCmd, prefsSetCmd)
	prefsSetCmd.Flags().Bool("email", false, "Change the email channel instead of in-app")
}
