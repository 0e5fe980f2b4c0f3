package command

import (
	"fmt"
	"strings"

	"conventionhub/internal/microservices/http-api/dto"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var presenceCmd = &cobra.Command{
	Use:   "presence",
	Short: "Announce or inspect presence in a conversation",
}

var joinCmd = &cobra.Command{
	Use:   "join <conversation-id>",
	Short: "Mark yourself present",
	Long:  "Mark yourself present. Needs a notification stream open for the same account, e.g. `notifyctl stream` in another terminal, or use `notifyctl stream --ws --join <id>`.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient()
		if err != nil {
			return err
		}
		resp, err := c.JoinPresence(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printPresence(resp)
		return nil
	},
}

var leaveCmd = &cobra.Command{
	Use:   "leave <conversation-id>",
	Short: "Mark yourself absent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient()
		if err != nil {
			return err
		}
		resp, err := c.LeavePresence(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printPresence(resp)
		return nil
	},
}

var whoCmd = &cobra.Command{
	Use:   "who <conversation-id>",
	Short: "List who is present",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient()
		if err != nil {
			return err
		}
		resp, err := c.PresentUsers(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printPresence(resp)
		return nil
	},
}

func printPresence(resp *dto.PresenceResponse) {
	if resp.Changed != nil && !*resp.Changed {
		color.HiBlack("(no change)")
	}
	fmt.Printf("%s: %d present", resp.ConversationID, resp.Count)
	if resp.Count > 0 {
		fmt.Printf(" (%s)", strings.Join(resp.PresentUsers, ", "))
	}
	fmt.Println()
}

func init() {
	presenceCmd.AddCommand(joinCmd, leaveCmd, whoCmd)
}
