package command

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"conventionhub/cmd/cli/command/client"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Follow live notifications until Ctrl+C",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient()
		if err != nil {
			return err
		}
		useWS, _ := cmd.Flags().GetBool("ws")
		conversations, _ := cmd.Flags().GetStringSlice("join")
		if len(conversations) > 0 && !useWS {
			return fmt.Errorf("--join needs --ws")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("\n🔌 Connecting to %s...\n", apiURL)
		if useWS {
			err = c.ListenWS(ctx, conversations, client.PrintEvent)
		} else {
			err = c.Listen(ctx, client.PrintEvent)
		}
		if err != nil {
			return err
		}
		color.HiBlack("stream closed")
		return nil
	},
}

func init() {
	streamCmd.Flags().Bool("ws", false, "Use the websocket transport instead of SSE")
	streamCmd.Flags().StringSlice("join", nil, "Conversations to be present in while streaming (websocket only)")
}
