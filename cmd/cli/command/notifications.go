package command

import (
	"fmt"
	"os"
	"text/tabwriter"

	"conventionhub/cmd/cli/command/client"
	"conventionhub/internal/microservices/http-api/models"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"notif", "n"},
	Short:   "List and manage your notifications",
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List notifications, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient()
		if err != nil {
			return err
		}
		var opts client.ListOptions
		opts.UnreadOnly, _ = cmd.Flags().GetBool("unread")
		opts.Category, _ = cmd.Flags().GetString("category")
		opts.Limit, _ = cmd.Flags().GetInt("limit")
		opts.Offset, _ = cmd.Flags().GetInt("offset")

		resp, err := c.ListNotifications(cmd.Context(), opts)
		if err != nil {
			return err
		}
		if len(resp.Notifications) == 0 {
			fmt.Println("No notifications.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tCATEGORY\tREAD\tCREATED")
		for _, n := range resp.Notifications {
			read := color.YellowString("no")
			if n.IsRead {
				read = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", n.ID, n.Kind, category(n), read, n.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var readCmd = &cobra.Command{
	Use:   "read <id>",
	Short: "Mark a notification as read",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient()
		if err != nil {
			return err
		}
		if err := c.MarkRead(cmd.Context(), args[0]); err != nil {
			return err
		}
		color.Green("✓ %s marked as read", args[0])
		return nil
	},
}

var unreadCmd = &cobra.Command{
	Use:   "unread <id>",
	Short: "Mark a notification as unread",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient()
		if err != nil {
			return err
		}
		if err := c.MarkUnread(cmd.Context(), args[0]); err != nil {
			return err
		}
		color.Green("✓ %s marked as unread", args[0])
		return nil
	},
}

var readAllCmd = &cobra.Command{
	Use:   "read-all",
	Short: "Mark every notification as read",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient()
		if err != nil {
			return err
		}
		cat, _ := cmd.Flags().GetString("category")
		updated, err := c.MarkAllRead(cmd.Context(), cat)
		if err != nil {
			return err
		}
		color.Green("✓ %d notifications marked as read", updated)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a notification",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient()
		if err != nil {
			return err
		}
		if err := c.DeleteNotification(cmd.Context(), args[0]); err != nil {
			return err
		}
		color.Green("✓ %s deleted", args[0])
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show totals per type and the messenger badge",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient()
		if err != nil {
			return err
		}
		stats, err := c.Stats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("total:  %d\nunread: %d\n", stats.Total, stats.Unread)
		for _, kind := range []models.Kind{models.KindInfo, models.KindSuccess, models.KindWarning, models.KindError, models.KindSystem} {
			if n := stats.ByKind[kind]; n > 0 {
				fmt.Printf("  %-8s %d\n", kind, n)
			}
		}

		messenger, err := c.MessengerUnread(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("messages: %d unread in %d conversations\n", messenger.UnreadCount, messenger.ConversationCount)
		return nil
	},
}

func category(n models.Notification) string {
	if n.Category == nil {
		return "-"
	}
	return *n.Category
}

func init() {
	notificationsCmd.AddCommand(listCmd, readCmd, unreadCmd, readAllCmd, deleteCmd, statsCmd)

	listCmd.Flags().Bool("unread", false, "Only unread notifications")
	listCmd.Flags().StringP("category", "c", "", "Filter by category")
	listCmd.Flags().IntP("limit", "l", 20, "Page size (max 100)")
	listCmd.Flags().Int("offset", 0, "Rows to skip")

	readAllCmd.Flags().StringP("category", "c", "", "Only this category")
}
