package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage stored conversations",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored conversations",
	RunE:  runSessionsList,
}

var sessionsSwitchCmd = &cobra.Command{
	Use:   "switch <session-id>",
	Short: "Switch the active conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsSwitch,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsSwitchCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx := context.Background()
	if err := rt.sync.Load(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	sessions := rt.sync.Sessions()
	if len(sessions) == 0 {
		fmt.Println("No sessions yet.")
		return nil
	}

	current := rt.sync.CurrentSessionID()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tTURNS\tUPDATED\t")
	for _, sess := range sessions {
		marker := ""
		if sess.ID == current {
			marker = "*"
		}
		fmt.Fprintf(w, "%s%s\t%s\t%d\t%s\t\n",
			marker, sess.ID, sess.Title, len(sess.Turns),
			sess.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func runSessionsSwitch(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx := context.Background()
	if err := rt.sync.Load(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	if err := rt.sync.SwitchToSession(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("Switched to %s\n", args[0])
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx := context.Background()
	if err := rt.sync.Load(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	if err := rt.sync.DeleteSession(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted %s\n", args[0])
	return nil
}
