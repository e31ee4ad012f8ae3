package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync status",
	Long:  `Show the signed-in profile, store locations and session counts.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx := context.Background()
	if err := rt.sync.Load(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	user, err := rt.resolver.CurrentUser(ctx)
	if err != nil || user == nil {
		fmt.Println("Profile: anonymous")
	} else {
		fmt.Printf("Profile: %s (%s)\n", user.Email, user.ID)
	}

	fmt.Printf("Local store: %s\n", rt.local.Dir())
	if rt.remote != nil {
		fmt.Printf("Remote store: %s\n", rt.cfg.Remote.DatabasePath)
	} else {
		fmt.Println("Remote store: unavailable")
	}

	sessions := rt.sync.Sessions()
	fmt.Printf("Sessions: %d\n", len(sessions))
	if current, ok := rt.sync.CurrentSession(); ok {
		fmt.Printf("Active: %s (%q, %d turns)\n", current.ID, current.Title, len(current.Turns))
	} else {
		fmt.Println("Active: none")
	}

	return nil
}
