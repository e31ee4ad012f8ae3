package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/haeun/whatif/internal/config"
	"github.com/haeun/whatif/pkg/identity"
)

var loginEmail string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in a local profile",
	Long: `Sign in a local profile. Signed-in conversations are written to the
remote chat database in addition to the local store.`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out the current profile",
	RunE:  runLogout,
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "profile email")
	loginCmd.MarkFlagRequired("email")
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	resolver := identity.NewFileResolver(cfg.DataDir)
	user := identity.User{
		ID:    uuid.NewString(),
		Email: loginEmail,
	}

	// Keep the existing id when re-signing the same profile
	if existing, err := resolver.CurrentUser(cmd.Context()); err == nil && existing != nil && existing.Email == loginEmail {
		user.ID = existing.ID
	}

	if err := resolver.Save(user); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	fmt.Printf("Signed in as %s (%s)\n", user.Email, user.ID)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	resolver := identity.NewFileResolver(cfg.DataDir)
	if err := resolver.Clear(); err != nil {
		return fmt.Errorf("failed to clear profile: %w", err)
	}

	fmt.Println("Signed out.")
	return nil
}
