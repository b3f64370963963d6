package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/akrasniqi/calpush/internal/auth"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize calpush with Google Calendar",
	Long: `Run the interactive OAuth flow and save the session token to disk.
Later runs reuse the token and refresh it automatically.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		oauthConfig, err := auth.OAuthConfig(credentialsPath)
		if err != nil {
			return err
		}
		store := auth.NewFileTokenStore(tokenPath)
		if _, err := auth.Login(context.Background(), oauthConfig, store); err != nil {
			return err
		}
		fmt.Printf("Token saved to %s\n", tokenPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
}
