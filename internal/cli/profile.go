package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var profileJSON bool

var profileCmd = &cobra.Command{
	Use:   "profile <user-id>",
	Short: "Show a user's memory profile",
	Long: `Show the merged memory profile for a user.

Examples:
  profiled profile alice
  profiled profile alice --json`,
	Args: cobra.ExactArgs(1),
	RunE: runProfile,
}

func init() {
	profileCmd.Flags().BoolVar(&profileJSON, "json", false, "print the raw profile as JSON")
	rootCmd.AddCommand(profileCmd)
}

func runProfile(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	profile, err := apiClient.GetProfile(ctx, args[0])
	if err != nil {
		return fmt.Errorf("get profile: %w", err)
	}

	if profileJSON {
		data, err := json.MarshalIndent(profile, "", "  ")
		if err != nil {
			return fmt.Errorf("encode profile: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Profile: %s\n", profile.UserID)
	fmt.Printf("  Version: %d\n", profile.Version)
	fmt.Printf("  Conversations: %d\n", profile.ConversationCount)
	fmt.Printf("  Messages: %d\n", profile.MessageCount)
	fmt.Printf("  Updated: %s\n", profile.UpdatedAt.Format(time.RFC3339))

	if profile.AISummary != nil && *profile.AISummary != "" {
		fmt.Printf("\nSummary (v%d):\n  %s\n", profile.AISummaryVersion, *profile.AISummary)
	}

	if len(profile.ProfileData) > 0 {
		data, err := json.MarshalIndent(profile.ProfileData, "  ", "  ")
		if err != nil {
			return fmt.Errorf("encode profile data: %w", err)
		}
		fmt.Printf("\nData:\n  %s\n", string(data))
	}
	return nil
}
