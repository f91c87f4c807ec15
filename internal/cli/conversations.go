package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/raphaelgruber/profiled-go/internal/client"
	"github.com/spf13/cobra"
)

var (
	convUser     string
	convTitle    string
	convMessages []string
)

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "Manage captured conversations",
}

var conversationsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a conversation for a user",
	Long: `Add a conversation with messages. Messages come either from repeated
--message flags in "role:content" form, or as a JSON array on stdin.

Examples:
  profiled conversations add --user alice \
      -m "user:How do I profile a Go service?" \
      -m "assistant:Start with pprof."

  cat messages.json | profiled conversations add --user alice --title "pprof"`,
	RunE: runConversationsAdd,
}

func init() {
	conversationsAddCmd.Flags().StringVarP(&convUser, "user", "u", "", "user id (required)")
	conversationsAddCmd.Flags().StringVarP(&convTitle, "title", "t", "", "conversation title")
	conversationsAddCmd.Flags().StringArrayVarP(&convMessages, "message", "m", nil, `message in "role:content" form (repeatable)`)
	_ = conversationsAddCmd.MarkFlagRequired("user")

	conversationsCmd.AddCommand(conversationsAddCmd)
	rootCmd.AddCommand(conversationsCmd)
}

func runConversationsAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	messages, err := collectMessages()
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return fmt.Errorf("no messages given; use --message or pipe a JSON array")
	}

	var title *string
	if convTitle != "" {
		title = &convTitle
	}

	if err := apiClient.CreateConversation(ctx, convUser, title, messages); err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}

	fmt.Printf("Conversation with %d messages added for %s\n", len(messages), convUser)
	return nil
}

func collectMessages() ([]client.ConversationMessage, error) {
	if len(convMessages) > 0 {
		out := make([]client.ConversationMessage, 0, len(convMessages))
		for _, raw := range convMessages {
			role, content, found := strings.Cut(raw, ":")
			if !found {
				return nil, fmt.Errorf("invalid message %q, want \"role:content\"", raw)
			}
			out = append(out, client.ConversationMessage{
				Role:    strings.TrimSpace(role),
				Content: strings.TrimSpace(content),
			})
		}
		return out, nil
	}

	// No flags: read a JSON array from stdin if it is piped.
	stat, err := os.Stdin.Stat()
	if err != nil || stat.Mode()&os.ModeCharDevice != 0 {
		return nil, nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	var out []client.ConversationMessage
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse stdin JSON: %w", err)
	}
	return out, nil
}
