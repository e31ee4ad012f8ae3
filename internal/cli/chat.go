package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haeun/whatif/pkg/completion"
	"github.com/haeun/whatif/pkg/session"
	"github.com/haeun/whatif/pkg/story"
)

var (
	chatStoryID    string
	chatStoryTitle string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start or continue an interactive conversation",
	Long: `Start an interactive conversation. Without an active session a new one
is created; with one, the conversation continues where it left off.
Type /quit to leave.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatStoryID, "story", "", "story id for a new session")
	chatCmd.Flags().StringVar(&chatStoryTitle, "title", "", "story title for a new session")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx := context.Background()
	if err := rt.sync.Load(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	provider, err := completion.NewProvider(completion.Config{
		Provider:    rt.cfg.Completion.Provider,
		APIKey:      rt.cfg.Completion.APIKey,
		Model:       rt.cfg.Completion.Model,
		Temperature: rt.cfg.Completion.Temperature,
		MaxTokens:   rt.cfg.Completion.MaxTokens,
	})
	if err != nil {
		return err
	}
	client := completion.NewClient(provider, nil, rt.log.Zerolog())

	var st *story.Story
	if chatStoryTitle != "" || chatStoryID != "" {
		st = &story.Story{ID: chatStoryID, Title: chatStoryTitle}
	}

	if _, ok := rt.sync.CurrentSession(); !ok {
		opening := client.OpeningQuestion(ctx, st)
		id, err := rt.sync.CreateSession(ctx, st, opening)
		if err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		logger := rt.log.Zerolog()
		logger.Info().Str("session_id", id).Msg("session created")
		fmt.Println(opening)
	} else {
		sess, _ := rt.sync.CurrentSession()
		fmt.Printf("Continuing %q (%d turns)\n", sess.Title, len(sess.Turns))
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			break
		}

		sess, ok := rt.sync.CurrentSession()
		if !ok {
			return fmt.Errorf("no active session")
		}

		if _, err := rt.sync.AddTurn(ctx, sess.ID, session.TurnDraft{
			Role:    session.RoleUser,
			Content: line,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}

		sess, _ = rt.sync.CurrentSession()
		resp, err := client.Complete(ctx, completion.Request{
			Message: line,
			Story:   st,
			History: sess.Turns,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}

		fmt.Println(resp.Reply)
		if _, err := rt.sync.AddTurn(ctx, sess.ID, session.TurnDraft{
			Role:    session.RoleAssistant,
			Content: resp.Reply,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
	}

	return scanner.Err()
}
