package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func init() {
	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the companion; each message is observed as chat input",
		Args:  cobra.NoArgs,
		RunE:  runChat,
	}
	chatCmd.Flags().String("session", "", "Session id (default: a new random id)")
	RootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	user, err := currentUser()
	if err != nil {
		return err
	}
	sessionID, _ := cmd.Flags().GetString("session")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	return withApp(cmd, func(app *App) error {
		companion, err := app.NewCompanion(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Type a message, or /exit to quit.")
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for {
			fmt.Fprint(out, "> ")
			if !scanner.Scan() {
				break
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if line == "/exit" || line == "/quit" {
				return nil
			}
			reply, err := companion.Reply(cmd.Context(), user, sessionID, line)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, reply)
		}
		fmt.Fprintln(out)
		return scanner.Err()
	})
}
