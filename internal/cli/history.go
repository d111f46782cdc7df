package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/easeaico/mirror-clarity/internal/types"
)

func init() {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show clarity snapshots, oldest first",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}
	historyCmd.Flags().IntP("limit", "n", 0, "Keep only the most recent snapshots (0 for all)")

	journalCmd := &cobra.Command{
		Use:   "journal",
		Short: "List reflected journal entries, newest first",
		Args:  cobra.NoArgs,
		RunE:  runJournal,
	}
	journalCmd.Flags().IntP("limit", "n", 0, "Max entries (0 for all)")

	memoriesCmd := &cobra.Command{
		Use:   "memories",
		Short: "List stored memories, newest first",
		Args:  cobra.NoArgs,
		RunE:  runMemories,
	}
	memoriesCmd.Flags().StringP("source", "s", "", "Only this source: chat, journal or voice_journal")
	memoriesCmd.Flags().IntP("limit", "n", 0, "Max records (0 for all)")

	RootCmd.AddCommand(historyCmd, journalCmd, memoriesCmd)
}

func limitFlag(cmd *cobra.Command) (int, error) {
	limit, _ := cmd.Flags().GetInt("limit")
	if limit < 0 {
		return 0, fmt.Errorf("%w: limit must not be negative", types.ErrInvalidArgument)
	}
	return limit, nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	user, err := currentUser()
	if err != nil {
		return err
	}
	limit, err := limitFlag(cmd)
	if err != nil {
		return err
	}
	return withApp(cmd, func(app *App) error {
		history, err := app.Service.History(cmd.Context(), user, limit)
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]any{"history": history})
	})
}

func runJournal(cmd *cobra.Command, args []string) error {
	user, err := currentUser()
	if err != nil {
		return err
	}
	limit, err := limitFlag(cmd)
	if err != nil {
		return err
	}
	return withApp(cmd, func(app *App) error {
		entries, err := app.Service.Journal(cmd.Context(), user, limit)
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]any{"entries": entries})
	})
}

func runMemories(cmd *cobra.Command, args []string) error {
	user, err := currentUser()
	if err != nil {
		return err
	}
	limit, err := limitFlag(cmd)
	if err != nil {
		return err
	}
	var source types.MemorySource
	if raw, _ := cmd.Flags().GetString("source"); raw != "" {
		if source, err = types.ParseMemorySource(raw); err != nil {
			return err
		}
	}
	return withApp(cmd, func(app *App) error {
		records, err := app.Service.Memories(cmd.Context(), user, source, limit)
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]any{"memories": records})
	})
}
