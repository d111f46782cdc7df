package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/easeaico/mirror-clarity/internal/types"
)

func init() {
	observeCmd := &cobra.Command{
		Use:   "observe [text]",
		Short: "Store text as a memory and apply its source category",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runObserve,
	}
	observeCmd.Flags().StringP("source", "s", string(types.MemorySourceChat), "Source: chat, journal or voice_journal")

	reflectCmd := &cobra.Command{
		Use:   "reflect [text]",
		Short: "Classify a journal entry and apply the resulting signal",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runReflect,
	}
	reflectCmd.Flags().StringP("source", "s", string(types.MemorySourceJournal), "Source: chat, journal or voice_journal")

	recallCmd := &cobra.Command{
		Use:   "recall [query]",
		Short: "Rank stored memories against a query",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runRecall,
	}
	recallCmd.Flags().IntP("top", "n", 0, "Max results (default: top_n from config)")

	RootCmd.AddCommand(observeCmd, reflectCmd, recallCmd, &cobra.Command{
		Use:   "prompt-context [text]",
		Short: "Print the data a prompt builder needs for text",
		RunE:  runPromptContext,
	})
}

func sourceFlag(cmd *cobra.Command) (types.MemorySource, error) {
	raw, _ := cmd.Flags().GetString("source")
	return types.ParseMemorySource(raw)
}

func runObserve(cmd *cobra.Command, args []string) error {
	user, err := currentUser()
	if err != nil {
		return err
	}
	source, err := sourceFlag(cmd)
	if err != nil {
		return err
	}
	return withApp(cmd, func(app *App) error {
		obs, err := app.Service.Observe(cmd.Context(), user, strings.Join(args, " "), source)
		if err != nil {
			return err
		}
		return printJSON(cmd, obs)
	})
}

func runReflect(cmd *cobra.Command, args []string) error {
	user, err := currentUser()
	if err != nil {
		return err
	}
	source, err := sourceFlag(cmd)
	if err != nil {
		return err
	}
	return withApp(cmd, func(app *App) error {
		if !app.Service.HasClassifier() {
			return fmt.Errorf("reflect needs signal_provider and signal_model in the config")
		}
		out, err := app.Service.Reflect(cmd.Context(), user, strings.Join(args, " "), source)
		if err != nil {
			return err
		}
		return printJSON(cmd, out)
	})
}

func runRecall(cmd *cobra.Command, args []string) error {
	user, err := currentUser()
	if err != nil {
		return err
	}
	top, _ := cmd.Flags().GetInt("top")
	return withApp(cmd, func(app *App) error {
		if top <= 0 {
			top = app.Config.TopN
		}
		memories, err := app.Service.Recall(cmd.Context(), user, strings.Join(args, " "), top)
		if err != nil {
			return err
		}
		return printJSON(cmd, memories)
	})
}

func runPromptContext(cmd *cobra.Command, args []string) error {
	user, err := currentUser()
	if err != nil {
		return err
	}
	return withApp(cmd, func(app *App) error {
		pc, err := app.Service.PromptContext(cmd.Context(), user, strings.Join(args, " "))
		if err != nil {
			return err
		}
		return printJSON(cmd, pc)
	})
}
