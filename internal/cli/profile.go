package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/easeaico/mirror-clarity/internal/clarity"
	"github.com/easeaico/mirror-clarity/internal/types"
)

func init() {
	quizCmd := &cobra.Command{
		Use:   "quiz [selections...]",
		Short: "Take the archetype quiz",
		Long:  "Answer the quiz with one option index per question, in order. With no selections the questions are printed.",
		RunE:  runQuiz,
	}
	quizCmd.Flags().Bool("retake", false, "Clear the current archetype first")

	RootCmd.AddCommand(
		&cobra.Command{
			Use:   "profile",
			Short: "Show the profile",
			Args:  cobra.NoArgs,
			RunE:  runProfile,
		},
		quizCmd,
		&cobra.Command{
			Use:   "input [category]",
			Short: "Apply an input category to the trait ledger",
			Long:  "Categories: " + categoryList(),
			Args:  cobra.ExactArgs(1),
			RunE:  runInput,
		},
		&cobra.Command{
			Use:   "feedback",
			Short: "Record negative feedback on the last reply",
			Args:  cobra.NoArgs,
			RunE:  runFeedback,
		},
		&cobra.Command{
			Use:   "recalibrate",
			Short: "Reset traits and clear the archetype, keeping level and XP",
			Args:  cobra.NoArgs,
			RunE:  runRecalibrate,
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Reset the profile to creation defaults",
			Args:  cobra.NoArgs,
			RunE:  runReset,
		},
	)
}

func categoryList() string {
	names := make([]string, 0, len(clarity.InputCategories))
	for _, c := range clarity.InputCategories {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}

func runProfile(cmd *cobra.Command, args []string) error {
	user, err := currentUser()
	if err != nil {
		return err
	}
	return withApp(cmd, func(app *App) error {
		p, err := app.Service.Profile(cmd.Context(), user)
		if err != nil {
			return err
		}
		return printJSON(cmd, p)
	})
}

func runQuiz(cmd *cobra.Command, args []string) error {
	retake, _ := cmd.Flags().GetBool("retake")
	selections, err := parseSelections(args)
	if err != nil {
		return err
	}
	return withApp(cmd, func(app *App) error {
		if len(selections) == 0 {
			return printJSON(cmd, app.Service.Quiz())
		}
		user, err := currentUser()
		if err != nil {
			return err
		}
		take := app.Service.TakeQuiz
		if retake {
			take = app.Service.RetakeQuiz
		}
		result, err := take(cmd.Context(), user, selections)
		if err != nil {
			return err
		}
		return printJSON(cmd, result)
	})
}

// parseSelections accepts "0 2 1" or "0,2,1".
func parseSelections(args []string) ([]int, error) {
	var out []int
	for _, arg := range args {
		for _, field := range strings.FieldsFunc(arg, func(r rune) bool { return r == ',' || r == ' ' }) {
			n, err := strconv.Atoi(field)
			if err != nil {
				return nil, fmt.Errorf("%w: selection %q is not a number", types.ErrInvalidArgument, field)
			}
			out = append(out, n)
		}
	}
	return out, nil
}

func runInput(cmd *cobra.Command, args []string) error {
	user, err := currentUser()
	if err != nil {
		return err
	}
	return withApp(cmd, func(app *App) error {
		result, err := app.Service.ApplyCategory(cmd.Context(), user, clarity.ParseInputCategory(args[0]))
		if err != nil {
			return err
		}
		return printJSON(cmd, result)
	})
}

func runFeedback(cmd *cobra.Command, args []string) error {
	user, err := currentUser()
	if err != nil {
		return err
	}
	return withApp(cmd, func(app *App) error {
		result, err := app.Service.NegativeFeedback(cmd.Context(), user)
		if err != nil {
			return err
		}
		return printJSON(cmd, result)
	})
}

func runRecalibrate(cmd *cobra.Command, args []string) error {
	user, err := currentUser()
	if err != nil {
		return err
	}
	return withApp(cmd, func(app *App) error {
		p, err := app.Service.Recalibrate(cmd.Context(), user)
		if err != nil {
			return err
		}
		return printJSON(cmd, p)
	})
}

func runReset(cmd *cobra.Command, args []string) error {
	user, err := currentUser()
	if err != nil {
		return err
	}
	return withApp(cmd, func(app *App) error {
		p, err := app.Service.Reset(cmd.Context(), user)
		if err != nil {
			return err
		}
		return printJSON(cmd, p)
	})
}
