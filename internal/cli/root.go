// Package cli implements the clarity CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/easeaico/mirror-clarity/internal/config"
	"github.com/easeaico/mirror-clarity/internal/logger"
)

var (
	configPath string
	userFlag   string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:           "clarity",
	Short:         "Personality clarity engine",
	Long:          "Builds a per-user personality profile from a quiz, journal entries and chat, and serves it over HTTP.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (yaml or json)")
	RootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "User id (default: $CLARITY_USER or $USER)")
}

// Execute runs RootCmd and reports a failure on stderr.
func Execute() int {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Install(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	return cfg, nil
}

// withApp loads config, builds the engine and runs fn against it.
func withApp(cmd *cobra.Command, fn func(app *App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app, err := NewApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

func currentUser() (string, error) {
	for _, candidate := range []string{userFlag, os.Getenv("CLARITY_USER"), os.Getenv("USER")} {
		if id := strings.TrimSpace(candidate); id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("no user id: pass --user or set CLARITY_USER")
}

func printJSON(cmd *cobra.Command, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return err
}
