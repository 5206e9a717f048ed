// Package cli is the billadmin command line: the console server and the
// session commands that share its storage.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/mehmetcc/billadmin/internal/config"
	"github.com/mehmetcc/billadmin/internal/httpx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type Option func(*runner)

// WithPrompter replaces the interactive terminal prompts.
func WithPrompter(p Prompter) Option {
	return func(r *runner) { r.prompter = p }
}

type runner struct {
	logger     *zap.Logger
	prompter   Prompter
	envFile    string
	jsonOutput bool
}

func NewRootCommand(logger *zap.Logger, opts ...Option) *cobra.Command {
	r := &runner{logger: logger, prompter: huhPrompter{}}
	for _, opt := range opts {
		opt(r)
	}

	root := &cobra.Command{
		Use:   "billadmin",
		Short: "Billing administration console",
		Long: `billadmin signs in to the billing backend and serves the administration console.

The session is kept in the configured storage (STORAGE_DRIVER) and shared by
every command, so "billadmin login" followed by "billadmin serve" starts the
console signed in.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&r.envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	root.PersistentFlags().BoolVar(&r.jsonOutput, "json", false, "print JSON instead of human-readable text")

	root.AddCommand(
		r.serveCommand(),
		r.loginCommand(),
		r.logoutCommand(),
		r.whoamiCommand(),
		r.menuCommand(),
		r.passwordCommand(),
		r.migrateCommand(),
	)
	return root
}

// Execute runs the command line against ctx.
func Execute(ctx context.Context, logger *zap.Logger, args []string) error {
	root := NewRootCommand(logger)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func (r *runner) loadConfig() (*config.Config, error) {
	return config.LoadConfig(r.logger, r.envFile)
}

// withApp builds the App, restores the stored session and hands both to fn.
func (r *runner) withApp(platform httpx.Platform, fn func(cmd *cobra.Command, app *App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := r.loadConfig()
		if err != nil {
			return err
		}
		app, err := NewApp(cmd.Context(), cfg, r.logger, platform)
		if err != nil {
			return err
		}
		defer r.closeApp(app)
		if err := app.Auth.Init(cmd.Context()); err != nil {
			return err
		}
		return fn(cmd, app, args)
	}
}

func (r *runner) closeApp(app *App) {
	if err := app.Close(); err != nil {
		r.logger.Warn("failed to close storage", zap.Error(err))
	}
}

func (r *runner) print(w io.Writer, v any, human string) error {
	if r.jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(w, human)
	return err
}
