package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mehmetcc/billadmin/internal/auth"
	"github.com/mehmetcc/billadmin/internal/backend"
	"github.com/mehmetcc/billadmin/internal/console"
	"github.com/mehmetcc/billadmin/internal/database"
	"github.com/mehmetcc/billadmin/internal/httpx"
	"github.com/mehmetcc/billadmin/internal/nav"
	"github.com/mehmetcc/billadmin/internal/person"
	"github.com/mehmetcc/billadmin/internal/token"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func (r *runner) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the local administration console",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := r.loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := NewApp(ctx, cfg, r.logger, httpx.PlatformWeb)
			if err != nil {
				return err
			}
			defer r.closeApp(app)

			unsubscribe := app.Auth.Subscribe(func(s auth.State) {
				r.logger.Info("session state changed", zap.Stringer("state", s))
			})
			defer unsubscribe()

			router := console.NewRouter(console.Options{
				Auth:           app.Auth,
				Logger:         r.logger.Named("console"),
				Metrics:        app.Metrics,
				Gatherer:       app.Registry,
				CORSOrigins:    cfg.AppConfig.CORSOrigins,
				LoginRateLimit: cfg.AppConfig.LoginRateLimit,
			})
			ac := cfg.AppConfig
			srv := console.NewServer(":"+ac.Port, router, ac.ReadTimeout, ac.WriteTimeout, ac.IdleTimeout)

			errCh := make(chan error, 1)
			go func() {
				defer close(errCh)
				r.logger.Info("console listening", zap.String("addr", srv.Addr), zap.String("backend", cfg.BackendConfig.URL))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			// Guarded views answer 503 until hydration finishes.
			if err := app.Auth.Init(ctx); err != nil {
				r.logger.Warn("starting signed out", zap.Error(err))
			}

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			r.logger.Info("shutting down console")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func (r *runner) loginCommand() *cobra.Command {
	var email, password, code string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the billing backend",
		Long:  "Sign in and store the session. Missing credentials and one-time codes are prompted for.",
		RunE: r.withApp(httpx.PlatformCLI, func(cmd *cobra.Command, app *App, args []string) error {
			ctx := cmd.Context()
			if err := r.prompter.Credentials(&email, &password); err != nil {
				return err
			}
			outcome, err := app.Auth.Login(ctx, strings.TrimSpace(email), password)
			if err != nil {
				return describe(err)
			}
			if outcome == auth.LoginMFARequired {
				fmt.Fprintln(cmd.ErrOrStderr(), "A one-time code is required to finish signing in.")
				if err := r.prompter.Code(&code); err != nil {
					return err
				}
				if err := app.Auth.VerifyMfa(ctx, email, code); err != nil {
					return describe(err)
				}
			}
			user := app.Auth.User()
			return r.print(cmd.OutOrStdout(), newSessionView(app.Auth), fmt.Sprintf("Signed in as %s <%s>", user.FullName(), user.Email))
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when omitted)")
	cmd.Flags().StringVar(&code, "code", "", "one-time code, if the backend asks for one")
	return cmd
}

func (r *runner) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: r.withApp(httpx.PlatformCLI, func(cmd *cobra.Command, app *App, args []string) error {
			if err := app.Auth.Logout(cmd.Context()); err != nil {
				return err
			}
			return r.print(cmd.OutOrStdout(), newSessionView(app.Auth), "Signed out")
		}),
	}
}

func (r *runner) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user, roles and permissions",
		RunE: r.withApp(httpx.PlatformCLI, func(cmd *cobra.Command, app *App, args []string) error {
			view := newSessionView(app.Auth)
			return r.print(cmd.OutOrStdout(), view, view.human())
		}),
	}
}

func (r *runner) menuCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "List the console sections the current session may open",
		RunE: r.withApp(httpx.PlatformCLI, func(cmd *cobra.Command, app *App, args []string) error {
			items := nav.Filter(nav.DefaultMenu(), app.Auth.Permissions())
			var b strings.Builder
			writeMenu(&b, items, 0)
			return r.print(cmd.OutOrStdout(), items, strings.TrimRight(b.String(), "\n"))
		}),
	}
}

func writeMenu(b *strings.Builder, items []nav.Item, depth int) {
	for _, it := range items {
		indent := strings.Repeat("  ", depth)
		if it.Path != "" {
			fmt.Fprintf(b, "%s%s  %s\n", indent, it.Label, it.Path)
		} else {
			fmt.Fprintf(b, "%s%s\n", indent, it.Label)
		}
		writeMenu(b, it.Children, depth+1)
	}
}

func (r *runner) passwordCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Recover or reset an account password",
	}

	var forgotEmail string
	forgot := &cobra.Command{
		Use:   "forgot",
		Short: "Ask the backend to send a reset link",
		RunE: r.withApp(httpx.PlatformCLI, func(cmd *cobra.Command, app *App, args []string) error {
			if err := app.Auth.ForgotPassword(cmd.Context(), strings.TrimSpace(forgotEmail)); err != nil {
				return describe(err)
			}
			return r.print(cmd.OutOrStdout(), map[string]string{"status": "sent"},
				"If the account exists, a reset link is on its way.")
		}),
	}
	forgot.Flags().StringVar(&forgotEmail, "email", "", "account email")
	_ = forgot.MarkFlagRequired("email")

	var resetToken, resetEmail, newPassword, confirm string
	reset := &cobra.Command{
		Use:   "reset",
		Short: "Set a new password with a reset token",
		RunE: r.withApp(httpx.PlatformCLI, func(cmd *cobra.Command, app *App, args []string) error {
			if err := r.prompter.NewPassword(&newPassword, &confirm); err != nil {
				return err
			}
			err := app.Auth.ResetPassword(cmd.Context(), auth.ResetPasswordInput{
				Token:           resetToken,
				NewPassword:     newPassword,
				ConfirmPassword: confirm,
				Email:           strings.TrimSpace(resetEmail),
			})
			if err != nil {
				return describe(err)
			}
			return r.print(cmd.OutOrStdout(), map[string]string{"status": "password_reset"},
				"Password changed. Sign in with the new password.")
		}),
	}
	reset.Flags().StringVar(&resetToken, "token", "", "reset token from the email link")
	reset.Flags().StringVar(&resetEmail, "email", "", "account email")
	_ = reset.MarkFlagRequired("token")

	cmd.AddCommand(forgot, reset)
	return cmd
}

func (r *runner) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the postgres session table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := r.loadConfig()
			if err != nil {
				return err
			}
			db, err := database.Init(cmd.Context(), cfg.DbConfig)
			if err != nil {
				return err
			}
			defer db.Close()

			database.SetMigrationLogger(r.logger)
			if err := database.Migrate(cmd.Context(), db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			version, err := database.Version(cmd.Context(), db)
			if err != nil {
				return err
			}
			return r.print(cmd.OutOrStdout(), map[string]int64{"version": version},
				fmt.Sprintf("Schema at version %d", version))
		},
	}
}

// describe turns auth failures into messages fit for a terminal.
func describe(err error) error {
	var authErr *auth.AuthenticationError
	switch {
	case errors.As(err, &authErr):
		return fmt.Errorf("%s: %w", authErr.Kind.Title(), err)
	case backend.IsNetworkError(err):
		return fmt.Errorf("cannot reach the billing service: %w", err)
	default:
		return err
	}
}

type sessionView struct {
	Authenticated bool            `json:"authenticated"`
	User          *person.Profile `json:"user,omitempty"`
	ExpiresAt     *time.Time      `json:"expiresAt,omitempty"`
}

func newSessionView(a auth.Context) sessionView {
	v := sessionView{Authenticated: a.IsAuthenticated(), User: a.User()}
	if exp, ok := token.ExpiresAt(a.Token()); ok && v.Authenticated {
		v.ExpiresAt = &exp
	}
	return v
}

func (v sessionView) human() string {
	if !v.Authenticated {
		return "Not signed in"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s <%s>\n", v.User.FullName(), v.User.Email)
	fmt.Fprintf(&b, "Roles:       %s\n", listOrNone(v.User.Roles))
	fmt.Fprintf(&b, "Permissions: %s", listOrNone(v.User.Permissions))
	if v.User.MustChangePassword {
		b.WriteString("\nPassword change required")
	}
	if v.ExpiresAt != nil {
		fmt.Fprintf(&b, "\nExpires:     %s", v.ExpiresAt.Local().Format(time.RFC1123))
	}
	return b.String()
}

func listOrNone(s []string) string {
	if len(s) == 0 {
		return "(none)"
	}
	return strings.Join(s, ", ")
}
