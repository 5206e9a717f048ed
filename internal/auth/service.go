package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mehmetcc/billadmin/internal/backend"
	"github.com/mehmetcc/billadmin/internal/claims"
	"github.com/mehmetcc/billadmin/internal/metrics"
	"github.com/mehmetcc/billadmin/internal/permission"
	"github.com/mehmetcc/billadmin/internal/person"
	"github.com/mehmetcc/billadmin/internal/session"
	"github.com/mehmetcc/billadmin/internal/token"
	"go.uber.org/zap"
)

const (
	opLogin          = "login"
	opVerifyMfa      = "verify_mfa"
	opSendMfaCode    = "send_mfa_code"
	opLogout         = "logout"
	opForgotPassword = "forgot_password"
	opResetPassword  = "reset_password"
)

// Context owns the current session. Build one per process and pass it to
// whatever needs to read or change the session.
type Context interface {
	// Init restores a persisted session. Until it returns, the context is
	// loading and guards must not decide anything.
	Init(ctx context.Context) error
	State() State
	IsLoading() bool
	IsAuthenticated() bool
	// User returns a copy of the signed-in profile, or nil.
	User() *person.Profile
	Token() string

	Login(ctx context.Context, email, password string) (LoginOutcome, error)
	// VerifyMfa completes a login that returned LoginMFARequired, using the
	// credentials held from that attempt.
	VerifyMfa(ctx context.Context, userID, code string) error
	SendMfaCode(ctx context.Context, userID string) error
	Logout(ctx context.Context) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, in ResetPasswordInput) error

	Permissions() *permission.Evaluator
	HasPermission(required string) bool
	HasAnyPermission(required ...string) bool

	// Subscribe calls fn after every state change. The returned func removes it.
	Subscribe(fn func(State)) func()
}

type ResetPasswordInput struct {
	Token           string `validate:"required"`
	NewPassword     string `validate:"required"`
	ConfirmPassword string `validate:"required,eqfield=NewPassword"`
	Email           string `validate:"omitempty,email"`
}

// Options configures NewContext. Schema defaults to claims.DefaultSchema and
// Clock to time.Now.
type Options struct {
	Backend   backend.AuthClient
	Store     session.SessionStore
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	Schema    claims.Schema
	Clock     func() time.Time
	Wildcards bool
}

type credentialsInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type emailInput struct {
	Email string `validate:"required,email"`
}

type codeInput struct {
	Code string `validate:"required"`
}

type userIDInput struct {
	UserID string `validate:"required"`
}

type authContext struct {
	backend   backend.AuthClient
	store     session.SessionStore
	logger    *zap.Logger
	metrics   *metrics.Metrics
	schema    claims.Schema
	clock     func() time.Time
	validator *validator.Validate
	permOpts  []permission.Option

	mu          sync.RWMutex
	state       State
	token       string
	user        *person.Profile
	subscribers map[int]func(State)
	nextSubID   int
}

func NewContext(opts Options) Context {
	a := &authContext{
		backend:     opts.Backend,
		store:       opts.Store,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		schema:      opts.Schema,
		clock:       opts.Clock,
		validator:   validator.New(validator.WithRequiredStructEnabled()),
		state:       StateUninitialized,
		subscribers: make(map[int]func(State)),
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	if len(a.schema.RoleKeys) == 0 && len(a.schema.PermissionKeys) == 0 {
		a.schema = claims.DefaultSchema
	}
	if a.clock == nil {
		a.clock = time.Now
	}
	if opts.Wildcards {
		a.permOpts = append(a.permOpts, permission.WithWildcards())
	}
	return a
}

func (a *authContext) Init(ctx context.Context) error {
	a.setSession(StateHydrating, "", nil)

	raw, hasToken, err := a.store.Token(ctx)
	if err != nil {
		return a.failHydration(err)
	}
	user, hasUser, err := a.store.User(ctx)
	if err != nil {
		if errors.Is(err, session.ErrCorrupt) {
			a.logger.Warn("discarding unreadable stored session", zap.Error(err))
			a.clearStored(ctx)
			a.metrics.Hydration(metrics.HydrateCorrupt)
			a.setSession(StateUnauthenticated, "", nil)
			return nil
		}
		return a.failHydration(err)
	}

	if !hasToken || !hasUser {
		if hasToken || hasUser {
			a.logger.Warn("discarding incomplete stored session",
				zap.Bool("has_token", hasToken),
				zap.Bool("has_user", hasUser),
			)
			a.clearStored(ctx)
		}
		a.metrics.Hydration(metrics.HydrateEmpty)
		a.setSession(StateUnauthenticated, "", nil)
		return nil
	}

	if token.IsExpired(raw, a.clock()) {
		a.logger.Info("stored session expired", zap.String("user_id", string(user.ID)))
		a.clearStored(ctx)
		a.metrics.Hydration(metrics.HydrateExpired)
		a.setSession(StateUnauthenticated, "", nil)
		return nil
	}

	merged := a.withAccess(raw, user)
	if err := a.store.SaveUser(ctx, merged); err != nil {
		a.logger.Warn("failed to persist restored profile", zap.Error(err))
	}
	a.metrics.Hydration(metrics.HydrateRestored)
	a.setSession(StateAuthenticated, raw, merged)
	a.logger.Info("session restored",
		zap.String("user_id", string(merged.ID)),
		zap.Int("permissions", len(merged.Permissions)),
	)
	return nil
}

func (a *authContext) failHydration(err error) error {
	a.logger.Error("failed to restore session", zap.Error(err))
	a.metrics.Hydration(metrics.HydrateError)
	a.setSession(StateUnauthenticated, "", nil)
	return fmt.Errorf("restore session: %w", err)
}

func (a *authContext) clearStored(ctx context.Context) {
	if err := a.store.Clear(ctx); err != nil {
		a.logger.Warn("failed to clear stored session", zap.Error(err))
	}
}

func (a *authContext) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

func (a *authContext) IsLoading() bool {
	return a.State().Loading()
}

func (a *authContext) IsAuthenticated() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token != "" && a.user != nil
}

func (a *authContext) User() *person.Profile {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.user.Clone()
}

func (a *authContext) Token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

func (a *authContext) Login(ctx context.Context, email, password string) (LoginOutcome, error) {
	if err := a.validator.Struct(credentialsInput{Email: email, Password: password}); err != nil {
		a.metrics.Operation(opLogin, metrics.ResultInvalid)
		return 0, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	resp, err := a.backend.Login(ctx, backend.LoginRequest{Email: email, Password: password})
	if err != nil {
		return 0, a.rejected(opLogin, err)
	}

	if resp.MfaRequired() {
		creds := session.TempCredentials{
			Email:       email,
			Password:    password,
			RequiresMfa: true,
			Otp:         string(resp.Otp),
		}
		if err := a.store.SaveTempCredentials(ctx, creds); err != nil {
			a.logger.Error("failed to hold mfa challenge", zap.Error(err))
			a.metrics.Operation(opLogin, metrics.ResultError)
			return 0, fmt.Errorf("%s: %w", opLogin, err)
		}
		a.logger.Info("login awaiting one-time code", zap.String("email", email))
		a.metrics.Operation(opLogin, metrics.ResultMfaRequired)
		return LoginMFARequired, nil
	}

	if err := a.establish(ctx, opLogin, resp.Data); err != nil {
		return 0, err
	}
	if err := a.store.ClearTempCredentials(ctx); err != nil {
		a.logger.Warn("failed to clear mfa challenge", zap.Error(err))
	}
	return LoginSucceeded, nil
}

func (a *authContext) VerifyMfa(ctx context.Context, userID, code string) error {
	code = strings.TrimSpace(code)
	if err := a.validator.Struct(codeInput{Code: code}); err != nil {
		a.metrics.Operation(opVerifyMfa, metrics.ResultInvalid)
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	creds, ok, err := a.store.TempCredentials(ctx)
	if err != nil {
		a.logger.Error("failed to read mfa challenge", zap.Error(err))
		a.metrics.Operation(opVerifyMfa, metrics.ResultError)
		return fmt.Errorf("%s: %w", opVerifyMfa, err)
	}
	if !ok {
		a.metrics.Operation(opVerifyMfa, metrics.ResultInvalid)
		return ErrMissingMfaContext
	}

	resp, err := a.backend.VerifyMfa(ctx, backend.VerifyMfaRequest{
		Email:    creds.Email,
		Password: creds.Password,
		MfaCode:  code,
	})
	if err != nil {
		a.logger.Debug("one-time code rejected", zap.String("user_id", userID))
		return a.rejected(opVerifyMfa, err)
	}

	if err := a.establish(ctx, opVerifyMfa, resp.Data); err != nil {
		return err
	}
	if err := a.store.ClearTempCredentials(ctx); err != nil {
		a.logger.Warn("failed to clear mfa challenge", zap.Error(err))
	}
	return nil
}

func (a *authContext) SendMfaCode(ctx context.Context, userID string) error {
	if err := a.validator.Struct(userIDInput{UserID: userID}); err != nil {
		a.metrics.Operation(opSendMfaCode, metrics.ResultInvalid)
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if _, err := a.backend.SendMfaCode(ctx, backend.SendMfaCodeRequest{UserID: userID}); err != nil {
		return a.failed(opSendMfaCode, err)
	}
	a.metrics.Operation(opSendMfaCode, metrics.ResultSuccess)
	return nil
}

func (a *authContext) Logout(ctx context.Context) error {
	err := a.store.Clear(ctx)
	a.setSession(StateUnauthenticated, "", nil)
	if err != nil {
		a.logger.Error("failed to clear stored session", zap.Error(err))
		a.metrics.Operation(opLogout, metrics.ResultError)
		return fmt.Errorf("%s: %w", opLogout, err)
	}
	a.logger.Info("logged out")
	a.metrics.Operation(opLogout, metrics.ResultSuccess)
	return nil
}

func (a *authContext) ForgotPassword(ctx context.Context, email string) error {
	if err := a.validator.Struct(emailInput{Email: email}); err != nil {
		a.metrics.Operation(opForgotPassword, metrics.ResultInvalid)
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if _, err := a.backend.ForgotPassword(ctx, backend.ForgotPasswordRequest{Email: email}); err != nil {
		return a.failed(opForgotPassword, err)
	}
	a.metrics.Operation(opForgotPassword, metrics.ResultSuccess)
	return nil
}

func (a *authContext) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	if err := a.validator.Struct(in); err != nil {
		a.metrics.Operation(opResetPassword, metrics.ResultInvalid)
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	req := backend.ResetPasswordRequest{
		Token:              in.Token,
		NewPassword:        in.NewPassword,
		ConfirmNewPassword: in.ConfirmPassword,
		Email:              in.Email,
	}
	if _, err := a.backend.ResetPassword(ctx, req); err != nil {
		return a.failed(opResetPassword, err)
	}
	a.metrics.Operation(opResetPassword, metrics.ResultSuccess)
	return nil
}

func (a *authContext) Permissions() *permission.Evaluator {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.user == nil {
		return permission.New(nil, a.permOpts...)
	}
	return permission.New(a.user.Permissions, a.permOpts...)
}

func (a *authContext) HasPermission(required string) bool {
	return a.Permissions().HasPermission(required)
}

func (a *authContext) HasAnyPermission(required ...string) bool {
	return a.Permissions().HasAnyPermission(required...)
}

func (a *authContext) Subscribe(fn func(State)) func() {
	a.mu.Lock()
	id := a.nextSubID
	a.nextSubID++
	a.subscribers[id] = fn
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.subscribers, id)
		a.mu.Unlock()
	}
}

// establish persists a backend-issued session and only then publishes it.
func (a *authContext) establish(ctx context.Context, op string, data *backend.AuthData) error {
	if data == nil || data.AccessToken == "" || data.User == nil {
		a.logger.Error("backend reported success without a session", zap.String("operation", op))
		a.metrics.Operation(op, metrics.ResultInvalid)
		return fmt.Errorf("%s: %w: missing access token or user", op, backend.ErrInvalidResponse)
	}

	user := a.withAccess(data.AccessToken, data.User)
	if err := a.store.Save(ctx, data.AccessToken, user); err != nil {
		a.logger.Error("failed to persist session", zap.String("operation", op), zap.Error(err))
		a.metrics.Operation(op, metrics.ResultError)
		return fmt.Errorf("%s: %w", op, err)
	}

	a.setSession(StateAuthenticated, data.AccessToken, user)
	a.metrics.Operation(op, metrics.ResultSuccess)
	a.logger.Info("session established",
		zap.String("operation", op),
		zap.String("user_id", string(user.ID)),
		zap.Strings("roles", user.Roles),
	)
	return nil
}

// withAccess replaces the profile's roles and permissions with those carried
// by the token. An undecodable token grants nothing.
func (a *authContext) withAccess(raw string, user *person.Profile) *person.Profile {
	c, err := token.Decode(raw)
	if err != nil {
		a.logger.Warn("token payload unreadable, granting no permissions", zap.Error(err))
		return user.WithAccess(nil, nil)
	}
	return user.WithAccess(a.schema.RolesFrom(c), a.schema.PermissionsFrom(c))
}

// rejected is failed for login and MFA verification, where a backend
// rejection becomes an *AuthenticationError.
func (a *authContext) rejected(op string, err error) error {
	var apiErr *backend.APIError
	if !errors.As(err, &apiErr) {
		return a.failed(op, err)
	}
	kind := Classify(apiErr.Message)
	a.logger.Warn("authentication rejected",
		zap.String("operation", op),
		zap.Int("status", apiErr.Status),
		zap.Stringer("kind", kind),
		zap.String("message", apiErr.Message),
	)
	a.metrics.Operation(op, metrics.ResultRejected)
	return &AuthenticationError{Kind: kind, Message: apiErr.Message, Err: err}
}

func (a *authContext) failed(op string, err error) error {
	switch {
	case backend.IsNetworkError(err):
		a.logger.Warn("backend unreachable", zap.String("operation", op), zap.Error(err))
		a.metrics.Operation(op, metrics.ResultNetwork)
		return fmt.Errorf("%s: %w", op, err)
	case backend.IsAPIError(err):
		a.logger.Warn("backend rejected request", zap.String("operation", op), zap.Error(err))
		a.metrics.Operation(op, metrics.ResultRejected)
		return err
	default:
		a.logger.Error("backend request failed", zap.String("operation", op), zap.Error(err))
		a.metrics.Operation(op, metrics.ResultError)
		return fmt.Errorf("%s: %w", op, err)
	}
}

func (a *authContext) setSession(state State, raw string, user *person.Profile) {
	a.mu.Lock()
	a.state = state
	a.token = raw
	a.user = user
	subs := make([]func(State), 0, len(a.subscribers))
	for _, fn := range a.subscribers {
		subs = append(subs, fn)
	}
	a.mu.Unlock()

	a.metrics.SetAuthenticated(raw != "" && user != nil)
	for _, fn := range subs {
		fn(state)
	}
}
