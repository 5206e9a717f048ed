package auth

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mehmetcc/billadmin/internal/backend"
	"github.com/mehmetcc/billadmin/internal/httpx"
	"github.com/mehmetcc/billadmin/internal/person"
	"go.uber.org/zap"
)

type AuthenticationHandler interface {
	Login(w http.ResponseWriter, r *http.Request)
	VerifyMfa(w http.ResponseWriter, r *http.Request)
	SendMfaCode(w http.ResponseWriter, r *http.Request)
	Logout(w http.ResponseWriter, r *http.Request)
	ForgotPassword(w http.ResponseWriter, r *http.Request)
	ResetPassword(w http.ResponseWriter, r *http.Request)
	Me(w http.ResponseWriter, r *http.Request)
	Routes() chi.Router
}

type authenticationHandler struct {
	logger *zap.Logger
	auth   Context
}

func NewAuthenticationHandler(auth Context, l *zap.Logger) AuthenticationHandler {
	return &authenticationHandler{
		logger: l,
		auth:   auth,
	}
}

func (a *authenticationHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/login", a.Login)
	r.Post("/mfa/verify", a.VerifyMfa)
	r.Post("/mfa/send", a.SendMfaCode)
	r.Post("/logout", a.Logout)
	r.Post("/forgot-password", a.ForgotPassword)
	r.Post("/reset-password", a.ResetPassword)
	r.Get("/me", a.Me)
	return r
}

func (a *authenticationHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		a.logger.Warn("failed to decode login request body", zap.Error(err))
		return
	}

	outcome, err := a.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		a.writeFailure(w, err)
		return
	}
	if outcome == LoginMFARequired {
		httpx.WriteJSON(w, http.StatusAccepted, sessionResponse{Status: string(httpx.ErrMfaRequired)})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, sessionResponse{
		Status: a.auth.State().String(),
		User:   a.auth.User(),
	})
}

func (a *authenticationHandler) VerifyMfa(w http.ResponseWriter, r *http.Request) {
	var req verifyMfaRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		a.logger.Warn("failed to decode mfa request body", zap.Error(err))
		return
	}

	if err := a.auth.VerifyMfa(r.Context(), req.UserID, req.Code); err != nil {
		a.writeFailure(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, sessionResponse{
		Status: a.auth.State().String(),
		User:   a.auth.User(),
	})
}

func (a *authenticationHandler) SendMfaCode(w http.ResponseWriter, r *http.Request) {
	var req sendMfaCodeRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		a.logger.Warn("failed to decode send code request body", zap.Error(err))
		return
	}

	if err := a.auth.SendMfaCode(r.Context(), req.UserID); err != nil {
		a.writeFailure(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, statusResponse{Status: "sent"})
}

func (a *authenticationHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := a.auth.Logout(r.Context()); err != nil {
		a.writeFailure(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, statusResponse{Status: "logged_out"})
}

func (a *authenticationHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		a.logger.Warn("failed to decode forgot password request body", zap.Error(err))
		return
	}

	if err := a.auth.ForgotPassword(r.Context(), req.Email); err != nil {
		a.writeFailure(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, statusResponse{Status: "sent"})
}

func (a *authenticationHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		a.logger.Warn("failed to decode reset password request body", zap.Error(err))
		return
	}

	err := a.auth.ResetPassword(r.Context(), ResetPasswordInput{
		Token:           req.Token,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmNewPassword,
		Email:           req.Email,
	})
	if err != nil {
		a.writeFailure(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, statusResponse{Status: "password_reset"})
}

func (a *authenticationHandler) Me(w http.ResponseWriter, r *http.Request) {
	if a.auth.IsLoading() {
		httpx.WriteErrorCode(w, http.StatusServiceUnavailable, httpx.ErrLoading, "session is loading")
		return
	}
	if !a.auth.IsAuthenticated() {
		httpx.WriteErrorCode(w, http.StatusUnauthorized, httpx.ErrUnauthorized, "not signed in")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, sessionResponse{
		Status: a.auth.State().String(),
		User:   a.auth.User(),
	})
}

func (a *authenticationHandler) writeFailure(w http.ResponseWriter, err error) {
	var authErr *AuthenticationError
	var apiErr *backend.APIError
	switch {
	case errors.Is(err, ErrValidation):
		a.logger.Debug("request validation failed", zap.Error(err))
		httpx.WriteError(w, http.StatusUnprocessableEntity, httpx.ErrorResponse[[]httpx.FieldError]{
			Code:    httpx.ErrValidationFailed,
			Message: "validation failed",
			Details: httpx.ValidationDetails(err),
		})
	case errors.As(err, &authErr):
		httpx.WriteError(w, http.StatusUnauthorized, httpx.ErrorResponse[failureDetails]{
			Code:    httpx.ErrUnauthorized,
			Message: authErr.Message,
			Details: failureDetails{Kind: authErr.Kind.String(), Title: authErr.Kind.Title()},
		})
	case errors.Is(err, ErrMissingMfaContext):
		httpx.WriteErrorCode(w, http.StatusConflict, httpx.ErrRequestRejected, err.Error())
	case errors.As(err, &apiErr):
		httpx.WriteErrorCode(w, http.StatusBadRequest, httpx.ErrRequestRejected, apiErr.Error())
	case backend.IsNetworkError(err):
		httpx.WriteErrorCode(w, http.StatusBadGateway, httpx.ErrUpstreamUnavailable, "billing service unreachable")
	default:
		a.logger.Error("internal server error", zap.Error(err))
		httpx.WriteErrorCode(w, http.StatusInternalServerError, httpx.ErrInternal, "internal server error")
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyMfaRequest struct {
	UserID string `json:"userId"`
	Code   string `json:"code"`
}

type sendMfaCodeRequest struct {
	UserID string `json:"userId"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token              string `json:"token"`
	NewPassword        string `json:"newPassword"`
	ConfirmNewPassword string `json:"confirmNewPassword"`
	Email              string `json:"email,omitempty"`
}

type sessionResponse struct {
	Status string          `json:"status"`
	User   *person.Profile `json:"user,omitempty"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type failureDetails struct {
	Kind  string `json:"kind"`
	Title string `json:"title"`
}
