package backend

import (
	"bytes"
	"encoding/json"

	"github.com/mehmetcc/billadmin/internal/person"
)

const (
	LoginPath          = "/api/Auth/login"
	VerifyMfaPath      = "/api/Auth/verify-mfa-unauthenticated"
	ForgotPasswordPath = "/api/Auth/forgot-password"
	ResetPasswordPath  = "/api/Auth/reset-password"
	SendMfaCodePath    = "/api/Auth/send-mfa-code"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type VerifyMfaRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	MfaCode  string `json:"mfaCode"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Token              string `json:"token"`
	NewPassword        string `json:"newPassword"`
	ConfirmNewPassword string `json:"confirmNewPassword"`
	Email              string `json:"email,omitempty"`
}

type SendMfaCodeRequest struct {
	UserID string `json:"userId"`
}

// AuthData is the payload of a successful login or MFA verification.
type AuthData struct {
	AccessToken string          `json:"accessToken"`
	User        *person.Profile `json:"user"`
}

// LoginResponse is shared by login and MFA verification. A non-empty Otp
// means the backend issued a one-time code and is waiting for verification.
type LoginResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	Data    *AuthData `json:"data,omitempty"`
	Otp     Code      `json:"otp,omitempty"`
}

// MfaRequired reports whether the response is a one-time code challenge.
func (r *LoginResponse) MfaRequired() bool {
	return r.Otp != ""
}

type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Code accepts a one-time code sent either as a JSON string or number.
type Code string

func (c *Code) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")), bytes.Equal(b, []byte("false")):
		*c = ""
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = Code(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		*c = Code(n.String())
		return nil
	}
}
