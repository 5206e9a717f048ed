package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mehmetcc/billadmin/internal/httpx"
	"github.com/mehmetcc/billadmin/internal/person"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorded struct {
	path    string
	body    map[string]any
	headers http.Header
}

func newServer(t *testing.T, status int, response string) (*httptest.Server, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.path = r.URL.Path
		rec.headers = r.Header.Clone()
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &rec.body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func newClient(url string) AuthClient {
	return NewAuthClient(url+"/", nil, httpx.ClientMeta{Platform: httpx.PlatformCLI, AppVersion: "test"}, zap.NewNop())
}

func TestLogin_Success(t *testing.T) {
	srv, rec := newServer(t, http.StatusOK, `{
		"success": true,
		"message": "ok",
		"data": {"accessToken": "a.b.c", "user": {"id": 5, "email": "a@b.com", "mustChangePassword": false}}
	}`)

	resp, err := newClient(srv.URL).Login(context.Background(), LoginRequest{Email: "a@b.com", Password: "pw"})
	require.NoError(t, err)
	assert.False(t, resp.MfaRequired())
	require.NotNil(t, resp.Data)
	assert.Equal(t, "a.b.c", resp.Data.AccessToken)
	assert.Equal(t, person.ID("5"), resp.Data.User.ID)

	assert.Equal(t, LoginPath, rec.path)
	assert.Equal(t, map[string]any{"email": "a@b.com", "password": "pw"}, rec.body)
	assert.Equal(t, "application/json", rec.headers.Get("Content-Type"))
	assert.NotEmpty(t, rec.headers.Get(httpx.HeaderCorrelationID))
	assert.Equal(t, "cli", rec.headers.Get(httpx.HeaderPlatform))
}

func TestLogin_OtpChallenge(t *testing.T) {
	for _, otp := range []string{`"123456"`, `123456`} {
		srv, _ := newServer(t, http.StatusOK, `{"success": true, "message": "code sent", "otp": `+otp+`}`)

		resp, err := newClient(srv.URL).Login(context.Background(), LoginRequest{Email: "a@b.com", Password: "pw"})
		require.NoError(t, err)
		assert.True(t, resp.MfaRequired())
		assert.Equal(t, Code("123456"), resp.Otp)
		assert.Nil(t, resp.Data)
	}
}

func TestLogin_Rejected(t *testing.T) {
	t.Run("success false", func(t *testing.T) {
		srv, _ := newServer(t, http.StatusOK, `{"success": false, "message": "Invalid email or password"}`)

		_, err := newClient(srv.URL).Login(context.Background(), LoginRequest{})
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "Invalid email or password", apiErr.Message)
		assert.Equal(t, "Invalid email or password", err.Error())
	})

	t.Run("non-2xx with message", func(t *testing.T) {
		srv, _ := newServer(t, http.StatusUnauthorized, `{"success": false, "message": "Account is locked"}`)

		_, err := newClient(srv.URL).Login(context.Background(), LoginRequest{})
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
		assert.Equal(t, "Account is locked", apiErr.Message)
		assert.False(t, IsNetworkError(err))
	})

	t.Run("non-2xx problem details title", func(t *testing.T) {
		srv, _ := newServer(t, http.StatusBadRequest, `{"title": "One or more validation errors occurred."}`)

		_, err := newClient(srv.URL).Login(context.Background(), LoginRequest{})
		assert.EqualError(t, err, "One or more validation errors occurred.")
	})

	t.Run("non-2xx without body", func(t *testing.T) {
		srv, _ := newServer(t, http.StatusInternalServerError, ``)

		_, err := newClient(srv.URL).Login(context.Background(), LoginRequest{})
		assert.True(t, IsAPIError(err))
		assert.EqualError(t, err, "Internal Server Error")
	})
}

func TestLogin_InvalidBody(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `<html>`)

	_, err := newClient(srv.URL).Login(context.Background(), LoginRequest{})
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newClient(url).Login(context.Background(), LoginRequest{Email: "a@b.com", Password: "pw"})
	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
	assert.False(t, IsAPIError(err))
}

func TestVerifyMfa(t *testing.T) {
	srv, rec := newServer(t, http.StatusOK, `{"success": true, "data": {"accessToken": "x.y.z", "user": {"id": "u1"}}}`)

	resp, err := newClient(srv.URL).VerifyMfa(context.Background(), VerifyMfaRequest{Email: "a@b.com", Password: "pw", MfaCode: "654321"})
	require.NoError(t, err)
	assert.Equal(t, "x.y.z", resp.Data.AccessToken)
	assert.Equal(t, VerifyMfaPath, rec.path)
	assert.Equal(t, "654321", rec.body["mfaCode"])
}

func TestStatusEndpoints(t *testing.T) {
	tests := []struct {
		name string
		call func(AuthClient) (*StatusResponse, error)
		path string
		want map[string]any
	}{
		{
			name: "forgot password",
			call: func(c AuthClient) (*StatusResponse, error) {
				return c.ForgotPassword(context.Background(), ForgotPasswordRequest{Email: "a@b.com"})
			},
			path: ForgotPasswordPath,
			want: map[string]any{"email": "a@b.com"},
		},
		{
			name: "reset password without email",
			call: func(c AuthClient) (*StatusResponse, error) {
				return c.ResetPassword(context.Background(), ResetPasswordRequest{Token: "t", NewPassword: "n", ConfirmNewPassword: "n"})
			},
			path: ResetPasswordPath,
			want: map[string]any{"token": "t", "newPassword": "n", "confirmNewPassword": "n"},
		},
		{
			name: "send mfa code",
			call: func(c AuthClient) (*StatusResponse, error) {
				return c.SendMfaCode(context.Background(), SendMfaCodeRequest{UserID: "7"})
			},
			path: SendMfaCodePath,
			want: map[string]any{"userId": "7"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, rec := newServer(t, http.StatusOK, `{"success": true, "message": "done"}`)

			resp, err := tt.call(newClient(srv.URL))
			require.NoError(t, err)
			assert.Equal(t, "done", resp.Message)
			assert.Equal(t, tt.path, rec.path)
			assert.Equal(t, tt.want, rec.body)
		})
	}

	t.Run("rejection carries message", func(t *testing.T) {
		srv, _ := newServer(t, http.StatusOK, `{"success": false, "message": "Reset token has expired"}`)

		_, err := newClient(srv.URL).ResetPassword(context.Background(), ResetPasswordRequest{})
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, "Reset token has expired", apiErr.Message)
	})
}
