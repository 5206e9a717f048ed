// Package backend is the HTTP client for the billing backend's /api/Auth
// endpoints. Every call is a single attempt; failures are classified as
// ErrNetwork (transport) or *APIError (the backend said no).
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mehmetcc/billadmin/internal/httpx"
	"go.uber.org/zap"
)

type AuthClient interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	VerifyMfa(ctx context.Context, req VerifyMfaRequest) (*LoginResponse, error)
	ForgotPassword(ctx context.Context, req ForgotPasswordRequest) (*StatusResponse, error)
	ResetPassword(ctx context.Context, req ResetPasswordRequest) (*StatusResponse, error)
	SendMfaCode(ctx context.Context, req SendMfaCodeRequest) (*StatusResponse, error)
}

type authClient struct {
	baseURL    string
	httpClient *http.Client
	meta       httpx.ClientMeta
	logger     *zap.Logger
}

// NewAuthClient targets baseURL. A nil httpClient gets a 30s timeout client.
func NewAuthClient(baseURL string, httpClient *http.Client, meta httpx.ClientMeta, logger *zap.Logger) AuthClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &authClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		meta:       meta,
		logger:     logger,
	}
}

func (c *authClient) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	var out LoginResponse
	if err := c.post(ctx, LoginPath, req, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, &APIError{Status: http.StatusOK, Message: out.Message}
	}
	return &out, nil
}

func (c *authClient) VerifyMfa(ctx context.Context, req VerifyMfaRequest) (*LoginResponse, error) {
	var out LoginResponse
	if err := c.post(ctx, VerifyMfaPath, req, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, &APIError{Status: http.StatusOK, Message: out.Message}
	}
	return &out, nil
}

func (c *authClient) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) (*StatusResponse, error) {
	return c.postStatus(ctx, ForgotPasswordPath, req)
}

func (c *authClient) ResetPassword(ctx context.Context, req ResetPasswordRequest) (*StatusResponse, error) {
	return c.postStatus(ctx, ResetPasswordPath, req)
}

func (c *authClient) SendMfaCode(ctx context.Context, req SendMfaCodeRequest) (*StatusResponse, error) {
	return c.postStatus(ctx, SendMfaCodePath, req)
}

func (c *authClient) postStatus(ctx context.Context, path string, body any) (*StatusResponse, error) {
	var out StatusResponse
	if err := c.post(ctx, path, body, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, &APIError{Status: http.StatusOK, Message: out.Message}
	}
	return &out, nil
}

func (c *authClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	correlationID := c.meta.Apply(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("backend request failed",
			zap.String("path", path),
			zap.String("correlation_id", correlationID),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrNetwork, err)
	}

	c.logger.Debug("backend request completed",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("correlation_id", correlationID),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(raw, resp.StatusCode)}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// errorMessage pulls the backend's message from an error body, falling back
// to the status text.
func errorMessage(raw []byte, status int) string {
	var body struct {
		Message string `json:"message"`
		Title   string `json:"title"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Title != "" {
			return body.Title
		}
	}
	return http.StatusText(status)
}

// IsNetworkError reports whether err means the backend could not be reached.
func IsNetworkError(err error) bool {
	return errors.Is(err, ErrNetwork)
}
