package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mehmetcc/billadmin/internal/person"
	"github.com/mehmetcc/billadmin/internal/storage"
	"go.uber.org/zap"
)

type SessionStore interface {
	Token(ctx context.Context) (string, bool, error)
	User(ctx context.Context) (*person.Profile, bool, error)
	SaveUser(ctx context.Context, user *person.Profile) error
	// Save writes token then user. If the user write fails the previous token
	// is put back, so a token is never left stored without its user.
	Save(ctx context.Context, token string, user *person.Profile) error
	TempCredentials(ctx context.Context) (*TempCredentials, bool, error)
	SaveTempCredentials(ctx context.Context, creds TempCredentials) error
	ClearTempCredentials(ctx context.Context) error
	// Clear removes token, user and temp credentials.
	Clear(ctx context.Context) error
}

type sessionStore struct {
	kv     storage.KV
	logger *zap.Logger
}

func NewSessionStore(kv storage.KV, logger *zap.Logger) SessionStore {
	return &sessionStore{kv: kv, logger: logger}
}

func (s *sessionStore) Token(ctx context.Context) (string, bool, error) {
	v, ok, err := s.kv.Get(ctx, TokenKey)
	if err != nil {
		return "", false, fmt.Errorf("read token: %w", err)
	}
	if !ok || v == "" {
		return "", false, nil
	}
	return v, true, nil
}

func (s *sessionStore) User(ctx context.Context) (*person.Profile, bool, error) {
	v, ok, err := s.kv.Get(ctx, UserKey)
	if err != nil {
		return nil, false, fmt.Errorf("read user: %w", err)
	}
	if !ok || v == "" || v == "null" {
		return nil, false, nil
	}
	var p person.Profile
	if err := json.Unmarshal([]byte(v), &p); err != nil {
		return nil, false, fmt.Errorf("%w: user: %v", ErrCorrupt, err)
	}
	return &p, true, nil
}

func (s *sessionStore) SaveUser(ctx context.Context, user *person.Profile) error {
	b, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := s.kv.Set(ctx, UserKey, string(b)); err != nil {
		return fmt.Errorf("write user: %w", err)
	}
	return nil
}

func (s *sessionStore) Save(ctx context.Context, token string, user *person.Profile) error {
	if token == "" || user == nil {
		return errors.New("session requires both token and user")
	}
	b, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	prev, hadPrev, err := s.kv.Get(ctx, TokenKey)
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}

	if err := s.kv.Set(ctx, TokenKey, token); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	if err := s.kv.Set(ctx, UserKey, string(b)); err != nil {
		s.restoreToken(ctx, prev, hadPrev)
		return fmt.Errorf("write user: %w", err)
	}
	return nil
}

func (s *sessionStore) restoreToken(ctx context.Context, prev string, hadPrev bool) {
	var err error
	if hadPrev {
		err = s.kv.Set(ctx, TokenKey, prev)
	} else {
		err = s.kv.Delete(ctx, TokenKey)
	}
	if err != nil {
		s.logger.Error("failed to restore previous token", zap.Error(err))
	}
}

func (s *sessionStore) TempCredentials(ctx context.Context) (*TempCredentials, bool, error) {
	v, ok, err := s.kv.Get(ctx, TempKey)
	if err != nil {
		return nil, false, fmt.Errorf("read temp credentials: %w", err)
	}
	if !ok || v == "" {
		return nil, false, nil
	}
	var c TempCredentials
	if err := json.Unmarshal([]byte(v), &c); err != nil {
		return nil, false, fmt.Errorf("%w: temp credentials: %v", ErrCorrupt, err)
	}
	return &c, true, nil
}

func (s *sessionStore) SaveTempCredentials(ctx context.Context, creds TempCredentials) error {
	b, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, TempKey, string(b)); err != nil {
		return fmt.Errorf("write temp credentials: %w", err)
	}
	return nil
}

func (s *sessionStore) ClearTempCredentials(ctx context.Context) error {
	if err := s.kv.Delete(ctx, TempKey); err != nil {
		return fmt.Errorf("clear temp credentials: %w", err)
	}
	return nil
}

func (s *sessionStore) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, TokenKey, UserKey, TempKey); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
