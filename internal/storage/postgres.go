package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

const (
	selectValueQuery = `
						SELECT value FROM client_kv WHERE key = $1
						`
	upsertValueQuery = `
						INSERT INTO client_kv (key, value, updated_at)
						VALUES ($1, $2, now())
						ON CONFLICT (key) DO UPDATE
						SET value = EXCLUDED.value, updated_at = now()
						`
	deleteValueQuery = `
						DELETE FROM client_kv WHERE key = $1
						`
)

type postgresKV struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgres stores values in the client_kv table created by the migrations.
func NewPostgres(db *sql.DB, logger *zap.Logger) KV {
	return &postgresKV{db: db, logger: logger}
}

func (p *postgresKV) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := p.db.QueryRowContext(ctx, selectValueQuery, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		p.logger.Error("failed to read key", zap.String("key", key), zap.Error(err))
		return "", false, err
	}
	return v, true, nil
}

func (p *postgresKV) Set(ctx context.Context, key, value string) error {
	if _, err := p.db.ExecContext(ctx, upsertValueQuery, key, value); err != nil {
		p.logger.Error("failed to write key", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// Delete removes all keys in one transaction.
func (p *postgresKV) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, deleteValueQuery, k); err != nil {
			p.logger.Error("failed to delete key", zap.String("key", k), zap.Error(err))
			return fmt.Errorf("delete %s: %w", k, err)
		}
	}
	return tx.Commit()
}

func (p *postgresKV) Close() error {
	return p.db.Close()
}
