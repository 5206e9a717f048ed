// Package storage provides the durable string key-value backends the client
// session is persisted in.
package storage

import (
	"context"
	"errors"
)

var ErrClosed = errors.New("storage is closed")

// KV is a string-keyed store. Implementations must be safe for concurrent use.
type KV interface {
	// Get returns the value under key. A missing key is ("", false, nil).
	Get(ctx context.Context, key string) (string, bool, error)
	// Set creates or overwrites key.
	Set(ctx context.Context, key, value string) error
	// Delete removes keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

type prefixed struct {
	KV
	prefix string
}

// WithPrefix namespaces every key of kv under prefix.
func WithPrefix(kv KV, prefix string) KV {
	if prefix == "" {
		return kv
	}
	return &prefixed{KV: kv, prefix: prefix}
}

func (p *prefixed) Get(ctx context.Context, key string) (string, bool, error) {
	return p.KV.Get(ctx, p.prefix+key)
}

func (p *prefixed) Set(ctx context.Context, key, value string) error {
	return p.KV.Set(ctx, p.prefix+key, value)
}

func (p *prefixed) Delete(ctx context.Context, keys ...string) error {
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = p.prefix + k
	}
	return p.KV.Delete(ctx, full...)
}
