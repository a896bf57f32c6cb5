// Package rediskv stores task data in redis.
package rediskv

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/idilsaglam/tasklist/internal/store"
)

// DefaultPrefix namespaces every key this backend touches.
const DefaultPrefix = "tasklist:"

const scanBatch = 100

// Backend implements store.Backend on a redis client.
type Backend struct {
	client *redis.Client
	prefix string
}

func New(client *redis.Client, prefix string) *Backend {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Backend{client: client, prefix: prefix}
}

// ParseConnString accepts a redis:// URL or the "host:port,password=...,ssl=true" form.
func ParseConnString(conn string) (*redis.Options, error) {
	if conn == "" {
		return nil, errors.New("empty redis connection string")
	}
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts, nil
	}
	parts := strings.Split(conn, ",")
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(kv[1], "true") {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts, nil
}

// Dial connects using ParseConnString.
func Dial(conn, prefix string) (*Backend, error) {
	opts, err := ParseConnString(conn)
	if err != nil {
		return nil, err
	}
	return New(redis.NewClient(opts), prefix), nil
}

func (b *Backend) key(k string) string { return b.prefix + k }

func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := b.client.Get(ctx, b.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, wrap("get", err)
	}
	return v, nil
}

func (b *Backend) Set(ctx context.Context, key string, value []byte) error {
	if err := b.client.Set(ctx, b.key(key), value, 0).Err(); err != nil {
		return wrap("set", err)
	}
	return nil
}

func (b *Backend) Remove(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, b.key(key)).Err(); err != nil {
		return wrap("del", err)
	}
	return nil
}

func (b *Backend) Clear(ctx context.Context) error {
	return b.scan(ctx, func(keys []string) error {
		if err := b.client.Del(ctx, keys...).Err(); err != nil {
			return wrap("del", err)
		}
		return nil
	})
}

func (b *Backend) Usage(ctx context.Context) (int64, error) {
	var n int64
	err := b.scan(ctx, func(keys []string) error {
		for _, k := range keys {
			size, err := b.client.StrLen(ctx, k).Result()
			if err != nil {
				return wrap("strlen", err)
			}
			n += int64(len(k)-len(b.prefix)) + size
		}
		return nil
	})
	return n, err
}

func (b *Backend) scan(ctx context.Context, fn func(keys []string) error) error {
	var cursor uint64
	for {
		keys, next, err := b.client.Scan(ctx, cursor, b.prefix+"*", scanBatch).Result()
		if err != nil {
			return wrap("scan", err)
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (b *Backend) Close() error { return b.client.Close() }

// wrap attaches the store sentinel that matches a redis error reply.
func wrap(op string, err error) error {
	msg := err.Error()
	switch {
	case hasReplyPrefix(msg, "NOPERM", "NOAUTH", "WRONGPASS", "READONLY"):
		return fmt.Errorf("redis %s: %w: %w", op, store.ErrAccessDenied, err)
	case hasReplyPrefix(msg, "OOM"):
		return fmt.Errorf("redis %s: %w: %w", op, store.ErrQuotaExceeded, err)
	}
	return fmt.Errorf("redis %s: %w", op, err)
}

func hasReplyPrefix(msg string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(msg, p) {
			return true
		}
	}
	return false
}
