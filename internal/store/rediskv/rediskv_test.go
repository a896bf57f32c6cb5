package rediskv

import (
	"context"
	"errors"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/idilsaglam/tasklist/internal/store"
	"github.com/idilsaglam/tasklist/internal/store/storetest"
)

func newBackend(t *testing.T) (*Backend, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b := New(client, "")
	t.Cleanup(func() { _ = b.Close() })
	return b, mr
}

func TestBackendContract(t *testing.T) {
	b, _ := newBackend(t)
	storetest.Run(t, b)
}

func TestBackendNamespacesKeys(t *testing.T) {
	b, mr := newBackend(t)
	ctx := context.Background()

	if err := mr.Set("unrelated", "keep me"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := b.Set(ctx, "records", []byte("[]")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, err := mr.Get(DefaultPrefix + "records"); err != nil || got != "[]" {
		t.Fatalf("expected prefixed key, got %q %v", got, err)
	}
	if err := b.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if !mr.Exists("unrelated") {
		t.Fatalf("clear removed a key outside the prefix")
	}
}

func TestBackendClassifiesErrorReplies(t *testing.T) {
	cases := []struct {
		reply string
		want  error
	}{
		{"OOM command not allowed when used memory > 'maxmemory'", store.ErrQuotaExceeded},
		{"NOPERM this user has no permissions to run the 'set' command", store.ErrAccessDenied},
		{"READONLY You can't write against a read only replica.", store.ErrAccessDenied},
	}
	for _, tc := range cases {
		t.Run(tc.reply, func(t *testing.T) {
			b, mr := newBackend(t)
			mr.SetError(tc.reply)
			err := b.Set(context.Background(), "k", []byte("v"))
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestParseConnString(t *testing.T) {
	opts, err := ParseConnString("redis://:secret@localhost:6380/2")
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if opts.Addr != "localhost:6380" || opts.Password != "secret" || opts.DB != 2 {
		t.Fatalf("unexpected options from url: %+v", opts)
	}

	opts, err = ParseConnString("cache.local:6380,password=pw,ssl=True")
	if err != nil {
		t.Fatalf("parse pairs: %v", err)
	}
	if opts.Addr != "cache.local:6380" || opts.Password != "pw" || opts.TLSConfig == nil {
		t.Fatalf("unexpected options from pairs: %+v", opts)
	}

	if _, err := ParseConnString(""); err == nil {
		t.Fatalf("expected an error for an empty string")
	}
}
