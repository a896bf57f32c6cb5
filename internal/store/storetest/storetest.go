// Package storetest holds the behaviour every store.Backend must share.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/idilsaglam/tasklist/internal/store"
)

// Run exercises b. It expects b to start empty.
func Run(t *testing.T, b store.Backend) {
	t.Helper()
	ctx := context.Background()

	if _, err := b.Get(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("get missing: expected ErrNotFound, got %v", err)
	}

	if err := b.Set(ctx, "a", []byte(`{"x":1}`)); err != nil {
		t.Fatalf("set a: %v", err)
	}
	got, err := b.Get(ctx, "a")
	if err != nil {
		t.Fatalf("get a: %v", err)
	}
	if string(got) != `{"x":1}` {
		t.Fatalf("unexpected value for a: %q", got)
	}

	if err := b.Set(ctx, "a", []byte("22")); err != nil {
		t.Fatalf("overwrite a: %v", err)
	}
	if err := b.Set(ctx, "bb", []byte("333")); err != nil {
		t.Fatalf("set bb: %v", err)
	}
	used, err := b.Usage(ctx)
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if want := int64(len("a") + 2 + len("bb") + 3); used != want {
		t.Fatalf("expected usage %d, got %d", want, used)
	}

	if err := b.Remove(ctx, "a"); err != nil {
		t.Fatalf("remove a: %v", err)
	}
	if _, err := b.Get(ctx, "a"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("get removed: expected ErrNotFound, got %v", err)
	}
	if err := b.Remove(ctx, "never-set"); err != nil {
		t.Fatalf("remove missing key should succeed: %v", err)
	}

	if err := b.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := b.Get(ctx, "bb"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("get after clear: expected ErrNotFound, got %v", err)
	}
	if used, err := b.Usage(ctx); err != nil || used != 0 {
		t.Fatalf("usage after clear: %d, %v", used, err)
	}
}
