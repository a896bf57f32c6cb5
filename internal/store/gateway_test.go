package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/idilsaglam/tasklist/internal/events"
	"github.com/idilsaglam/tasklist/internal/store"
)

// stubBackend delegates to a Memory unless a func field overrides the call.
type stubBackend struct {
	*store.Memory
	setFn    func(key string, value []byte) error
	getFn    func(key string) ([]byte, error)
	removeFn func(key string) error
}

func newStub() *stubBackend { return &stubBackend{Memory: store.NewMemory()} }

func (s *stubBackend) Set(ctx context.Context, key string, value []byte) error {
	if s.setFn != nil {
		return s.setFn(key, value)
	}
	return s.Memory.Set(ctx, key, value)
}

func (s *stubBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if s.getFn != nil {
		return s.getFn(key)
	}
	return s.Memory.Get(ctx, key)
}

func (s *stubBackend) Remove(ctx context.Context, key string) error {
	if s.removeFn != nil {
		return s.removeFn(key)
	}
	return s.Memory.Remove(ctx, key)
}

func recordEvents(bus *events.Bus, kind events.Kind) *[]events.Event {
	var got []events.Event
	bus.Subscribe(kind, func(e events.Event) { got = append(got, e) })
	return &got
}

func TestGatewayFallsBackWhenProbeFails(t *testing.T) {
	logger, hook := test.NewNullLogger()
	bus := events.NewBus(logger)
	got := recordEvents(bus, events.KindStorageUnavailable)

	b := newStub()
	b.setFn = func(string, []byte) error { return store.ErrAccessDenied }

	ctx := context.Background()
	gw := store.New(ctx, b, store.Options{Bus: bus, Logger: logger})
	if gw.Available() {
		t.Fatalf("expected gateway to be unavailable")
	}
	if !errors.Is(gw.ProbeError(), store.ErrAccessDenied) {
		t.Fatalf("unexpected probe error: %v", gw.ProbeError())
	}
	if len(*got) != 1 {
		t.Fatalf("expected one storage-unavailable event, got %d", len(*got))
	}
	if hook.LastEntry() == nil {
		t.Fatalf("expected the fallback to be logged")
	}

	if u := gw.Usage(ctx); u != (store.Usage{}) {
		t.Fatalf("expected zero usage, got %+v", u)
	}

	// The session keeps working on the memory substitute.
	if err := gw.Save(ctx, "k", map[string]int{"n": 1}); err != nil {
		t.Fatalf("save on fallback: %v", err)
	}
	var out map[string]int
	if ok, err := gw.Load(ctx, "k", &out); !ok || err != nil || out["n"] != 1 {
		t.Fatalf("load on fallback: ok=%v err=%v out=%v", ok, err, out)
	}
}

func TestGatewayProbeFailsOnRemove(t *testing.T) {
	b := newStub()
	b.removeFn = func(string) error { return errors.New("boom") }
	logger, _ := test.NewNullLogger()
	gw := store.New(context.Background(), b, store.Options{Logger: logger})
	if gw.Available() {
		t.Fatalf("expected gateway to be unavailable")
	}
}

func TestGatewaySaveClassifiesFailures(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want store.Class
	}{
		{"quota", store.ErrQuotaExceeded, store.ClassQuotaExceeded},
		{"denied", store.ErrAccessDenied, store.ClassAccessDenied},
		{"other", errors.New("disk on fire"), store.ClassUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			logger, _ := test.NewNullLogger()
			bus := events.NewBus(logger)
			got := recordEvents(bus, events.KindStorageError)

			b := newStub()
			ctx := context.Background()
			gw := store.New(ctx, b, store.Options{Bus: bus, Logger: logger})
			b.setFn = func(string, []byte) error { return tc.err }

			err := gw.Save(ctx, "k", "v")
			var se *store.StorageError
			if !errors.As(err, &se) {
				t.Fatalf("expected *StorageError, got %T %v", err, err)
			}
			if se.Class != tc.want {
				t.Fatalf("expected class %s, got %s", tc.want, se.Class)
			}
			if !errors.Is(err, tc.err) {
				t.Fatalf("expected %v to wrap %v", err, tc.err)
			}
			if len(*got) != 1 {
				t.Fatalf("expected one storage-error event, got %d", len(*got))
			}
			if ev := (*got)[0].(events.StorageFailed); ev.Class != string(tc.want) || ev.Key != "k" {
				t.Fatalf("unexpected event %+v", ev)
			}
		})
	}
}

func TestGatewayEnforcesQuota(t *testing.T) {
	ctx := context.Background()
	logger, _ := test.NewNullLogger()
	gw := store.New(ctx, store.NewMemory(), store.Options{Quota: 20, Logger: logger})

	// key (1) + `"0123456789"` (12) = 13 bytes.
	if err := gw.Save(ctx, "k", "0123456789"); err != nil {
		t.Fatalf("save within quota: %v", err)
	}
	// Overwriting the same key only counts the new value.
	if err := gw.Save(ctx, "k", "0123456789abcd"); err != nil {
		t.Fatalf("overwrite within quota: %v", err)
	}
	err := gw.Save(ctx, "other", "0123456789")
	if !errors.Is(err, store.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}

	u := gw.Usage(ctx)
	if !u.Available || u.BytesUsed != 17 || u.BytesTotal != 20 || u.PercentUsed != 85 {
		t.Fatalf("unexpected usage %+v", u)
	}
}

func TestGatewayLoadFallbacks(t *testing.T) {
	ctx := context.Background()
	logger, _ := test.NewNullLogger()
	b := newStub()
	gw := store.New(ctx, b, store.Options{Logger: logger})

	var dst map[string]any
	if ok, err := gw.Load(ctx, "missing", &dst); ok || err != nil {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}

	if err := b.Memory.Set(ctx, "bad", []byte("{oops")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if ok, err := gw.Load(ctx, "bad", &dst); ok || err != nil {
		t.Fatalf("corrupt value: ok=%v err=%v", ok, err)
	}

	b.getFn = func(string) ([]byte, error) { return nil, store.ErrAccessDenied }
	_, err := gw.Load(ctx, "k", &dst)
	var se *store.StorageError
	if !errors.As(err, &se) || se.Class != store.ClassAccessDenied {
		t.Fatalf("expected access denied storage error, got %v", err)
	}
}

func TestGatewayRemoveAndClear(t *testing.T) {
	ctx := context.Background()
	logger, _ := test.NewNullLogger()
	b := newStub()
	gw := store.New(ctx, b, store.Options{Logger: logger})

	if err := gw.Save(ctx, "k", 1); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !gw.Remove(ctx, "k") {
		t.Fatalf("remove reported failure")
	}
	if !gw.Clear(ctx) {
		t.Fatalf("clear reported failure")
	}
	b.removeFn = func(string) error { return errors.New("nope") }
	if gw.Remove(ctx, "k") {
		t.Fatalf("expected remove to report failure")
	}
}

func TestUnavailableBackendReportsReason(t *testing.T) {
	reason := errors.New("cannot open")
	logger, _ := test.NewNullLogger()
	gw := store.New(context.Background(), store.Unavailable(reason), store.Options{Logger: logger})
	if gw.Available() || !errors.Is(gw.ProbeError(), reason) {
		t.Fatalf("expected probe to fail with %v, got %v", reason, gw.ProbeError())
	}
}
