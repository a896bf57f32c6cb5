// Package store persists values in a durable key-value backend.
//
// The Gateway sits between the record manager and a Backend. It owns the
// JSON codec, enforces a byte quota, classifies write failures and, when the
// backend cannot be used at all, falls back to process memory for the rest
// of the session and says so.
package store

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/idilsaglam/tasklist/internal/events"
)

// DefaultQuota mirrors the usual per-origin allowance of browser storage.
const DefaultQuota int64 = 5 << 20

const probeKey = "__tasklist_probe__"

// Options configure a Gateway.
type Options struct {
	// Quota caps the bytes the backend may hold. Zero means DefaultQuota,
	// negative disables the check.
	Quota  int64
	Bus    *events.Bus
	Logger log.FieldLogger
}

// Usage describes how much of the quota is taken.
type Usage struct {
	Available   bool    `json:"available"`
	BytesUsed   int64   `json:"bytesUsed"`
	BytesTotal  int64   `json:"bytesTotal"`
	PercentUsed float64 `json:"percentUsed"`
}

type Gateway struct {
	backend   Backend
	available bool
	probeErr  error
	quota     int64
	bus       *events.Bus
	logger    log.FieldLogger
}

// New probes backend with a write and a delete. A backend that fails the
// probe is replaced by a Memory backend; Available then reports false and a
// StorageUnavailable event is published.
func New(ctx context.Context, backend Backend, opts Options) *Gateway {
	g := &Gateway{
		backend: backend,
		quota:   opts.Quota,
		bus:     opts.Bus,
		logger:  opts.Logger,
	}
	if g.quota == 0 {
		g.quota = DefaultQuota
	}
	if g.logger == nil {
		g.logger = log.StandardLogger()
	}
	if err := probe(ctx, backend); err != nil {
		g.probeErr = err
		g.backend = NewMemory()
		g.logger.WithError(err).Warn("storage backend unusable, falling back to memory; changes will not survive this session")
		g.bus.Publish(events.StorageUnavailable{Reason: err})
		return g
	}
	g.available = true
	return g
}

func probe(ctx context.Context, b Backend) error {
	if b == nil {
		return errors.New("no backend configured")
	}
	if err := b.Set(ctx, probeKey, []byte("1")); err != nil {
		return fmt.Errorf("probe write: %w", err)
	}
	if err := b.Remove(ctx, probeKey); err != nil {
		return fmt.Errorf("probe delete: %w", err)
	}
	return nil
}

// Available is false when the session runs on the memory fallback.
func (g *Gateway) Available() bool { return g.available }

// ProbeError is why the backend was rejected, nil if it was not.
func (g *Gateway) ProbeError() error { return g.probeErr }

// Encode serialises v the way Save would.
func (g *Gateway) Encode(v any) ([]byte, error) {
	b, err := sonic.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json marshal: %w", err)
	}
	return b, nil
}

// Decode is the inverse of Encode.
func (g *Gateway) Decode(b []byte, dst any) error {
	if err := sonic.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("json unmarshal: %w", err)
	}
	return nil
}

// Save encodes value and writes it under key. Any failure comes back as a
// *StorageError and is also published as a storage-error event.
func (g *Gateway) Save(ctx context.Context, key string, value any) error {
	b, err := g.Encode(value)
	if err != nil {
		return g.fail("save", key, err)
	}
	if err := g.checkQuota(ctx, key, b); err != nil {
		return g.fail("save", key, err)
	}
	if err := g.backend.Set(ctx, key, b); err != nil {
		return g.fail("save", key, err)
	}
	g.logger.WithFields(log.Fields{"key": key, "bytes": len(b)}).Debug("saved")
	return nil
}

func (g *Gateway) checkQuota(ctx context.Context, key string, value []byte) error {
	if g.quota < 0 {
		return nil
	}
	used, err := g.backend.Usage(ctx)
	if err != nil {
		g.logger.WithError(err).Debug("usage unavailable, skipping quota check")
		return nil
	}
	if old, err := g.backend.Get(ctx, key); err == nil {
		used -= int64(len(key) + len(old))
	}
	projected := used + int64(len(key)+len(value))
	if projected > g.quota {
		return fmt.Errorf("%w: %d bytes needed, %d allowed", ErrQuotaExceeded, projected, g.quota)
	}
	return nil
}

func (g *Gateway) fail(op, key string, err error) error {
	se := &StorageError{Op: op, Key: key, Class: Classify(err), Err: err}
	g.logger.WithFields(log.Fields{"key": key, "class": string(se.Class)}).WithError(err).Error("storage write failed")
	g.bus.Publish(events.StorageFailed{Key: key, Class: string(se.Class), Err: err})
	return se
}

// Load decodes the value under key into dst. It reports false, leaving the
// caller to use its fallback, when the key is absent or the payload cannot
// be decoded. Only a failing read is an error.
func (g *Gateway) Load(ctx context.Context, key string, dst any) (bool, error) {
	b, err := g.backend.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, &StorageError{Op: "load", Key: key, Class: Classify(err), Err: err}
	}
	if err := g.Decode(b, dst); err != nil {
		g.logger.WithField("key", key).WithError(err).Warn("stored value is unreadable, using fallback")
		return false, nil
	}
	return true, nil
}

// Remove deletes key, reporting success.
func (g *Gateway) Remove(ctx context.Context, key string) bool {
	if err := g.backend.Remove(ctx, key); err != nil {
		g.logger.WithField("key", key).WithError(err).Warn("remove failed")
		return false
	}
	return true
}

// Clear empties the backend, reporting success.
func (g *Gateway) Clear(ctx context.Context) bool {
	if err := g.backend.Clear(ctx); err != nil {
		g.logger.WithError(err).Warn("clear failed")
		return false
	}
	return true
}

// Usage reports consumption against the quota. All figures are zero when
// the backend failed its probe.
func (g *Gateway) Usage(ctx context.Context) Usage {
	if !g.available {
		return Usage{}
	}
	used, err := g.backend.Usage(ctx)
	if err != nil {
		g.logger.WithError(err).Warn("usage unavailable")
		used = 0
	}
	u := Usage{Available: true, BytesUsed: used}
	if g.quota > 0 {
		u.BytesTotal = g.quota
		u.PercentUsed = math.Round(float64(used)/float64(g.quota)*10000) / 100
	}
	return u
}

func (g *Gateway) Close() error {
	return g.backend.Close()
}
