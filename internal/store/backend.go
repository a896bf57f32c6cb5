package store

import (
	"context"
	"errors"
	"fmt"
)

// Backend is the low-level key-value contract every storage engine meets.
// Implementations translate native failures into ErrNotFound,
// ErrQuotaExceeded and ErrAccessDenied so the Gateway can classify them.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	// Usage is the number of bytes (keys plus values) currently stored.
	Usage(ctx context.Context) (int64, error)
	Close() error
}

var (
	ErrNotFound      = errors.New("key not found")
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	ErrAccessDenied  = errors.New("storage access denied")
)

// Class buckets storage failures for observers.
type Class string

const (
	ClassQuotaExceeded Class = "QuotaExceeded"
	ClassAccessDenied  Class = "AccessDenied"
	ClassUnknown       Class = "Unknown"
)

// Classify maps err onto a Class.
func Classify(err error) Class {
	switch {
	case errors.Is(err, ErrQuotaExceeded):
		return ClassQuotaExceeded
	case errors.Is(err, ErrAccessDenied):
		return ClassAccessDenied
	default:
		return ClassUnknown
	}
}

// StorageError is returned by Gateway writes.
type StorageError struct {
	Op    string
	Key   string
	Class Class
	Err   error
}

func (e *StorageError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s %q: %s: %v", e.Op, e.Key, e.Class, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Unavailable is a Backend that fails every call with err. It stands in for
// a backend that could not even be opened, so the Gateway's probe reports
// the real reason.
func Unavailable(err error) Backend { return broken{err} }

type broken struct{ err error }

func (b broken) Get(context.Context, string) ([]byte, error) { return nil, b.err }
func (b broken) Set(context.Context, string, []byte) error   { return b.err }
func (b broken) Remove(context.Context, string) error        { return b.err }
func (b broken) Clear(context.Context) error                 { return b.err }
func (b broken) Usage(context.Context) (int64, error)        { return 0, b.err }
func (b broken) Close() error                                { return nil }
