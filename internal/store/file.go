package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/bytedance/sonic"
)

// File is a Backend kept in one human-readable JSON document on disk.
// Every Set rewrites the whole document through a temp file and rename,
// so a crash leaves either the old or the new file, never half of one.
type File struct {
	mu   sync.Mutex
	path string
}

const dataFileName = "tasks.json"

// DefaultPath is tasks.json under the user's ~/.tasklist directory.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home: %w", err)
	}
	return filepath.Join(home, ".tasklist", dataFileName), nil
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read()
	if err != nil {
		return nil, err
	}
	v, ok := doc[key]
	if !ok {
		return nil, ErrNotFound
	}
	return []byte(v), nil
}

func (f *File) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read()
	if err != nil {
		return err
	}
	doc[key] = string(value)
	return f.write(doc)
}

func (f *File) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := doc[key]; !ok {
		return nil
	}
	delete(doc, key)
	return f.write(doc)
}

func (f *File) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.write(map[string]string{})
}

func (f *File) Usage(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read()
	if err != nil {
		return 0, err
	}
	var n int64
	for k, v := range doc {
		n += int64(len(k) + len(v))
	}
	return n, nil
}

func (f *File) Close() error { return nil }

func (f *File) read() (map[string]string, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fileErr("read file", err)
	}
	doc := map[string]string{}
	if len(b) == 0 {
		return doc, nil
	}
	if err := sonic.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("json unmarshal %s: %w", f.path, err)
	}
	return doc, nil
}

func (f *File) write(doc map[string]string) error {
	b, err := sonic.ConfigStd.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fileErr("mkdir", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*")
	if err != nil {
		return fileErr("create temp", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fileErr("write file", err)
	}
	if err := tmp.Close(); err != nil {
		return fileErr("write file", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fileErr("rename", err)
	}
	return nil
}

func fileErr(op string, err error) error {
	switch {
	case errors.Is(err, os.ErrPermission):
		return fmt.Errorf("%s: %w: %w", op, ErrAccessDenied, err)
	case errors.Is(err, syscall.ENOSPC):
		return fmt.Errorf("%s: %w: %w", op, ErrQuotaExceeded, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
