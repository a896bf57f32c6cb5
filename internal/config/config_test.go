package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/idilsaglam/tasklist/internal/store"
	"github.com/idilsaglam/tasklist/internal/validate"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("", env(nil))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestDefaultsFollowStorageAndRules(t *testing.T) {
	cfg := Default()
	if cfg.Key != store.DefaultKey || cfg.Quota != store.DefaultQuota || cfg.MaxLength != validate.DefaultRules.MaxLength {
		t.Fatalf("defaults drifted: %+v", cfg)
	}
}

func TestLoadHomeFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".tasklist")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("backend: memory\ntheme: neon\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("", env(nil))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend != BackendMemory || cfg.Theme != "neon" || cfg.MaxLength != 200 {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	body := `
backend: badger
path: /var/lib/tasks
key: work
quota: 1024
max_length: 80
group: true
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path, env(map[string]string{
		"TASKS_BACKEND":    " Redis ",
		"TASKS_REDIS_URL":  "redis://localhost:6379/0",
		"TASKS_MAX_LENGTH": "120",
		"DEBUG":            "true",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := Config{
		Backend:   BackendRedis,
		Path:      "/var/lib/tasks",
		RedisURL:  "redis://localhost:6379/0",
		Key:       "work",
		Quota:     1024,
		MaxLength: 120,
		Theme:     "classic",
		Group:     true,
		Debug:     true,
	}
	if cfg != want {
		t.Fatalf("unexpected config\n got %+v\nwant %+v", cfg, want)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("backend: [file"), 0o600); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name string
		path string
		env  map[string]string
		want string
	}{
		{"explicit file missing", filepath.Join(t.TempDir(), "nope.yaml"), nil, "read config"},
		{"malformed yaml", bad, nil, "parse config"},
		{"unknown backend", "", map[string]string{"TASKS_BACKEND": "sqlite"}, "unknown backend"},
		{"redis without url", "", map[string]string{"TASKS_BACKEND": "redis"}, "redis_url"},
		{"bad quota", "", map[string]string{"TASKS_QUOTA": "lots"}, "TASKS_QUOTA"},
		{"bad max length", "", map[string]string{"TASKS_MAX_LENGTH": "x"}, "TASKS_MAX_LENGTH"},
		{"zero max length", "", map[string]string{"TASKS_MAX_LENGTH": "0"}, "max_length"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(tc.path, env(tc.env))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestDebugIgnoresGarbage(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load("", env(map[string]string{"DEBUG": "verbose"}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Debug {
		t.Fatalf("unparseable DEBUG should leave debug off")
	}
}
