package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/limitgate/limitgate/config"
	"github.com/rs/zerolog"
)

const holderConfig = `
upstream:
  url: "http://localhost:3000"
rate_limit:
  limit: 10
  window_secs: 10
`

func newTestHolder(t *testing.T) (*config.Holder, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "limitgate.yaml")
	if err := os.WriteFile(path, []byte(holderConfig), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	holder, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder failed: %v", err)
	}
	t.Cleanup(holder.Stop)

	return holder, path
}

func TestHolder_Get(t *testing.T) {
	holder, _ := newTestHolder(t)

	if got := holder.Get().RateLimit.Limit; got != 10 {
		t.Errorf("RateLimit.Limit = %d, want 10", got)
	}
}

func TestHolder_Reload(t *testing.T) {
	holder, path := newTestHolder(t)

	updated := `
upstream:
  url: "http://localhost:3000"
rate_limit:
  limit: 99
  window_secs: 30
  enforce: true
`
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	if err := holder.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	cfg := holder.Get()
	if cfg.RateLimit.Limit != 99 {
		t.Errorf("RateLimit.Limit = %d, want 99", cfg.RateLimit.Limit)
	}
	if cfg.RateLimit.WindowSecs != 30 {
		t.Errorf("RateLimit.WindowSecs = %d, want 30", cfg.RateLimit.WindowSecs)
	}
	if !cfg.RateLimit.Enforce {
		t.Error("RateLimit.Enforce = false, want true")
	}
}

func TestHolder_ReloadKeepsOldConfigOnError(t *testing.T) {
	holder, path := newTestHolder(t)

	// Invalid config: limit must be positive
	os.WriteFile(path, []byte(`
upstream:
  url: "http://localhost:3000"
rate_limit:
  limit: -1
`), 0o644)

	if err := holder.Reload(); err == nil {
		t.Fatal("expected reload error for invalid config")
	}

	if got := holder.Get().RateLimit.Limit; got != 10 {
		t.Errorf("RateLimit.Limit = %d, want 10 (old config kept)", got)
	}
}

func TestHolder_OnReloadError(t *testing.T) {
	holder, path := newTestHolder(t)

	errCount := 0
	holder.OnReloadError(func(error) { errCount++ })

	os.WriteFile(path, []byte("rate_limit: [broken"), 0o644)

	if err := holder.Reload(); err == nil {
		t.Fatal("expected reload error for malformed yaml")
	}
	if errCount != 1 {
		t.Errorf("error callbacks = %d, want 1", errCount)
	}
}

func TestHolder_OnChange(t *testing.T) {
	holder, path := newTestHolder(t)

	var gotLimit int
	holder.OnChange(func(cfg *config.Config) {
		gotLimit = cfg.RateLimit.Limit
	})

	os.WriteFile(path, []byte(`
upstream:
  url: "http://localhost:3000"
rate_limit:
  limit: 42
`), 0o644)

	if err := holder.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	if gotLimit != 42 {
		t.Errorf("callback limit = %d, want 42", gotLimit)
	}
}
