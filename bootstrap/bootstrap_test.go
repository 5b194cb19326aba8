package bootstrap_test

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/limitgate/limitgate/bootstrap"
	"github.com/rs/zerolog"
)

func writeConfig(t *testing.T, path, level string, limit int) {
	t.Helper()

	content := `
upstream:
  url: "http://localhost:3000"
rate_limit:
  limit: ` + strconv.Itoa(limit) + `
  window_secs: 10
logging:
  level: ` + level + `
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestHotReload_AppliesLimiterConfigAndLogLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limitgate.yaml")
	writeConfig(t, path, "info", 5)

	app, err := bootstrap.NewWithHotReload(path)
	if err != nil {
		t.Fatalf("NewWithHotReload failed: %v", err)
	}
	t.Cleanup(func() {
		app.Shutdown()
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	})

	if got := app.Limiter().Config().Limit; got != 5 {
		t.Fatalf("initial limit = %d, want 5", got)
	}
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Fatalf("initial level = %v, want info", zerolog.GlobalLevel())
	}

	writeConfig(t, path, "debug", 9)
	if err := app.Holder().Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	if got := app.Limiter().Config().Limit; got != 9 {
		t.Errorf("reloaded limit = %d, want 9", got)
	}
	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Errorf("reloaded level = %v, want debug", zerolog.GlobalLevel())
	}
}
