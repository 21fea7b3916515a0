package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigLayersFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := `
http:
  addr: ":9000"
db:
  driver: sqlite
  dsn: "file:test.db"
auth:
  jwt_secret: from-file
  admin_emails: ["ops@example.com"]
checker:
  interval: 30s
  policy: attach_and_strip
ledger:
  backend: "off"
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7070")
	t.Setenv("STORE_CALL_TIMEOUT", "250ms")
	t.Setenv("ADMIN_EMAILS", "a@example.com, b@example.com")

	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.HTTP.Addr != ":7070" {
		t.Fatalf("addr: want=:7070 got=%s", cfg.HTTP.Addr)
	}
	if cfg.DB.Driver != "sqlite" || cfg.DB.MaxOpenConns != 20 {
		t.Fatalf("db: got=%+v", cfg.DB)
	}
	if cfg.Auth.JWTSecret != "from-file" {
		t.Fatalf("jwt secret: got=%q", cfg.Auth.JWTSecret)
	}
	if len(cfg.Auth.AdminEmails) != 2 || cfg.Auth.AdminEmails[1] != "b@example.com" {
		t.Fatalf("admin emails: got=%v", cfg.Auth.AdminEmails)
	}
	if cfg.Checker.Interval != 30*time.Second || cfg.Checker.Policy != "attach_and_strip" {
		t.Fatalf("checker: got=%+v", cfg.Checker)
	}
	if cfg.StoreTimeout != 250*time.Millisecond {
		t.Fatalf("store timeout: got=%s", cfg.StoreTimeout)
	}
	if cfg.Ledger.Backend != LedgerOff {
		t.Fatalf("ledger backend: got=%s", cfg.Ledger.Backend)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("JWT_SECRET_KEY", "")
	if _, err := LoadConfig(nil); err == nil {
		t.Fatalf("missing jwt secret must fail")
	}

	t.Setenv("JWT_SECRET_KEY", "s")
	t.Setenv("CHECKER_REPAIR_POLICY", "delete_everything")
	if _, err := LoadConfig(nil); err == nil {
		t.Fatalf("unknown repair policy must fail")
	}

	t.Setenv("CHECKER_REPAIR_POLICY", "")
	t.Setenv("LEDGER_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "")
	if _, err := LoadConfig(nil); err == nil {
		t.Fatalf("redis ledger without addr must fail")
	}
}
