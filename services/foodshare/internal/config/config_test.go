package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.DatabaseDriver != DriverMemory || cfg.SessionStore != SessionsMemory {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.CookieName != "sid" || cfg.EventsBackend != EventsNone || cfg.LoginRateLimitPerMinute != 10 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	ttl, err := ParseSessionTTL(cfg.SessionTTL)
	if err != nil || ttl != 24*time.Hour {
		t.Fatalf("session ttl = %v, %v", ttl, err)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
port: "9000"
databaseDriver: sqlite
databaseURL: file:foodshare.db
sessionStore: redis
redisAddr: localhost:6379
trustedProxyCidrs: ["10.0.0.0/8"]
`)
	t.Setenv("FOODSHARE_PORT", "9100")
	t.Setenv("FOODSHARE_TRUSTED_PROXY_CIDRS", "192.168.0.0/16, 10.0.0.1")
	t.Setenv("FOODSHARE_COOKIE_SECURE", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9100" {
		t.Fatalf("env should override port, got %q", cfg.Port)
	}
	if cfg.DatabaseDriver != DriverSQLite || cfg.DatabaseURL != "file:foodshare.db" {
		t.Fatalf("unexpected database settings %+v", cfg)
	}
	if len(cfg.TrustedProxyCIDRs) != 2 || cfg.TrustedProxyCIDRs[1] != "10.0.0.1" {
		t.Fatalf("trusted proxies = %v", cfg.TrustedProxyCIDRs)
	}
	if !cfg.CookieSecure {
		t.Fatalf("expected cookieSecure from env")
	}
}

func TestValidateConfig(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"postgres without url", "databaseDriver: postgres", "databaseURL is required"},
		{"unknown driver", "databaseDriver: mongo", "unknown databaseDriver"},
		{"redis sessions without addr", "sessionStore: redis", "redisAddr is required"},
		{"short jwt secret", "sessionStore: jwt\njwtSecret: short", "jwtSecret"},
		{"bad ttl", "sessionTTL: forever", "invalid sessionTTL"},
		{"amqp without url", "eventsBackend: amqp", "amqpURL is required"},
		{"negative limit", "loginRateLimitPerMinute: -1", "rate limits"},
		{"bad proxy cidr", "trustedProxyCidrs: [\"10.0.0.0/33\"]", "invalid trustedProxyCidrs"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "port: [")); err == nil {
		t.Fatalf("expected parse error")
	}
}
