package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.Store.Driver != DriverMemory {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.SessionTTL != 12*time.Hour || cfg.CatalogTTL != time.Minute || cfg.Heartbeat != 25*time.Second {
		t.Fatalf("unexpected durations %+v", cfg)
	}
	if cfg.AlertRetention != 2*time.Hour || cfg.Push.MaxAttempts != 3 {
		t.Fatalf("unexpected alert/push config %+v", cfg)
	}
	if cfg.Payment.Enabled() {
		t.Fatalf("payments must be disabled without a token")
	}
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(file, []byte("PORT: \"9000\"\nHEARTBEAT_SECONDS: 5\nAMQP_URL: amqp://file\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("AMQP_URL", "amqp://env")
	t.Setenv("PAYMENT_ACCESS_TOKEN", "tok")

	cfg, err := Load(viper.New(), file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9000" || cfg.Heartbeat != 5*time.Second {
		t.Fatalf("expected file values, got %+v", cfg)
	}
	if cfg.AMQPURL != "amqp://env" {
		t.Fatalf("expected env to win, got %s", cfg.AMQPURL)
	}
	if !cfg.Payment.Enabled() {
		t.Fatalf("expected payments enabled")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{name: "postgres without dsn", env: map[string]string{"STORE_DRIVER": "postgres"}, wantErr: true},
		{name: "postgres with dsn", env: map[string]string{"STORE_DRIVER": "postgres", "DB_DSN": "postgres://x"}},
		{name: "unknown driver", env: map[string]string{"STORE_DRIVER": "redis"}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load(viper.New(), "")
			if tc.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
