package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/danhigham/tgcore/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return cfgPath
}

func TestLoadConfig(t *testing.T) {
	cfgPath := writeConfig(t, `telegram:
  api_id: 12345
  api_hash: "abcdef0123456789"
  device_model: laptop
session:
  chat_page_size: 20
  phone: "+15550100"
cache:
  path: /tmp/chats.db
log_level: debug
`)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Telegram.APIID != 12345 {
		t.Errorf("APIID = %d, want 12345", cfg.Telegram.APIID)
	}
	if cfg.Telegram.APIHash != "abcdef0123456789" {
		t.Errorf("APIHash = %q, want %q", cfg.Telegram.APIHash, "abcdef0123456789")
	}
	if cfg.Telegram.DeviceModel != "laptop" {
		t.Errorf("DeviceModel = %q, want %q", cfg.Telegram.DeviceModel, "laptop")
	}
	if cfg.Session.ChatPageSize != 20 {
		t.Errorf("ChatPageSize = %d, want 20", cfg.Session.ChatPageSize)
	}
	if cfg.Session.Phone != "+15550100" {
		t.Errorf("Phone = %q, want %q", cfg.Session.Phone, "+15550100")
	}
	if cfg.Cache.Path != "/tmp/chats.db" {
		t.Errorf("Cache.Path = %q, want %q", cfg.Cache.Path, "/tmp/chats.db")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfgPath := writeConfig(t, "telegram:\n  api_id: 1\n  api_hash: x\n")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	dir := filepath.Dir(cfgPath)

	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.Session.ChatPageSize != 50 {
		t.Errorf("ChatPageSize = %d, want 50", cfg.Session.ChatPageSize)
	}
	if cfg.Session.Dir != dir {
		t.Errorf("Session.Dir = %q, want %q", cfg.Session.Dir, dir)
	}
	if want := filepath.Join(dir, "chats.db"); cfg.Cache.Path != want {
		t.Errorf("Cache.Path = %q, want %q", cfg.Cache.Path, want)
	}
	lvl, err := cfg.Level()
	if err != nil || lvl != zapcore.InfoLevel {
		t.Errorf("Level() = %v, %v, want info", lvl, err)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	cfgPath := writeConfig(t, "telegram:\n  api_id: 1\n  api_hash: fromfile\nlog_level: info\n")
	t.Setenv("TGCORE_API_ID", "777")
	t.Setenv("TGCORE_API_HASH", "fromenv")
	t.Setenv("TGCORE_LOG_LEVEL", "warn")
	t.Setenv("TGCORE_PHONE", "+15550199")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Telegram.APIID != 777 {
		t.Errorf("APIID = %d, want 777", cfg.Telegram.APIID)
	}
	if cfg.Telegram.APIHash != "fromenv" {
		t.Errorf("APIHash = %q, want fromenv", cfg.Telegram.APIHash)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
	if cfg.Session.Phone != "+15550199" {
		t.Errorf("Phone = %q, want +15550199", cfg.Session.Phone)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		wantErr bool
	}{
		{"ok", config.Config{Telegram: config.TelegramConfig{APIID: 1, APIHash: "x"}, LogLevel: "info"}, false},
		{"missing id", config.Config{Telegram: config.TelegramConfig{APIHash: "x"}, LogLevel: "info"}, true},
		{"missing hash", config.Config{Telegram: config.TelegramConfig{APIID: 1}, LogLevel: "info"}, true},
		{"bad level", config.Config{Telegram: config.TelegramConfig{APIID: 1, APIHash: "x"}, LogLevel: "loud"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := config.Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestConfigDir(t *testing.T) {
	dir := config.Dir()
	if dir == "" {
		t.Error("Dir() returned empty string")
	}
}
