package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joeshaw/envdecode"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const defaultChatPageSize = 50

type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Session  SessionConfig  `yaml:"session"`
	Cache    CacheConfig    `yaml:"cache"`
	LogLevel string         `yaml:"log_level"`
}

type TelegramConfig struct {
	APIID          int    `yaml:"api_id"`
	APIHash        string `yaml:"api_hash"`
	DeviceModel    string `yaml:"device_model"`
	SystemLanguage string `yaml:"system_language"`
}

type SessionConfig struct {
	// Dir holds the MTProto session file.
	Dir          string `yaml:"dir"`
	ChatPageSize int    `yaml:"chat_page_size"`
	// Phone, if set, is answered without prompting.
	Phone string `yaml:"phone"`
}

type CacheConfig struct {
	Path string `yaml:"path"`
}

// env lists the variables that override the file.
type env struct {
	APIID    int    `env:"TGCORE_API_ID"`
	APIHash  string `env:"TGCORE_API_HASH"`
	LogLevel string `env:"TGCORE_LOG_LEVEL"`
	Phone    string `env:"TGCORE_PHONE"`
}

func Dir() string {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		cfgDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(cfgDir, "tgcore")
}

// Load reads the YAML file at path, applies environment overrides and fills
// in defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.setDefaults(filepath.Dir(path))
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	var e env
	if err := envdecode.Decode(&e); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return fmt.Errorf("decode environment: %w", err)
	}
	if e.APIID != 0 {
		c.Telegram.APIID = e.APIID
	}
	if e.APIHash != "" {
		c.Telegram.APIHash = e.APIHash
	}
	if e.LogLevel != "" {
		c.LogLevel = e.LogLevel
	}
	if e.Phone != "" {
		c.Session.Phone = e.Phone
	}
	return nil
}

func (c *Config) setDefaults(dir string) {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Session.ChatPageSize == 0 {
		c.Session.ChatPageSize = defaultChatPageSize
	}
	if c.Session.Dir == "" {
		c.Session.Dir = dir
	}
	if c.Cache.Path == "" {
		c.Cache.Path = filepath.Join(dir, "chats.db")
	}
	if c.Telegram.DeviceModel == "" {
		c.Telegram.DeviceModel = "tgcore"
	}
	if c.Telegram.SystemLanguage == "" {
		c.Telegram.SystemLanguage = "en"
	}
}

// Validate reports settings the client cannot start with.
func (c *Config) Validate() error {
	if c.Telegram.APIID <= 0 {
		return errors.New("telegram.api_id is required")
	}
	if c.Telegram.APIHash == "" {
		return errors.New("telegram.api_hash is required")
	}
	if c.Session.ChatPageSize < 0 {
		return fmt.Errorf("session.chat_page_size must be positive, got %d", c.Session.ChatPageSize)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (zapcore.Level, error) {
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return lvl, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}
