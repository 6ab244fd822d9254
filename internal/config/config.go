// Package config loads td settings from ~/.taskdump/config.toml and
// TASKDUMP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvPrefix      = "TASKDUMP"
	DataDirName    = ".taskdump"
	ConfigFileName = "config"
	ConfigFileType = "toml"

	BackendSQLite = "sqlite"
	BackendTOML   = "toml"
)

type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Tracker TrackerConfig `mapstructure:"tracker"`
	Model   ModelConfig   `mapstructure:"model"`
	Context ContextConfig `mapstructure:"context"`
	Log     LogConfig     `mapstructure:"log"`
	Secrets SecretsConfig `mapstructure:"secrets"`
	Server  ServerConfig  `mapstructure:"server"`
}

type StorageConfig struct {
	// Backend is "sqlite" or "toml".
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
}

type TrackerConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Backoff     time.Duration `mapstructure:"backoff"`
	MaxBackoff  time.Duration `mapstructure:"max_backoff"`
	// TokenKey names the API token in the secret store.
	TokenKey string `mapstructure:"token_key"`
}

type ModelConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Name    string        `mapstructure:"name"`
	Timeout time.Duration `mapstructure:"timeout"`
	KeyKey  string        `mapstructure:"key_key"`
}

type ContextConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	// Path defaults to <storage.dir>/logs/taskdump.log when empty.
	Path string `mapstructure:"path"`
}

type SecretsConfig struct {
	Dir string `mapstructure:"dir"`
	// UsePass puts the pass password store between the environment and
	// the file store.
	UsePass bool `mapstructure:"use_pass"`
}

type ServerConfig struct {
	Listen    string        `mapstructure:"listen"`
	DedupeTTL time.Duration `mapstructure:"dedupe_ttl"`
}

// SetDefaults registers every key so AutomaticEnv can override it.
func SetDefaults(v *viper.Viper, homeDir string) {
	dataDir := filepath.Join(homeDir, DataDirName)

	v.SetDefault("storage.backend", BackendSQLite)
	v.SetDefault("storage.dir", dataDir)

	v.SetDefault("tracker.base_url", "https://api.todoist.com/rest/v2/")
	v.SetDefault("tracker.timeout", "10s")
	v.SetDefault("tracker.max_attempts", 3)
	v.SetDefault("tracker.backoff", "1s")
	v.SetDefault("tracker.max_backoff", "60s")
	v.SetDefault("tracker.token_key", "taskdump/todoist/api_token")

	v.SetDefault("model.base_url", "https://api.openai.com/v1/")
	v.SetDefault("model.name", "gpt-4o-mini")
	v.SetDefault("model.timeout", "15s")
	v.SetDefault("model.key_key", "taskdump/openai/api_key")

	v.SetDefault("context.ttl", "30m")

	v.SetDefault("log.level", "INFO")
	v.SetDefault("log.path", "")

	v.SetDefault("secrets.dir", filepath.Join(dataDir, "secrets"))
	v.SetDefault("secrets.use_pass", true)

	v.SetDefault("server.listen", "127.0.0.1:8088")
	v.SetDefault("server.dedupe_ttl", "10m")
}

// Load reads the config file when present, layers the environment on top
// and validates the result.
func Load(v *viper.Viper, homeDir string) (Config, error) {
	if v == nil {
		v = viper.New()
	}

	SetDefaults(v, homeDir)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if v.ConfigFileUsed() == "" {
		v.SetConfigName(ConfigFileName)
		v.SetConfigType(ConfigFileType)
		v.AddConfigPath(filepath.Join(homeDir, DataDirName))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.Storage.Dir = expandHome(cfg.Storage.Dir, homeDir)
	cfg.Secrets.Dir = expandHome(cfg.Secrets.Dir, homeDir)
	cfg.Log.Path = expandHome(cfg.Log.Path, homeDir)
	if cfg.Log.Path == "" {
		cfg.Log.Path = filepath.Join(cfg.Storage.Dir, "logs", "taskdump.log")
	}

	// Storage adapters read their directory from the same viper instance.
	v.Set("storage.dir", cfg.Storage.Dir)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func expandHome(path, homeDir string) string {
	if path == "~" {
		return homeDir
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
