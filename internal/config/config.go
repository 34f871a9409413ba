package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Connection ConnectionConfig `yaml:"connection"`
	Database   DatabaseConfig   `yaml:"database"`
	Poller     PollerConfig     `yaml:"poller"`
	Queues     QueuesConfig     `yaml:"queues"`
	Staging    StagingConfig    `yaml:"staging"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// ConnectionConfig describes the remote print host. The password is
// never stored here; it lives in the OS keyring keyed by host and user.
type ConnectionConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	Username       string        `yaml:"username"`
	KeyFile        string        `yaml:"key_file"`
	UsePassword    bool          `yaml:"use_password"`
	DialTimeout    time.Duration `yaml:"dial_timeout"`
	MaxAttempts    int           `yaml:"max_attempts"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
}

type DatabaseConfig struct {
	Path        string `yaml:"path"`
	ArchivePath string `yaml:"archive_path"`
	ArchiveDays int    `yaml:"archive_days"`
}

type PollerConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type QueuesConfig struct {
	Known   []string `yaml:"known"`
	Default string   `yaml:"default"`
}

type StagingConfig struct {
	RemoteDir string `yaml:"remote_dir"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Connection: ConnectionConfig{
			Port:           22,
			DialTimeout:    10 * time.Second,
			MaxAttempts:    3,
			RetryBaseDelay: 2 * time.Second,
		},
		Database: DatabaseConfig{
			Path:        "./data/sshprint.db",
			ArchivePath: "./data/archives",
			ArchiveDays: 30,
		},
		Poller: PollerConfig{
			Interval: 30 * time.Second,
		},
		Staging: StagingConfig{
			RemoteDir: ".sshprint/spool",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func Load(configPath string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

func LoadFromEnv() *Config {
	cfg := defaults()

	if v := os.Getenv("SSHPRINT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("SSHPRINT_HOST"); v != "" {
		cfg.Connection.Host = v
	}

	if v := os.Getenv("SSHPRINT_USER"); v != "" {
		cfg.Connection.Username = v
	}

	if v := os.Getenv("SSHPRINT_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("SSHPRINT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return cfg
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server read timeout must be non-negative")
	}

	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server write timeout must be non-negative")
	}

	if c.Connection.Port < 1 || c.Connection.Port > 65535 {
		return fmt.Errorf("connection port must be between 1 and 65535, got %d", c.Connection.Port)
	}

	if c.Connection.DialTimeout < 0 {
		return fmt.Errorf("connection dial timeout must be non-negative")
	}

	if c.Connection.MaxAttempts < 1 {
		return fmt.Errorf("connection max attempts must be at least 1")
	}

	if c.Connection.RetryBaseDelay < 0 {
		return fmt.Errorf("connection retry base delay must be non-negative")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if c.Database.ArchiveDays < 0 {
		return fmt.Errorf("archive days must be non-negative")
	}

	if c.Poller.Interval <= 0 {
		return fmt.Errorf("poller interval must be positive")
	}

	if c.Queues.Default != "" && len(c.Queues.Known) > 0 {
		found := false
		for _, q := range c.Queues.Known {
			if q == c.Queues.Default {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("default queue %q is not in the known queue list", c.Queues.Default)
		}
	}

	if c.Staging.RemoteDir == "" {
		return fmt.Errorf("staging remote dir is required")
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	return nil
}
