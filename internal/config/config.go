package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Sweeper  SweeperConfig  `yaml:"sweeper"`
	Jobs     JobsConfig     `yaml:"jobs"`
	Webhooks WebhooksConfig `yaml:"webhooks"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	Path        string `yaml:"path"`
	ArchivePath string `yaml:"archive_path"`
	ArchiveDays int    `yaml:"archive_days"`
}

type MonitorConfig struct {
	Interval    time.Duration `yaml:"interval"`
	PingTimeout time.Duration `yaml:"ping_timeout"`
	PortTimeout time.Duration `yaml:"port_timeout"`
}

// SweeperConfig carries the timeout thresholds and the modifier tables
// applied per job. Modifiers multiply the effective timeout: lower
// priority number means more urgent, shorter allowance.
type SweeperConfig struct {
	Interval             time.Duration      `yaml:"interval"`
	PendingTimeout       time.Duration      `yaml:"pending_timeout"`
	ProcessingTimeout    time.Duration      `yaml:"processing_timeout"`
	AbandonedAfter       time.Duration      `yaml:"abandoned_after"`
	PriorityModifiers    map[int]float64    `yaml:"priority_modifiers"`
	FileTypeModifiers    map[string]float64 `yaml:"file_type_modifiers"`
	PrinterTypeModifiers map[string]float64 `yaml:"printer_type_modifiers"`
}

type JobsConfig struct {
	MaxRetries      int `yaml:"max_retries"`
	DefaultPriority int `yaml:"default_priority"`
}

type WebhooksConfig struct {
	RetryCount  int           `yaml:"retry_count"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	Timeout     time.Duration `yaml:"timeout"`
	WorkerCount int           `yaml:"worker_count"`
	QueueSize   int           `yaml:"queue_size"`
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
		Database: DatabaseConfig{
			Path:        "./data/printd.db",
			ArchivePath: "./data/archives",
			ArchiveDays: 30,
		},
		Monitor: MonitorConfig{
			Interval:    60 * time.Second,
			PingTimeout: 3 * time.Second,
			PortTimeout: 5 * time.Second,
		},
		Sweeper: SweeperConfig{
			Interval:          5 * time.Minute,
			PendingTimeout:    30 * time.Minute,
			ProcessingTimeout: 60 * time.Minute,
			AbandonedAfter:    7 * 24 * time.Hour,
			PriorityModifiers: map[int]float64{
				1: 0.5, 2: 0.7, 3: 0.9, 4: 1.0, 5: 1.0,
				6: 1.2, 7: 1.5, 8: 2.0, 9: 3.0, 10: 5.0,
			},
			FileTypeModifiers: map[string]float64{
				"pdf": 1.0, "docx": 1.2, "xlsx": 1.5, "pptx": 1.3,
				"jpg": 0.8, "png": 0.8, "txt": 0.5,
			},
			PrinterTypeModifiers: map[string]float64{
				"laser": 1.0, "inkjet": 1.5, "thermal": 0.8, "dot_matrix": 2.0,
			},
		},
		Jobs: JobsConfig{
			MaxRetries:      3,
			DefaultPriority: 5,
		},
		Webhooks: WebhooksConfig{
			RetryCount:  3,
			RetryDelay:  5 * time.Second,
			Timeout:     10 * time.Second,
			WorkerCount: 3,
			QueueSize:   100,
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
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnv(cfg)

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PRINTD_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("PRINTD_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("PRINTD_ARCHIVE_PATH"); v != "" {
		cfg.Database.ArchivePath = v
	}

	if v := os.Getenv("PRINTD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if c.Database.ArchiveDays < 0 {
		return fmt.Errorf("archive days must be non-negative")
	}

	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor interval must be positive")
	}

	if c.Monitor.PingTimeout <= 0 || c.Monitor.PortTimeout <= 0 {
		return fmt.Errorf("monitor probe timeouts must be positive")
	}

	if c.Sweeper.PendingTimeout <= 0 {
		return fmt.Errorf("sweeper pending timeout must be positive")
	}

	if c.Sweeper.ProcessingTimeout <= 0 {
		return fmt.Errorf("sweeper processing timeout must be positive")
	}

	if c.Sweeper.AbandonedAfter <= 0 {
		return fmt.Errorf("sweeper abandoned threshold must be positive")
	}

	for prio, mod := range c.Sweeper.PriorityModifiers {
		if prio < 1 || prio > 10 {
			return fmt.Errorf("priority modifier key must be between 1 and 10, got %d", prio)
		}
		if mod <= 0 {
			return fmt.Errorf("priority modifier for %d must be positive", prio)
		}
	}

	if c.Jobs.MaxRetries < 0 {
		return fmt.Errorf("max retries must be non-negative")
	}

	if c.Jobs.DefaultPriority < 1 || c.Jobs.DefaultPriority > 10 {
		return fmt.Errorf("default priority must be between 1 and 10")
	}

	if c.Webhooks.WorkerCount < 1 {
		return fmt.Errorf("webhook worker count must be at least 1")
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

	validFormats := map[string]bool{
		"text": true,
		"json": true,
	}

	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (valid: text, json)", c.Logging.Format)
	}

	return nil
}
