// Package config loads va-validator settings from defaults, a YAML file,
// VAV_* environment variables and command line flags, in increasing order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	EnvPrefix   = "VAV"
	DefaultName = "va-validator"
	DefaultFile = DefaultName + ".yaml"
)

// Config is the full configuration.
type Config struct {
	Workers      int            `mapstructure:"workers" yaml:"workers"`
	ProbeTimeout time.Duration  `mapstructure:"probe_timeout" yaml:"probe_timeout"`
	Deadline     time.Duration  `mapstructure:"deadline" yaml:"deadline"`
	RateLimit    float64        `mapstructure:"rate_limit" yaml:"rate_limit"`
	Nmap         NmapConfig     `mapstructure:"nmap" yaml:"nmap"`
	Checks       ChecksConfig   `mapstructure:"checks" yaml:"checks"`
	Log          LogConfig      `mapstructure:"log" yaml:"log"`
	Database     DatabaseConfig `mapstructure:"database" yaml:"database"`
	Server       ServerConfig   `mapstructure:"server" yaml:"server"`
}

type NmapConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type ChecksConfig struct {
	ExpiryWindowDays int `mapstructure:"expiry_window_days" yaml:"expiry_window_days"`
}

// LogConfig configures the standard logrus logger.
type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`           // text or json
	Output     string `mapstructure:"output" yaml:"output"`           // stdout, stderr or file
	FilePath   string `mapstructure:"file_path" yaml:"file_path"`     // used when Output is file
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`       // MB
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"` // rotated files kept
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`         // days
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

type DatabaseConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

type ServerConfig struct {
	Listen       string   `mapstructure:"listen" yaml:"listen"`
	AllowOrigins []string `mapstructure:"allow_origins" yaml:"allow_origins"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Workers:      10,
		ProbeTimeout: 30 * time.Second,
		Nmap:         NmapConfig{Path: "nmap"},
		Checks:       ChecksConfig{ExpiryWindowDays: 30},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   "logs/va-validator.log",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
		},
		Database: DatabaseConfig{Enabled: true, Path: "va-validator.db"},
		Server: ServerConfig{
			Listen:       ":8080",
			AllowOrigins: []string{"http://localhost:5173"},
		},
	}
}

// setDefaults registers every key so environment variables can override
// keys absent from the file.
func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("workers", d.Workers)
	v.SetDefault("probe_timeout", d.ProbeTimeout)
	v.SetDefault("deadline", d.Deadline)
	v.SetDefault("rate_limit", d.RateLimit)
	v.SetDefault("nmap.path", d.Nmap.Path)
	v.SetDefault("checks.expiry_window_days", d.Checks.ExpiryWindowDays)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.output", d.Log.Output)
	v.SetDefault("log.file_path", d.Log.FilePath)
	v.SetDefault("log.max_size", d.Log.MaxSize)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age", d.Log.MaxAge)
	v.SetDefault("log.compress", d.Log.Compress)
	v.SetDefault("database.enabled", d.Database.Enabled)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("server.allow_origins", d.Server.AllowOrigins)
}

// Load reads the configuration into v. An empty path looks for
// va-validator.yaml in the working directory and tolerates its absence; an
// explicit path must exist.
func Load(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(DefaultName)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.ProbeTimeout < 0 || c.Deadline < 0 {
		return errors.New("probe_timeout and deadline must not be negative")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative, got %v", c.RateLimit)
	}
	if c.Checks.ExpiryWindowDays < 0 {
		return errors.New("checks.expiry_window_days must not be negative")
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log format %q", c.Log.Format)
	}
	switch strings.ToLower(c.Log.Output) {
	case "stdout", "stderr":
	case "file":
		if c.Log.FilePath == "" {
			return errors.New("log.file_path is required when log.output is file")
		}
	default:
		return fmt.Errorf("unsupported log output %q", c.Log.Output)
	}

	if c.Database.Enabled && c.Database.Path == "" {
		return errors.New("database.path is required when the database is enabled")
	}
	return nil
}

// flagKeys maps command line flag names to configuration keys.
var flagKeys = map[string]string{
	"workers":    "workers",
	"timeout":    "probe_timeout",
	"deadline":   "deadline",
	"rate":       "rate_limit",
	"nmap":       "nmap.path",
	"log-level":  "log.level",
	"log-format": "log.format",
	"listen":     "server.listen",
	"db":         "database.path",
}

// BindFlags binds the flags of fs that correspond to configuration keys.
// Flags absent from fs are skipped.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding --%s: %w", name, err)
		}
	}
	return nil
}

// Save writes cfg as YAML to path, creating the directory when needed.
func Save(path string, cfg Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
