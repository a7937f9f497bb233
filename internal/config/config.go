// Package config assembles the exporter's runtime configuration from an
// optional YAML file and environment variables. Precedence, lowest to
// highest: defaults, config file, environment; command-line flags are applied
// on top by the caller.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	pkgconfig "mailman-exporter/pkg/config"
)

// Defaults.
const (
	DefaultPort           = 9934
	DefaultLogLevel       = "INFO"
	DefaultConnectTimeout = 10 * time.Second
	DefaultDBHost         = "localhost"
	DefaultDBPort         = 5432
	DefaultDBName         = "mailman"
	DefaultDBUser         = "mailman"
)

// Config holds the exporter's runtime configuration.
type Config struct {
	// Port the HTTP listener binds to.
	Port int `yaml:"port"`
	// LogLevel is one of DEBUG, INFO, WARNING, ERROR.
	LogLevel string `yaml:"log_level"`
	// ConnectTimeout bounds the per-scrape connection checkout.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// DSN overrides the field-based connection settings when non-empty.
	DSN string `yaml:"dsn"`

	DB DBConfig `yaml:"db"`
}

// DBConfig holds the field-based PostgreSQL connection settings used when no
// DSN override is given.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// Load builds the configuration. path names an optional YAML file; an empty
// path skips the file layer entirely.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Port:           DefaultPort,
		LogLevel:       DefaultLogLevel,
		ConnectTimeout: DefaultConnectTimeout,
		DB: DBConfig{
			Host: DefaultDBHost,
			Port: DefaultDBPort,
			Name: DefaultDBName,
			User: DefaultDBUser,
		},
	}

	if path != "" {
		// #nosec G304 -- path comes from the command line, not user input
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = pkgconfig.GetEnvInt("MAILMAN_EXPORTER_PORT", c.Port)
	c.LogLevel = pkgconfig.GetEnvString("MAILMAN_EXPORTER_LOG_LEVEL", c.LogLevel)
	c.ConnectTimeout = pkgconfig.GetEnvDuration("MAILMAN_EXPORTER_CONNECT_TIMEOUT", c.ConnectTimeout)

	c.DSN = pkgconfig.GetEnvString("MAILMAN_DB_DSN", c.DSN)
	c.DB.Host = pkgconfig.GetEnvString("DB_HOST", c.DB.Host)
	c.DB.Port = pkgconfig.GetEnvInt("DB_PORT", c.DB.Port)
	c.DB.Name = pkgconfig.GetEnvString("DB_NAME", c.DB.Name)
	c.DB.User = pkgconfig.GetEnvString("DB_USER", c.DB.User)
	c.DB.Password = pkgconfig.GetEnvString("DB_PASS", c.DB.Password)
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if err := pkgconfig.ValidatePositiveDuration(c.ConnectTimeout); err != nil {
		return fmt.Errorf("connect_timeout: %w", err)
	}
	switch c.LogLevel {
	case "DEBUG", "INFO", "WARNING", "ERROR":
	default:
		return fmt.Errorf("log_level %q not one of DEBUG, INFO, WARNING, ERROR", c.LogLevel)
	}
	return nil
}

// BuildDSN returns the connection string for the configured database: the
// DSN override verbatim when set, otherwise a keyword/value conninfo built
// from the DB fields.
func (c *Config) BuildDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s",
		quoteConninfo(c.DB.Host), c.DB.Port, quoteConninfo(c.DB.Name), quoteConninfo(c.DB.User))
	if c.DB.Password != "" {
		dsn += fmt.Sprintf(" password=%s", quoteConninfo(c.DB.Password))
	}
	return dsn
}

// quoteConninfo escapes a keyword/value conninfo value the way libpq
// expects: plain values pass through, anything containing spaces, quotes, or
// backslashes is single-quoted with ' and \ backslash-escaped.
func quoteConninfo(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	var b strings.Builder
	b.WriteByte('\'')
	for i := 0; i < len(v); i++ {
		if v[i] == '\'' || v[i] == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(v[i])
	}
	b.WriteByte('\'')
	return b.String()
}

// Redacted returns the connection settings safe for logging. The password
// and any DSN (which may embed one) are masked.
func (c *Config) Redacted() string {
	if c.DSN != "" {
		return "dsn=<redacted>"
	}
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=<redacted>",
		c.DB.Host, c.DB.Port, c.DB.Name, c.DB.User)
}
