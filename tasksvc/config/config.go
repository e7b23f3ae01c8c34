// Package config loads tasksvc and client settings from flags, TODO_*
// environment variables and an optional config file, in that order of
// precedence, and validates them.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "TODO"

// Config holds the tasksvc server settings.
type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Database DatabaseConfig `mapstructure:"database"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Consul   ConsulConfig   `mapstructure:"consul"`
	Log      LogConfig      `mapstructure:"log"`
	Shutdown ShutdownConfig `mapstructure:"shutdown"`
	CORS     CORSConfig     `mapstructure:"cors"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
}

// DatabaseConfig selects the task store by URL scheme. An empty URL uses the
// SQLite file configured under sqlite.path.
type DatabaseConfig struct {
	URL  string `mapstructure:"url"`
	Name string `mapstructure:"name" validate:"required"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

type ConsulConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

type ShutdownConfig struct {
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type CORSConfig struct {
	Origins []string `mapstructure:"origins"`
}

// Drivers understood by Database.Driver.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongodb"
	DriverMemory   = "memory"
)

var (
	ErrUnknownDriver = errors.New("unsupported database url scheme")
	ErrNoEndpoint    = errors.New("either api.url or consul.addr must be set")
)

// Driver reports which store the database URL points at.
func (d DatabaseConfig) Driver() (string, error) {
	switch {
	case d.URL == "":
		return DriverSQLite, nil
	case strings.HasPrefix(d.URL, "mongodb://"), strings.HasPrefix(d.URL, "mongodb+srv://"):
		return DriverMongo, nil
	case strings.HasPrefix(d.URL, "postgres://"), strings.HasPrefix(d.URL, "postgresql://"):
		return DriverPostgres, nil
	case d.URL == "memory:" || d.URL == "memory":
		return DriverMemory, nil
	case strings.HasPrefix(d.URL, "sqlite:"):
		return DriverSQLite, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDriver, d.URL)
}

// SQLiteDSN returns the file the SQLite store opens, honoring a sqlite: URL.
func (c Config) SQLiteDSN() string {
	if path := strings.TrimPrefix(c.Database.URL, "sqlite:"); path != c.Database.URL && path != "" {
		return strings.TrimPrefix(path, "//")
	}
	return c.SQLite.Path
}

// ClientConfig holds the settings of the terminal client.
type ClientConfig struct {
	API    APIConfig    `mapstructure:"api"`
	Consul ConsulConfig `mapstructure:"consul"`
	Retry  RetryConfig  `mapstructure:"retry"`
	Log    ClientLog    `mapstructure:"log"`
}

type APIConfig struct {
	URL string `mapstructure:"url"`
}

type RetryConfig struct {
	Max     int           `mapstructure:"max" validate:"gte=1"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// ClientLog sends client logs to File. The terminal owns stdout, so logging is
// off unless a file is given.
type ClientLog struct {
	File string `mapstructure:"file"`
}

// Load reads the server configuration. args are the command line arguments
// without the program name.
func Load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("tasksvc", pflag.ContinueOnError)
	fs.String("config", "", "Path to a config file (yaml, toml, json)")
	fs.String("http-addr", ":8080", "HTTP listen address")
	fs.String("database-url", "", "Database URL (postgres://, mongodb://, memory:, or empty for SQLite)")
	fs.String("database-name", "todo", "MongoDB database name")
	fs.String("sqlite-path", "todo.db", "SQLite database file")
	fs.String("redis-url", "", "Redis URL for the listing cache (empty disables caching)")
	fs.Duration("cache-ttl", 30*time.Second, "Listing cache TTL")
	fs.String("consul-addr", "", "Consul agent address (empty disables registration)")
	fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	fs.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")
	fs.StringSlice("cors-origins", []string{"*"}, "Allowed CORS origins")

	v, err := newViper(fs, args, map[string]string{
		"http.addr":        "http-addr",
		"database.url":     "database-url",
		"database.name":    "database-name",
		"sqlite.path":      "sqlite-path",
		"redis.url":        "redis-url",
		"cache.ttl":        "cache-ttl",
		"consul.addr":      "consul-addr",
		"log.level":        "log-level",
		"shutdown.timeout": "shutdown-timeout",
		"cors.origins":     "cors-origins",
	})
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := decode(v, &cfg); err != nil {
		return nil, err
	}
	if _, err := cfg.Database.Driver(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadClient reads the terminal client configuration.
func LoadClient(args []string) (*ClientConfig, error) {
	fs := pflag.NewFlagSet("todo", pflag.ContinueOnError)
	fs.String("config", "", "Path to a config file (yaml, toml, json)")
	fs.String("api-url", "http://localhost:8080/api", "To-do API base URL")
	fs.String("consul-addr", "", "Consul agent address; discovers tasksvc instead of api-url")
	fs.Int("retry-max", 3, "Maximum attempts per request when using Consul")
	fs.Duration("retry-timeout", 5*time.Second, "Overall timeout per request when using Consul")
	fs.String("log-file", "", "Write client logs to this file")

	v, err := newViper(fs, args, map[string]string{
		"api.url":       "api-url",
		"consul.addr":   "consul-addr",
		"retry.max":     "retry-max",
		"retry.timeout": "retry-timeout",
		"log.file":      "log-file",
	})
	if err != nil {
		return nil, err
	}

	var cfg ClientConfig
	if err := decode(v, &cfg); err != nil {
		return nil, err
	}
	if cfg.API.URL == "" && cfg.Consul.Addr == "" {
		return nil, ErrNoEndpoint
	}
	return &cfg, nil
}

// newViper parses args into fs and binds every flag to its config key, so a
// flag's default doubles as the key's default.
func newViper(fs *pflag.FlagSet, args []string, keys map[string]string) (*viper.Viper, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for key, flag := range keys {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, fmt.Errorf("binding flag %s: %w", flag, err)
		}
	}

	file, _ := fs.GetString("config")
	if file == "" {
		file = v.GetString("config")
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", file, err)
		}
	}

	return v, nil
}

func decode(v *viper.Viper, cfg interface{}) error {
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}
