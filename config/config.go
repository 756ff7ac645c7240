/*
Package config loads process configuration for the server and the CLI.

SOURCES (later wins):
  1. Built-in defaults
  2. .env file (godotenv), then a YAML/JSON/TOML file when --config is set
  3. Environment variables with the TRANSFER_ prefix
     (database.dsn -> TRANSFER_DATABASE_DSN)
  4. Command-line flags registered with RegisterFlags

SECTIONS:
  app       env, log_level
  http      addr, cors_origins
  database  driver, dsn, host, port, user, password, name, path
  replay    dir, workbook
  metrics   enabled
  engine    preset, params (loose run input, see factory.Input)

USAGE:
  fs := pflag.NewFlagSet("server", pflag.ExitOnError)
  config.RegisterFlags(fs)
  _ = fs.Parse(os.Args[1:])
  cfg, err := config.Load(fs)
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/store/mysql"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TRANSFER"

// Config is the full process configuration.
type Config struct {
	App struct {
		Env      string `mapstructure:"env"`
		LogLevel string `mapstructure:"log_level"`
	} `mapstructure:"app"`

	HTTP struct {
		Addr        string   `mapstructure:"addr"`
		CORSOrigins []string `mapstructure:"cors_origins"`
	} `mapstructure:"http"`

	Database Database `mapstructure:"database"`

	Replay struct {
		Dir      string `mapstructure:"dir"`
		Workbook bool   `mapstructure:"workbook"`
	} `mapstructure:"replay"`

	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"metrics"`

	Engine struct {
		Preset string         `mapstructure:"preset"`
		Params map[string]any `mapstructure:"params"`
	} `mapstructure:"engine"`
}

// Database selects and addresses the backing store.
type Database struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	Path     string `mapstructure:"path"`
}

var defaults = map[string]any{
	"app.env":           "development",
	"app.log_level":     "info",
	"http.addr":         ":8080",
	"http.cors_origins": []string{"http://localhost:5173", "http://localhost:8080"},
	"database.driver":   "sqlite3",
	"database.dsn":      "",
	"database.host":     "",
	"database.port":     0,
	"database.user":     "",
	"database.password": "",
	"database.name":     "",
	"database.path":     "transfer.db",
	"replay.dir":        "transfer_runs",
	"replay.workbook":   false,
	"metrics.enabled":   true,
	"engine.preset":     "",
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"env":        "app.env",
	"log-level":  "app.log_level",
	"addr":       "http.addr",
	"db-driver":  "database.driver",
	"db-dsn":     "database.dsn",
	"db-path":    "database.path",
	"replay-dir": "replay.dir",
	"workbook":   "replay.workbook",
	"metrics":    "metrics.enabled",
	"preset":     "engine.preset",
}

// RegisterFlags adds the shared flags, including --config and --env-file.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "path to a config file (yaml, json or toml)")
	flags.String("env-file", ".env", "dotenv file to load if present")
	flags.String("env", "development", "deployment environment")
	flags.String("log-level", "info", "log level: error, warn, info, debug, trace")
	flags.String("addr", ":8080", "HTTP listen address")
	flags.String("db-driver", "sqlite3", "database driver: mysql, postgres, sqlite3")
	flags.String("db-dsn", "", "database DSN (overrides host/port/user/password/name)")
	flags.String("db-path", "transfer.db", "SQLite database path")
	flags.String("replay-dir", "transfer_runs", "directory for run replays")
	flags.Bool("workbook", false, "also write transfers.xlsx for each run")
	flags.Bool("metrics", true, "expose /metrics")
	flags.String("preset", "", "parameter preset")
}

// Load reads configuration. flags may be nil; only flags the caller
// actually set override lower layers.
func Load(flags *pflag.FlagSet) (Config, error) {
	var cfg Config

	envFile, configFile := ".env", ""
	if flags != nil {
		if f := flags.Lookup("env-file"); f != nil {
			envFile = f.Value.String()
		}
		if f := flags.Lookup("config"); f != nil {
			configFile = f.Value.String()
		}
	}
	if err := LoadDotEnv(envFile); err != nil {
		return cfg, err
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return cfg, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.Engine.Params == nil {
		cfg.Engine.Params = map[string]any{}
	}
	return cfg, cfg.Validate()
}

// LoadDotEnv loads a dotenv file. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Validate checks values that would otherwise fail late.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres", "pgx", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.HTTP.Addr == "" {
		return errors.New("http.addr must not be empty")
	}
	return nil
}

// IsDevelopment reports whether dev-only endpoints may be served.
func (c Config) IsDevelopment() bool {
	switch strings.ToLower(c.App.Env) {
	case "", "dev", "development", "local", "test":
		return true
	}
	return false
}

// ConnString renders the connection string for the configured driver. An
// explicit dsn always wins.
func (d Database) ConnString() string {
	if d.DSN != "" {
		return d.DSN
	}
	switch d.Driver {
	case "mysql":
		return mysql.Config{
			Host: d.Host, Port: d.Port, User: d.User, Password: d.Password, Database: d.Name,
		}.FormatDSN()
	case "postgres", "pgx":
		host := d.Host
		if host == "" {
			host = "localhost"
		}
		port := d.Port
		if port == 0 {
			port = 5432
		}
		u := url.URL{
			Scheme:   "postgres",
			Host:     net.JoinHostPort(host, strconv.Itoa(port)),
			Path:     "/" + d.Name,
			RawQuery: "sslmode=disable",
		}
		if d.User != "" {
			u.User = url.UserPassword(d.User, d.Password)
		}
		return u.String()
	default:
		return d.Path
	}
}
