package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	driver "github.com/go-sql-driver/mysql"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	// No stray .env from the working directory.
	require.NoError(t, fs.Parse(append([]string{"--env-file", ""}, args...)))
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	// GIVEN: No file, env or flags
	cfg, err := Load(newFlags(t))

	// THEN
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "transfer.db", cfg.Database.ConnString())
	assert.Equal(t, "transfer_runs", cfg.Replay.Dir)
	assert.True(t, cfg.Metrics.Enabled)
	assert.True(t, cfg.IsDevelopment())
	assert.NotNil(t, cfg.Engine.Params)
}

func TestLoad_PrecedenceFileEnvFlag(t *testing.T) {
	// GIVEN: A config file, an env override and a flag override
	dir := t.TempDir()
	path := filepath.Join(dir, "transfer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  log_level: debug
http:
  addr: ":9000"
database:
  driver: mysql
  host: db.internal
  user: engine
  name: vend
replay:
  dir: /var/runs
engine:
  preset: conservative
  params:
    cover_days: 21
    store_filter_list: "s1,s2"
`), 0o600))
	t.Setenv("TRANSFER_REPLAY_DIR", "/tmp/runs")
	t.Setenv("TRANSFER_DATABASE_PORT", "3307")

	// WHEN
	cfg, err := Load(newFlags(t, "--config", path, "--addr", ":7000"))

	// THEN: flag > env > file > default
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.HTTP.Addr)
	assert.Equal(t, "/tmp/runs", cfg.Replay.Dir)
	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, 3307, cfg.Database.Port)
	assert.Equal(t, "conservative", cfg.Engine.Preset)
	assert.EqualValues(t, 21, cfg.Engine.Params["cover_days"])
	parsed, err := driver.ParseDSN(cfg.Database.ConnString())
	require.NoError(t, err)
	assert.Equal(t, "db.internal:3307", parsed.Addr)
	assert.Equal(t, "engine", parsed.User)
	assert.Equal(t, "vend", parsed.DBName)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(newFlags(t, "--config", filepath.Join(t.TempDir(), "nope.yaml")))
	assert.Error(t, err)
}

func TestLoad_UnsupportedDriver(t *testing.T) {
	_, err := Load(newFlags(t, "--db-driver", "oracle"))
	assert.ErrorContains(t, err, "oracle")
}

func TestLoad_DotEnv(t *testing.T) {
	// GIVEN: A dotenv file setting the environment
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TRANSFER_APP_ENV=production\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("TRANSFER_APP_ENV") })

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--env-file", path}))

	// WHEN
	cfg, err := Load(fs)

	// THEN
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.App.Env)
	assert.False(t, cfg.IsDevelopment())
}

func TestDatabase_ConnString(t *testing.T) {
	tests := []struct {
		name string
		db   Database
		want string
	}{
		{"explicit dsn wins", Database{Driver: "mysql", DSN: "raw", Host: "x"}, "raw"},
		{"postgres", Database{Driver: "postgres", Host: "pg", User: "u", Password: "p@ss", Name: "vend"},
			"postgres://u:p%40ss@pg:5432/vend?sslmode=disable"},
		{"sqlite path", Database{Driver: "sqlite3", Path: "/data/t.db"}, "/data/t.db"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.db.ConnString())
		})
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logg := NewLogger("warn", &buf)

	logg.Info("hidden")
	LogError(logg, "engine", "Run", "apply", map[string]int{"n": 1}, errors.New("boom"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "boom", line["msg"])
	assert.Equal(t, "engine", line["module"])
	assert.Equal(t, "error", line["level"])
}

func TestNewLogger_UnknownLevel(t *testing.T) {
	assert.Equal(t, "info", NewLogger("loud", nil).GetLevel().String())
}
