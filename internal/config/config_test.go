package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(LoadOptions{Env: map[string]string{}})
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, "admin@localhost", cfg.Admin.Email)
	assert.Equal(t, "Passw0rd!", cfg.Admin.Password)
	assert.Equal(t, "Root Admin", cfg.Admin.Name)
	assert.Equal(t, ".data/prisma-store.json", cfg.Store.DataFile)
	assert.Equal(t, BackendAuto, cfg.Store.Backend)
}

func TestLoadConfigPrecedenceFlagOverEnv(t *testing.T) {
	t.Parallel()

	cfgPath := writeConfigFile(t, "marketdb.yaml", `
store:
  backend: json
`)

	flagBackend := "sqlite"
	flagURL := "file:market.db"
	cfg, err := Load(LoadOptions{
		ConfigPath: cfgPath,
		Env:        map[string]string{"MARKETDB_BACKEND": "auto"},
		Flags:      FlagOverrides{Backend: &flagBackend, DatabaseURL: &flagURL},
	})
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "file:market.db", cfg.Store.DatabaseURL)
}

func TestLoadConfigPrecedenceEnvOverFile(t *testing.T) {
	t.Parallel()

	cfgPath := writeConfigFile(t, "marketdb.yaml", `
admin:
  email: file@example.com
  name: From File
`)

	cfg, err := Load(LoadOptions{
		ConfigPath: cfgPath,
		Env:        map[string]string{"ADMIN_EMAIL": "env@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, "env@example.com", cfg.Admin.Email)
	assert.Equal(t, "From File", cfg.Admin.Name)
}

func TestLoadEmptyAdminEnvKeepsDefault(t *testing.T) {
	t.Parallel()

	cfg, err := Load(LoadOptions{Env: map[string]string{"ADMIN_EMAIL": "", "ADMIN_PASSWORD": ""}})
	require.NoError(t, err)
	assert.Equal(t, "admin@localhost", cfg.Admin.Email)
	assert.Equal(t, "Passw0rd!", cfg.Admin.Password)
}

func TestLoadConfigPathFromEnv(t *testing.T) {
	t.Parallel()

	cfgPath := writeConfigFile(t, "marketdb.yaml", `
logging:
  level: debug
  format: json
`)

	cfg, err := Load(LoadOptions{Env: map[string]string{"MARKETDB_CONFIG": cfgPath}})
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadTOMLParsesAllSupportedFields(t *testing.T) {
	t.Parallel()

	cfgPath := writeConfigFile(t, "marketdb.toml", `
[store]
backend = "sqlite"
database_url = "/var/lib/market.db"
data_file = "/var/lib/store.json"
strict_read = true

[admin]
email = "ops@example.com"
password = "s3cret"
name = "Ops"

[logging]
level = "warn"
format = "text"
file = "/var/log/marketdb.log"
max_size_mb = 50
max_files = 3

[mail]
from = "market@example.com"
`)

	cfg, err := Load(LoadOptions{ConfigPath: cfgPath, Env: map[string]string{}})
	require.NoError(t, err)

	assert.Equal(t, Config{
		Store: StoreConfig{
			Backend:     BackendSQLite,
			DatabaseURL: "/var/lib/market.db",
			DataFile:    "/var/lib/store.json",
			StrictRead:  true,
		},
		Admin: Admin{Email: "ops@example.com", Password: "s3cret", Name: "Ops"},
		Logging: LoggingConfig{
			Level:     "warn",
			Format:    "text",
			File:      "/var/log/marketdb.log",
			MaxSizeMB: 50,
			MaxFiles:  3,
		},
		Mail: MailConfig{From: "market@example.com"},
	}, cfg)
}

func TestLoadMissingFileIsIgnored(t *testing.T) {
	t.Parallel()

	_, err := Load(LoadOptions{
		ConfigPath: filepath.Join(t.TempDir(), "absent.yaml"),
		Env:        map[string]string{},
	})
	require.NoError(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		env  map[string]string
	}{
		{"unknown backend", map[string]string{"MARKETDB_BACKEND": "postgres"}},
		{"sqlite without url", map[string]string{"MARKETDB_BACKEND": "sqlite"}},
		{"bad level", map[string]string{"MARKETDB_LOG_LEVEL": "loud"}},
		{"bad format", map[string]string{"MARKETDB_LOG_FORMAT": "xml"}},
		{"bad size", map[string]string{"MARKETDB_LOG_MAX_SIZE_MB": "big"}},
		{"bad strict read", map[string]string{"MARKETDB_STRICT_READ": "maybe"}},
		{"bad email", map[string]string{"ADMIN_EMAIL": "root"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(LoadOptions{Env: tc.env})
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	t.Parallel()

	cfgPath := writeConfigFile(t, "marketdb.yaml", "store: [unclosed")
	_, err := Load(LoadOptions{ConfigPath: cfgPath, Env: map[string]string{}})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	// e followed by a combining acute accent, versus the precomposed form.
	decomposed := "  re\u0301mi@example.com "
	assert.Equal(t, "r\u00e9mi@example.com", NormalizeEmail(decomposed))

	cfg, err := Load(LoadOptions{Env: map[string]string{"ADMIN_EMAIL": decomposed}})
	require.NoError(t, err)
	assert.Equal(t, "r\u00e9mi@example.com", cfg.Admin.Email)
}

func TestBackendIsNormalized(t *testing.T) {
	t.Parallel()

	cfg, err := Load(LoadOptions{Env: map[string]string{"MARKETDB_BACKEND": " JSON "}})
	require.NoError(t, err)
	assert.Equal(t, BackendJSON, cfg.Store.Backend)
}
