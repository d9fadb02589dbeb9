// Package config loads marketdb settings from defaults, an optional YAML or
// TOML file, the environment and command-line flags, in increasing order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

const (
	defaultBackend      = BackendAuto
	defaultDataFile     = ".data/prisma-store.json"
	defaultAdminEmail   = "admin@localhost"
	defaultAdminPass    = "Passw0rd!"
	defaultAdminName    = "Root Admin"
	defaultLogLevel     = "info"
	defaultLogFormat    = "text"
	defaultLogMaxSizeMB = 10
	defaultLogMaxFiles  = 5
	defaultMailFrom     = "no-reply@localhost"
)

// Backend selection values.
const (
	BackendAuto   = "auto"
	BackendSQLite = "sqlite"
	BackendJSON   = "json"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Store   StoreConfig   `yaml:"store" toml:"store"`
	Admin   Admin         `yaml:"admin" toml:"admin"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
	Mail    MailConfig    `yaml:"mail" toml:"mail"`
}

type StoreConfig struct {
	// Backend is auto, sqlite or json. auto tries SQLite when DatabaseURL
	// is set and falls back to the JSON file store.
	Backend     string `yaml:"backend" toml:"backend"`
	DatabaseURL string `yaml:"database_url" toml:"database_url"`
	DataFile    string `yaml:"data_file" toml:"data_file"`
	StrictRead  bool   `yaml:"strict_read" toml:"strict_read"`
}

// Admin is the privileged account seeded at startup.
type Admin struct {
	Email    string `yaml:"email" toml:"email"`
	Password string `yaml:"password" toml:"password"`
	Name     string `yaml:"name" toml:"name"`
}

// LogValue keeps the password out of logs.
func (a Admin) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("email", a.Email),
		slog.String("name", a.Name),
	)
}

type LoggingConfig struct {
	Level     string `yaml:"level" toml:"level"`
	Format    string `yaml:"format" toml:"format"`
	File      string `yaml:"file" toml:"file"`
	MaxSizeMB int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" toml:"max_files"`
}

type MailConfig struct {
	From string `yaml:"from" toml:"from"`
}

type LoadOptions struct {
	ConfigPath string
	// Env replaces the process environment when non-nil.
	Env   map[string]string
	Flags FlagOverrides
}

type FlagOverrides struct {
	Backend     *string
	DatabaseURL *string
	DataFile    *string
	LogLevel    *string
	LogFormat   *string
}

func DefaultConfig() Config {
	return Config{
		Store: StoreConfig{
			Backend:  defaultBackend,
			DataFile: defaultDataFile,
		},
		Admin: Admin{
			Email:    defaultAdminEmail,
			Password: defaultAdminPass,
			Name:     defaultAdminName,
		},
		Logging: LoggingConfig{
			Level:     defaultLogLevel,
			Format:    defaultLogFormat,
			MaxSizeMB: defaultLogMaxSizeMB,
			MaxFiles:  defaultLogMaxFiles,
		},
		Mail: MailConfig{
			From: defaultMailFrom,
		},
	}
}

func Load(opts LoadOptions) (Config, error) {
	cfg := DefaultConfig()

	configPath := opts.ConfigPath
	if configPath == "" {
		configPath, _ = lookupEnv(opts, "MARKETDB_CONFIG")
	}
	if err := loadAndApplyFile(configPath, &cfg); err != nil {
		return Config{}, err
	}

	if err := applyEnvOverrides(&cfg, opts); err != nil {
		return Config{}, err
	}
	applyFlagOverrides(&cfg, opts.Flags)

	cfg.Admin.Email = NormalizeEmail(cfg.Admin.Email)
	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// NormalizeEmail trims surrounding space and puts the address in Unicode
// NFC form, so visually identical addresses compare equal.
func NormalizeEmail(email string) string {
	return norm.NFC.String(strings.TrimSpace(email))
}

type rawConfig struct {
	Store   *rawStore   `yaml:"store" toml:"store"`
	Admin   *rawAdmin   `yaml:"admin" toml:"admin"`
	Logging *rawLogging `yaml:"logging" toml:"logging"`
	Mail    *rawMail    `yaml:"mail" toml:"mail"`
}

type rawStore struct {
	Backend     *string `yaml:"backend" toml:"backend"`
	DatabaseURL *string `yaml:"database_url" toml:"database_url"`
	DataFile    *string `yaml:"data_file" toml:"data_file"`
	StrictRead  *bool   `yaml:"strict_read" toml:"strict_read"`
}

type rawAdmin struct {
	Email    *string `yaml:"email" toml:"email"`
	Password *string `yaml:"password" toml:"password"`
	Name     *string `yaml:"name" toml:"name"`
}

type rawLogging struct {
	Level     *string `yaml:"level" toml:"level"`
	Format    *string `yaml:"format" toml:"format"`
	File      *string `yaml:"file" toml:"file"`
	MaxSizeMB *int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxFiles  *int    `yaml:"max_files" toml:"max_files"`
}

type rawMail struct {
	From *string `yaml:"from" toml:"from"`
}

func loadAndApplyFile(path string, cfg *Config) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file %q: %w", path, err)
	}

	var raw rawConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("%w: parse TOML file %q: %v", ErrInvalidConfig, path, err)
		}
	default:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("%w: parse YAML file %q: %v", ErrInvalidConfig, path, err)
		}
	}

	applyRawConfig(cfg, raw)
	return nil
}

func applyRawConfig(cfg *Config, raw rawConfig) {
	if raw.Store != nil {
		setString(raw.Store.Backend, &cfg.Store.Backend)
		setString(raw.Store.DatabaseURL, &cfg.Store.DatabaseURL)
		setString(raw.Store.DataFile, &cfg.Store.DataFile)
		setBool(raw.Store.StrictRead, &cfg.Store.StrictRead)
	}

	if raw.Admin != nil {
		setString(raw.Admin.Email, &cfg.Admin.Email)
		setString(raw.Admin.Password, &cfg.Admin.Password)
		setString(raw.Admin.Name, &cfg.Admin.Name)
	}

	if raw.Logging != nil {
		setString(raw.Logging.Level, &cfg.Logging.Level)
		setString(raw.Logging.Format, &cfg.Logging.Format)
		setString(raw.Logging.File, &cfg.Logging.File)
		setInt(raw.Logging.MaxSizeMB, &cfg.Logging.MaxSizeMB)
		setInt(raw.Logging.MaxFiles, &cfg.Logging.MaxFiles)
	}

	if raw.Mail != nil {
		setString(raw.Mail.From, &cfg.Mail.From)
	}
}

func applyEnvOverrides(cfg *Config, opts LoadOptions) error {
	if value, ok := lookupEnv(opts, "MARKETDB_BACKEND"); ok {
		cfg.Store.Backend = value
	}
	if value, ok := lookupEnv(opts, "DATABASE_URL"); ok {
		cfg.Store.DatabaseURL = value
	}
	if value, ok := lookupEnv(opts, "MARKETDB_DATA_FILE"); ok {
		cfg.Store.DataFile = value
	}
	if value, ok := lookupEnv(opts, "MARKETDB_STRICT_READ"); ok {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: parse MARKETDB_STRICT_READ: %v", ErrInvalidConfig, err)
		}
		cfg.Store.StrictRead = parsed
	}

	// Empty admin values keep the defaults.
	if value, ok := lookupEnv(opts, "ADMIN_EMAIL"); ok && value != "" {
		cfg.Admin.Email = value
	}
	if value, ok := lookupEnv(opts, "ADMIN_PASSWORD"); ok && value != "" {
		cfg.Admin.Password = value
	}
	if value, ok := lookupEnv(opts, "ADMIN_NAME"); ok && value != "" {
		cfg.Admin.Name = value
	}

	if value, ok := lookupEnv(opts, "MARKETDB_LOG_LEVEL"); ok {
		cfg.Logging.Level = value
	}
	if value, ok := lookupEnv(opts, "MARKETDB_LOG_FORMAT"); ok {
		cfg.Logging.Format = value
	}
	if value, ok := lookupEnv(opts, "MARKETDB_LOG_FILE"); ok {
		cfg.Logging.File = value
	}
	if value, ok := lookupEnv(opts, "MARKETDB_LOG_MAX_SIZE_MB"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: parse MARKETDB_LOG_MAX_SIZE_MB: %v", ErrInvalidConfig, err)
		}
		cfg.Logging.MaxSizeMB = parsed
	}
	if value, ok := lookupEnv(opts, "MARKETDB_LOG_MAX_FILES"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: parse MARKETDB_LOG_MAX_FILES: %v", ErrInvalidConfig, err)
		}
		cfg.Logging.MaxFiles = parsed
	}

	if value, ok := lookupEnv(opts, "MARKETDB_MAIL_FROM"); ok {
		cfg.Mail.From = value
	}

	return nil
}

func applyFlagOverrides(cfg *Config, flags FlagOverrides) {
	setString(flags.Backend, &cfg.Store.Backend)
	setString(flags.DatabaseURL, &cfg.Store.DatabaseURL)
	setString(flags.DataFile, &cfg.Store.DataFile)
	setString(flags.LogLevel, &cfg.Logging.Level)
	setString(flags.LogFormat, &cfg.Logging.Format)
}

func validate(cfg Config) error {
	switch cfg.Store.Backend {
	case BackendAuto, BackendJSON:
	case BackendSQLite:
		if cfg.Store.DatabaseURL == "" {
			return fmt.Errorf("%w: store.backend sqlite requires store.database_url", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: store.backend must be auto, sqlite or json, got %q", ErrInvalidConfig, cfg.Store.Backend)
	}
	if cfg.Store.DataFile == "" {
		return fmt.Errorf("%w: store.data_file must not be empty", ErrInvalidConfig)
	}

	if !strings.Contains(cfg.Admin.Email, "@") {
		return fmt.Errorf("%w: admin.email %q is not an email address", ErrInvalidConfig, cfg.Admin.Email)
	}
	if cfg.Admin.Password == "" {
		return fmt.Errorf("%w: admin.password must not be empty", ErrInvalidConfig)
	}

	if _, err := ParseLevel(cfg.Logging.Level); err != nil {
		return err
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: logging.format must be text or json, got %q", ErrInvalidConfig, cfg.Logging.Format)
	}
	if cfg.Logging.MaxSizeMB <= 0 || cfg.Logging.MaxFiles < 0 {
		return fmt.Errorf("%w: logging.max_size_mb must be > 0 and logging.max_files >= 0", ErrInvalidConfig)
	}
	return nil
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, level)
}

func setString(raw *string, target *string) {
	if raw != nil {
		*target = *raw
	}
}

func setBool(raw *bool, target *bool) {
	if raw != nil {
		*target = *raw
	}
}

func setInt(raw *int, target *int) {
	if raw != nil {
		*target = *raw
	}
}

func lookupEnv(opts LoadOptions, key string) (string, bool) {
	if opts.Env != nil {
		value, ok := opts.Env[key]
		return value, ok
	}
	return os.LookupEnv(key)
}
