// Package config loads and validates the stratify configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// FileName is the config file searched for in the working directory and
// its ancestors.
const FileName = "stratify.yaml"

// ErrInvalid marks missing or malformed configuration. It is returned
// before any connection is attempted.
var ErrInvalid = errors.New("invalid configuration")

var tablePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Database holds backing-store connection parameters. For sqlite, Name is
// the database file path and the network fields are unused.
type Database struct {
	Type     string `mapstructure:"type"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"database"`
}

// Config is the immutable input to one command invocation.
type Config struct {
	Database      Database `mapstructure:"database"`
	MigrationsDir string   `mapstructure:"migrationsDir"`
	TableName     string   `mapstructure:"tableName"`
	LogFile       string   `mapstructure:"logFile"`
}

// Load reads configuration from path, or, when path is empty, from
// stratify.yaml found in the current directory or the nearest ancestor.
// STRATIFY_* environment variables override file values (for example
// STRATIFY_DATABASE_PASSWORD). A missing file is not an error by itself;
// validation of the merged result is what decides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, ".yaml"))
		// Walk up from CWD so commands work from subdirectories, the
		// same way a VCS root is found.
		if cwd, err := os.Getwd(); err == nil {
			for dir := cwd; ; dir = filepath.Dir(dir) {
				v.AddConfigPath(dir)
				if dir == filepath.Dir(dir) {
					break
				}
			}
		}
	}

	v.SetEnvPrefix("STRATIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Explicit binds so env-only values survive Unmarshal, e.g.
	// STRATIFY_DATABASE_PASSWORD.
	for _, key := range []string{
		"database.type", "database.host", "database.port",
		"database.user", "database.password", "database.database",
		"migrationsDir", "tableName", "logFile",
	} {
		_ = v.BindEnv(key)
	}

	v.SetDefault("migrationsDir", "migrations")
	v.SetDefault("tableName", "migrations")
	v.SetDefault("database.host", "localhost")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
			// No config file found anywhere - env vars and defaults only.
		case path != "" && os.IsNotExist(err):
			return nil, fmt.Errorf("%w: config file %s does not exist", ErrInvalid, path)
		default:
			return nil, fmt.Errorf("%w: reading config: %v", ErrInvalid, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills the engine's conventional port when none is set.
func (c *Config) applyDefaults() {
	if c.Database.Port == 0 {
		switch c.Database.Type {
		case "postgres":
			c.Database.Port = 5432
		case "mysql":
			c.Database.Port = 3306
		}
	}
}

// Validate checks the parts of the configuration every command needs.
// Connection parameters are checked separately by Store, so commands that
// never touch the database (create) work without them.
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "", "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("%w: unsupported database.type %q", ErrInvalid, c.Database.Type)
	}
	if c.MigrationsDir == "" {
		return fmt.Errorf("%w: missing migrationsDir", ErrInvalid)
	}
	if !tablePattern.MatchString(c.TableName) {
		return fmt.Errorf("%w: tableName %q must match [A-Za-z_][A-Za-z0-9_]*", ErrInvalid, c.TableName)
	}
	return nil
}

// Store validates and returns the connection parameters. Called by the
// commands that open an adapter, before any I/O.
func (c *Config) Store() (Database, error) {
	if c.Database.Type == "" {
		return Database{}, fmt.Errorf("%w: missing database.type", ErrInvalid)
	}
	if c.Database.Name == "" {
		return Database{}, fmt.Errorf("%w: missing database.database", ErrInvalid)
	}
	if c.Database.Type != "sqlite" && c.Database.User == "" {
		return Database{}, fmt.Errorf("%w: missing database.user", ErrInvalid)
	}
	return c.Database, nil
}
