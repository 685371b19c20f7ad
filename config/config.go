// config/config.go
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dalemusser/mongocrud/logging"
	"github.com/dalemusser/mongocrud/toolkit/db/mongodb"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix is prepended to every key when read from the environment,
// e.g. mongo_uri → MONGOCRUD_MONGO_URI.
const EnvPrefix = "MONGOCRUD"

// ErrHelp is returned by Load when -h/--help was requested.
var ErrHelp = pflag.ErrHelp

// MongoConfig groups the database endpoint settings.
type MongoConfig struct {
	URI             string        `mapstructure:"mongo_uri"`
	Database        string        `mapstructure:"mongo_database"`
	UsersCollection string        `mapstructure:"users_collection"`
	ConnectTimeout  time.Duration `mapstructure:"-"` // db_connect_timeout
	MaxPoolSize     uint64        `mapstructure:"max_pool_size"`
}

// ExportConfig groups the export command settings.
type ExportConfig struct {
	Format string `mapstructure:"export_format"` // "csv" | "xlsx"
	Path   string `mapstructure:"export_path"`
}

// CoreConfig holds everything a mongocrud command needs.
type CoreConfig struct {
	// runtime
	Env      string `mapstructure:"env"`       // "dev" | "prod"
	LogLevel string `mapstructure:"log_level"` // debug, info, warn, error …

	Mongo  MongoConfig  `mapstructure:",squash"`
	Export ExportConfig `mapstructure:",squash"`

	// OpTimeout bounds a single stage; zero leaves it to the driver.
	OpTimeout time.Duration `mapstructure:"-"`

	// demo behavior
	Fresh    bool   `mapstructure:"fresh"`
	SeedFile string `mapstructure:"seed_file"`

	MetricsTextfile string `mapstructure:"metrics_textfile"`
}

// PoolConfig derives driver pool settings from the config.
func (c CoreConfig) PoolConfig() mongodb.PoolConfig {
	pool := mongodb.DefaultPoolConfig()
	pool.ConnectTimeout = c.Mongo.ConnectTimeout
	if c.Mongo.MaxPoolSize > 0 {
		pool.MaxPoolSize = c.Mongo.MaxPoolSize
	}
	return pool
}

// Dump returns a pretty, redacted JSON string of the config for debugging.
func (c CoreConfig) Dump() string {
	s := c.redactedCopy()
	b, _ := json.MarshalIndent(s, "", "  ")
	return string(b)
}

func (c CoreConfig) redactedCopy() CoreConfig {
	cp := c
	cp.Mongo.URI = mongodb.RedactURI(c.Mongo.URI)
	return cp
}

// Load merges defaults → config.* file(s) → env vars → explicit flags into one CoreConfig.
// Final precedence (highest wins): flags(explicit) > env > config > defaults.
//
// args are the command-line arguments after the subcommand name. The
// returned slice holds the positional (non-flag) arguments.
func Load(logger *zap.Logger, args []string) (*CoreConfig, []string, error) {
	// 0) Optionally load .env (safe: real env still wins over .env)
	if err := godotenv.Load(); err == nil && logger != nil {
		logger.Info("Loaded .env file")
	}

	// 1) Define flags (only *explicitly set* flags will override)
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, nil, ErrHelp
		}
		return nil, nil, &UsageError{Err: err}
	}

	// 2) Viper + env
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Bind env for all keys so Unmarshal sees them.
	for _, k := range allKeys() {
		_ = v.BindEnv(k)
	}

	// 3) Optional config.* files (yaml|yml|json|toml)
	mergeConfigFiles(logger, v)

	// 4) Defaults (lowest precedence)
	setDefaults(v)

	// 5) Apply *explicit* flags (highest precedence)
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			_ = v.BindPFlag(f.Name, f)
		}
	})

	// 6) Build struct
	var cfg CoreConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Durations accept "10s", "2m" or plain seconds. Bad values are
	// reported with the rest of the validation errors.
	var invalid []string
	dbDur, err := parseDurationFlexible(v.Get("db_connect_timeout"), 10*time.Second, false)
	if err != nil {
		invalid = append(invalid, "db_connect_timeout "+err.Error())
	}
	cfg.Mongo.ConnectTimeout = dbDur

	opDur, err := parseDurationFlexible(v.Get("op_timeout"), 0, true)
	if err != nil {
		invalid = append(invalid, "op_timeout "+err.Error())
	}
	cfg.OpTimeout = opDur

	cfg.Export.Format = strings.ToLower(strings.TrimSpace(cfg.Export.Format))
	if strings.TrimSpace(cfg.Export.Path) == "" {
		cfg.Export.Path = DefaultExportPath(cfg.Export.Format)
	}

	// 7) Validate
	if err := validateCoreConfig(cfg, invalid...); err != nil {
		return nil, nil, err
	}

	return &cfg, fs.Args(), nil
}

// UsageError wraps a command-line parsing failure.
type UsageError struct{ Err error }

func (e *UsageError) Error() string { return "usage: " + e.Err.Error() }
func (e *UsageError) Unwrap() error { return e.Err }

// Usage returns the flag help text, for the CLI's help command.
func Usage() string {
	return newFlagSet().FlagUsages()
}

// Positional returns the non-flag arguments of args, parsed with the same
// flag definitions as Load. It returns nil when args do not parse.
func Positional(args []string) []string {
	fs := newFlagSet()
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	if err := fs.Parse(args); err != nil {
		return nil
	}
	return fs.Args()
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("mongocrud", pflag.ContinueOnError)
	fs.SortFlags = false

	fs.String("env", "dev", `Runtime environment "dev"|"prod"`)
	fs.String("log_level", "info", "Log level")

	fs.String("mongo_uri", "mongodb://localhost:27017", "MongoDB connection string")
	fs.String("mongo_database", "tutorial_db", "Database name")
	fs.String("users_collection", "users", "Collection used by the CRUD demo")
	fs.String("db_connect_timeout", "10s", "Timeout for connect + ping (e.g., \"10s\", \"30s\")")
	fs.String("op_timeout", "0", "Per-stage timeout; 0 leaves it to the driver")
	fs.Uint64("max_pool_size", 0, "Max driver pool size (0 = default)")

	fs.Bool("fresh", false, "Drop the users collection before the create stage")
	fs.String("seed_file", "", "YAML file with users to insert instead of the built-in ones")
	fs.String("metrics_textfile", "", "Write Prometheus metrics to this file on exit")

	fs.String("export_format", "csv", `Export format "csv"|"xlsx"`)
	fs.String("export_path", "", `Export destination file (default "users.<export_format>")`)
	return fs
}

func mergeConfigFiles(logger *zap.Logger, v *viper.Viper) {
	for _, ext := range [...]string{"yaml", "yml", "json", "toml"} {
		file := "config." + ext
		if _, err := os.Stat(file); err != nil {
			continue
		}
		b, err := os.ReadFile(file)
		if err != nil {
			if logger != nil {
				logger.Warn("cannot read config file", zap.String("file", file), zap.Error(err))
			}
			continue
		}
		v.SetConfigType(ext)
		if err := v.MergeConfig(bytes.NewReader(b)); err != nil {
			if logger != nil {
				logger.Warn("cannot decode config file", zap.String("file", file), zap.Error(err))
			}
			continue
		}
		if logger != nil {
			logger.Info("Loaded config file", zap.String("file", file))
		}
	}
}

func allKeys() []string {
	return []string{
		"env", "log_level",
		"mongo_uri", "mongo_database", "users_collection",
		"db_connect_timeout", "op_timeout", "max_pool_size",
		"fresh", "seed_file", "metrics_textfile",
		"export_format", "export_path",
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")
	v.SetDefault("log_level", "info")

	v.SetDefault("mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("mongo_database", "tutorial_db")
	v.SetDefault("users_collection", "users")
	v.SetDefault("db_connect_timeout", "10s")
	v.SetDefault("op_timeout", "0")
	v.SetDefault("max_pool_size", uint64(0))

	v.SetDefault("fresh", false)
	v.SetDefault("seed_file", "")
	v.SetDefault("metrics_textfile", "")

	v.SetDefault("export_format", "csv")
	v.SetDefault("export_path", "")
}

// DefaultExportPath is the export destination used when export_path is
// not set: "users." plus the format, e.g. users.xlsx.
func DefaultExportPath(format string) string {
	return "users." + format
}

// validateCoreConfig checks cfg. invalid carries problems found while
// decoding, so every error is reported at once.
func validateCoreConfig(cfg CoreConfig, invalid ...string) error {
	var missing []string

	if cfg.Env != "dev" && cfg.Env != "prod" {
		invalid = append(invalid, `env must be "dev" or "prod"`)
	}
	if !logging.IsValidLogLevel(cfg.LogLevel) {
		invalid = append(invalid, "log_level must be one of "+strings.Join(logging.ValidLogLevels, ", "))
	}

	if strings.TrimSpace(cfg.Mongo.URI) == "" {
		missing = append(missing, "MONGOCRUD_MONGO_URI (or --mongo_uri)")
	} else if err := mongodb.ValidateURI(cfg.Mongo.URI); err != nil {
		invalid = append(invalid, "mongo_uri "+err.Error())
	}
	if strings.TrimSpace(cfg.Mongo.Database) == "" {
		missing = append(missing, "MONGOCRUD_MONGO_DATABASE (or --mongo_database)")
	} else if strings.ContainsAny(cfg.Mongo.Database, `/\. "$`) {
		invalid = append(invalid, "mongo_database cannot contain /\\. \"$ or spaces")
	}
	if strings.TrimSpace(cfg.Mongo.UsersCollection) == "" {
		missing = append(missing, "MONGOCRUD_USERS_COLLECTION (or --users_collection)")
	} else if strings.HasPrefix(cfg.Mongo.UsersCollection, "system.") || strings.Contains(cfg.Mongo.UsersCollection, "$") {
		invalid = append(invalid, "users_collection cannot start with \"system.\" or contain \"$\"")
	}

	switch cfg.Export.Format {
	case "csv":
	case "xlsx":
		// excelize only writes files with a workbook extension
		if !strings.EqualFold(filepath.Ext(cfg.Export.Path), ".xlsx") {
			invalid = append(invalid, `export_path must end in ".xlsx" when export_format is "xlsx"`)
		}
	default:
		invalid = append(invalid, `export_format must be "csv" or "xlsx"`)
	}

	if len(missing) == 0 && len(invalid) == 0 {
		return nil
	}

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		parts = append(parts, "invalid: "+strings.Join(invalid, ", "))
	}
	return fmt.Errorf("configuration errors: %s", strings.Join(parts, " | "))
}
