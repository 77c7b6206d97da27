package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Sink types.
const (
	SinkNone     = "none"
	SinkPostgres = "postgres"
	SinkMSSQL    = "mssql"
	SinkMySQL    = "mysql"
	SinkSQLite   = "sqlite"
)

// Output formats.
const (
	FormatCSV  = "csv"
	FormatZIP  = "zip"
	FormatXLSX = "xlsx"
)

var (
	sinkTypes = []string{SinkNone, SinkPostgres, SinkMSSQL, SinkMySQL, SinkSQLite}
	formats   = []string{FormatCSV, FormatZIP, FormatXLSX}
)

// Config holds all configuration for ekaya-datagen.
// Configuration can come from a YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	Env     string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version string `yaml:"-"` // Set at load time, not from config

	// Seed is the base seed; each generator derives its stream from it.
	// Leaving it unset makes every run draw a fresh seed.
	Seed Seed `yaml:"seed" env:"DATAGEN_SEED"`

	Generation GenerationConfig `yaml:"generation"`
	Output     OutputConfig     `yaml:"output"`
	Sink       SinkConfig       `yaml:"sink"`

	// Database is the Postgres instance holding the generation run log.
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Log      LogConfig      `yaml:"log"`
}

// Seed is an optional integer seed. It is kept as text so that "unset"
// survives both YAML and environment loading.
type Seed string

// SeedOf formats v as a set seed.
func SeedOf(v int64) Seed { return Seed(strconv.FormatInt(v, 10)) }

// Value returns the seed, or nil when none is set.
func (s Seed) Value() (*int64, error) {
	raw := strings.TrimSpace(string(s))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("seed %q is not an integer", raw)
	}
	return &v, nil
}

// GenerationConfig selects generators and bounds how they run.
type GenerationConfig struct {
	// Generators lists registry keys to run; empty means all of them.
	Generators []string `yaml:"generators" env:"DATAGEN_GENERATORS" env-separator:","`

	// ParamsFile is a YAML file of per-generator parameter overrides.
	ParamsFile  string        `yaml:"params_file" env:"DATAGEN_PARAMS_FILE" env-default:""`
	Concurrency int           `yaml:"concurrency" env:"DATAGEN_CONCURRENCY" env-default:"2"`
	Timeout     time.Duration `yaml:"timeout" env:"DATAGEN_TIMEOUT" env-default:"5m"`

	// RetryEmpty is how many times a run that hits an empty upstream
	// population is reseeded and retried.
	RetryEmpty int `yaml:"retry_empty" env:"DATAGEN_RETRY_EMPTY" env-default:"0"`

	// IORetries and IOBackoff govern retries of transient export and sink
	// failures. The backoff doubles on every retry.
	IORetries int           `yaml:"io_retries" env:"DATAGEN_IO_RETRIES" env-default:"3"`
	IOBackoff time.Duration `yaml:"io_backoff" env:"DATAGEN_IO_BACKOFF" env-default:"500ms"`
}

// OutputConfig holds file export settings.
type OutputConfig struct {
	Dir     string   `yaml:"dir" env:"DATAGEN_OUTPUT_DIR" env-default:"out"`
	Formats []string `yaml:"formats" env:"DATAGEN_OUTPUT_FORMATS" env-separator:"," env-default:"csv"`
}

// SinkConfig holds the database tables are loaded into after generation.
type SinkConfig struct {
	Type     string `yaml:"type" env:"SINK_TYPE" env-default:"none"`
	Host     string `yaml:"host" env:"SINK_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"SINK_PORT" env-default:"0"`
	User     string `yaml:"user" env:"SINK_USER" env-default:""`
	Password string `yaml:"-" env:"SINK_PASSWORD"` // Secret - not in YAML
	Database string `yaml:"database" env:"SINK_DATABASE" env-default:"datagen"`
	SSLMode  string `yaml:"ssl_mode" env:"SINK_SSLMODE" env-default:"disable"`

	// Path is the database file for the sqlite sink.
	Path        string `yaml:"path" env:"SINK_PATH" env-default:"datagen.db"`
	Schema      string `yaml:"schema" env:"SINK_SCHEMA" env-default:""`
	TablePrefix string `yaml:"table_prefix" env:"SINK_TABLE_PREFIX" env-default:""`
	BatchSize   int    `yaml:"batch_size" env:"SINK_BATCH_SIZE" env-default:"1000"`
}

// Enabled reports whether a sink is configured.
func (s *SinkConfig) Enabled() bool { return s.Type != "" && s.Type != SinkNone }

// DatabaseConfig holds PostgreSQL configuration for the run log.
type DatabaseConfig struct {
	Enabled        bool   `yaml:"enabled" env:"RUNLOG_ENABLED" env-default:"false"`
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"ekaya"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"ekaya_datagen"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	SkipMigrations bool   `yaml:"skip_migrations" env:"PGSKIP_MIGRATIONS" env-default:"false"`
}

// RedisConfig holds the dataset cache settings.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled" env:"REDIS_ENABLED" env-default:"false"`
	Host     string        `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port     int           `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string        `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	TTL      time.Duration `yaml:"ttl" env:"REDIS_TTL" env-default:"24h"`
}

// LogConfig selects the zap encoder and level.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"console"`
}

// Load reads configuration from path with environment variable overrides.
// A missing file is not an error: defaults and the environment apply.
// The version parameter is injected at build time and set on the returned Config.
func Load(path, version string) (*Config, error) {
	cfg := &Config{Version: version}

	var err error
	if _, statErr := os.Stat(path); path != "" && statErr == nil {
		err = cleanenv.ReadConfig(path, cfg)
	} else {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks values cleanenv cannot constrain.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.Seed.Value(); err != nil {
		errs = append(errs, err)
	}
	if !slices.Contains(sinkTypes, c.Sink.Type) {
		errs = append(errs, fmt.Errorf("sink.type %q is not one of %v", c.Sink.Type, sinkTypes))
	}
	for _, f := range c.Output.Formats {
		if !slices.Contains(formats, f) {
			errs = append(errs, fmt.Errorf("output format %q is not one of %v", f, formats))
		}
	}
	if c.Generation.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("generation.concurrency must be at least 1"))
	}
	if c.Generation.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("generation.timeout must be positive"))
	}
	if c.Generation.RetryEmpty < 0 {
		errs = append(errs, fmt.Errorf("generation.retry_empty must not be negative"))
	}
	if c.Generation.IORetries < 0 || c.Generation.IOBackoff <= 0 {
		errs = append(errs, fmt.Errorf("generation.io_retries must not be negative and generation.io_backoff must be positive"))
	}
	if c.Sink.Enabled() && c.Sink.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("sink.batch_size must be at least 1"))
	}
	return errors.Join(errs...)
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		ResolveHostForDocker(c.Host), c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Address returns host:port for the Redis client.
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", ResolveHostForDocker(c.Host), c.Port)
}

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

// IsRunningInDocker reports whether /.dockerenv exists. The result is cached.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	return isDockerResult
}

// ResolveHostForDocker maps localhost to host.docker.internal when running
// in a container, so sinks on the host machine stay reachable.
func ResolveHostForDocker(host string) string {
	if IsRunningInDocker() && (host == "localhost" || host == "127.0.0.1") {
		return "host.docker.internal"
	}
	return host
}
