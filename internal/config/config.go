package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const envPrefix = "STREAMFLOW_"

var ErrInvalidConfig = errors.New("invalid config")

// Config is read from STREAMFLOW_* environment variables. A YAML file given
// to Load is applied on top for the keys it sets.
type Config struct {
	ProgramID string `env:"PROGRAM_ID" envDefault:"MSPCUMbLfy2MeT6geLMMzrUkv1Tx88XRApaVRdyxTuu" yaml:"programId"`

	ClickHouse ClickHouse `envPrefix:"CLICKHOUSE_" yaml:"clickhouse"`
	MinIO      MinIO      `envPrefix:"MINIO_" yaml:"minio"`

	APIAddr   string `env:"API_ADDR" envDefault:":8080" yaml:"apiAddr"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info" yaml:"logLevel"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json" yaml:"logFormat"`
	Workers   int    `env:"WORKERS" envDefault:"4" yaml:"workers"`
	Friendly  bool   `env:"FRIENDLY" envDefault:"false" yaml:"friendly"`
}

type ClickHouse struct {
	Enabled  bool   `env:"ENABLED" envDefault:"false" yaml:"enabled"`
	Addr     string `env:"ADDR" envDefault:"127.0.0.1:9000" yaml:"addr"`
	Database string `env:"DATABASE" envDefault:"default" yaml:"database"`
	Username string `env:"USERNAME" envDefault:"default" yaml:"-"`
	Password string `env:"PASSWORD" yaml:"-"`
}

type MinIO struct {
	Enabled   bool   `env:"ENABLED" envDefault:"false" yaml:"enabled"`
	Endpoint  string `env:"ENDPOINT" envDefault:"localhost:9000" yaml:"endpoint"`
	AccessKey string `env:"ACCESS_KEY" yaml:"-"`
	SecretKey string `env:"SECRET_KEY" yaml:"-"`
	Bucket    string `env:"BUCKET" envDefault:"stream-snapshots" yaml:"bucket"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"false" yaml:"useSSL"`
}

// ParseEnv reads the environment only.
func ParseEnv() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Load reads the environment and then overlays the YAML file at path, if
// path is not empty. Credentials are never read from the file.
func Load(path string) (Config, error) {
	cfg, err := ParseEnv()
	if err != nil {
		return Config{}, err
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if _, err := solana.PublicKeyFromBase58(c.ProgramID); err != nil {
		return fmt.Errorf("%w: program id %q: %v", ErrInvalidConfig, c.ProgramID, err)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalidConfig, c.Workers)
	}
	if _, err := zap.ParseAtomicLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log level: %v", ErrInvalidConfig, err)
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("%w: log format must be json or console, got %q", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}

func (c Config) Program() solana.PublicKey {
	return solana.MustPublicKeyFromBase58(c.ProgramID)
}

// NewLogger builds the process logger: production JSON or development
// console output at the configured level.
func (c Config) NewLogger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: log level: %v", ErrInvalidConfig, err)
	}

	zc := zap.NewProductionConfig()
	if c.LogFormat == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}
