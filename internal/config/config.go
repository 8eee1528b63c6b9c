package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is the environment variable prefix, e.g. REDUCED_SIZE.
const Prefix = "REDUCED"

// Config validation errors
var (
	ErrInvalidSize       = errors.New("size must be positive")
	ErrInvalidWorkers    = errors.New("workers must not be negative")
	ErrInvalidChunkSize  = errors.New("chunk_size must be positive")
	ErrInvalidMaxMemory  = errors.New("max_memory must not be negative")
	ErrInvalidIterations = errors.New("iterations must be positive")
	ErrInvalidFill       = errors.New("fill must be 'uniform' or 'ramp'")
	ErrInvalidLogFormat  = errors.New("log_format must be 'json' or 'console'")
	ErrInvalidLogLevel   = errors.New("log_level must be debug, info, warn, or error")
)

// Config holds the benchmark configuration. Field names map to REDUCED_*
// variables by splitting words, e.g. ChunkSize reads REDUCED_CHUNK_SIZE.
type Config struct {
	Size        int    `split_words:"true" default:"1073741824"`
	Workers     int    `split_words:"true" default:"0"` // 0 means GOMAXPROCS
	ChunkSize   int    `split_words:"true" default:"65536"`
	MaxMemory   int64  `split_words:"true" default:"0"` // 0 means unlimited
	Iterations  int    `split_words:"true" default:"10"`
	Fill        string `split_words:"true" default:"uniform"`
	SIMD        string `default:"auto"`
	QuiesceGC   bool   `split_words:"true" default:"true"`
	LogFormat   string `split_words:"true" default:"json"`
	LogLevel    string `split_words:"true" default:"info"`
	MetricsAddr string `split_words:"true"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		Size:        1073741824, // 2^30 elements
		Workers:     0,
		ChunkSize:   65536,
		MaxMemory:   0,
		Iterations:  10,
		Fill:        "uniform",
		SIMD:        "auto",
		QuiesceGC:   true,
		LogFormat:   "json",
		LogLevel:    "info",
		MetricsAddr: "",
	}
}

// Load reads envFile if it exists, then the REDUCED_* environment. Variables
// already set in the environment take precedence over the file. An empty
// envFile skips the file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("process environment: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func Validate(cfg *Config) error {
	if cfg.Size <= 0 {
		return ErrInvalidSize
	}
	if cfg.Workers < 0 {
		return ErrInvalidWorkers
	}
	if cfg.ChunkSize <= 0 {
		return ErrInvalidChunkSize
	}
	if cfg.MaxMemory < 0 {
		return ErrInvalidMaxMemory
	}
	if cfg.Iterations <= 0 {
		return ErrInvalidIterations
	}
	if cfg.Fill != "uniform" && cfg.Fill != "ramp" {
		return ErrInvalidFill
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return ErrInvalidLogFormat
	}
	if cfg.LogLevel != "debug" && cfg.LogLevel != "info" && cfg.LogLevel != "warn" && cfg.LogLevel != "error" {
		return ErrInvalidLogLevel
	}
	return nil
}
