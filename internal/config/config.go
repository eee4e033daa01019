// Package config loads arena settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete arena configuration.
type Config struct {
	Tournament TournamentConfig
	Search     SearchConfig
	Server     ServerConfig
	LogLevel   string
}

// TournamentConfig holds the round-robin settings.
type TournamentConfig struct {
	EntriesDir   string
	Controller   string
	Interpreter  string
	Padding      int
	Iterations   int
	Seating      string
	MatchTimeout time.Duration
}

// SearchConfig holds the parameter search settings.
type SearchConfig struct {
	Storage         string
	Study           string
	Trials          int
	Parallel        int
	Seed            int64
	ObjectiveScript string
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Addr string
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Tournament: TournamentConfig{
			EntriesDir:   getEnvOrDefault("ARENA_ENTRIES_DIR", "./entries"),
			Controller:   getEnvOrDefault("ARENA_CONTROLLER", "./prime_daihinmin.py"),
			Interpreter:  getEnvOrDefault("ARENA_INTERPRETER", ""),
			Padding:      getEnvIntOrDefault("ARENA_PADDING", 1),
			Iterations:   getEnvIntOrDefault("ARENA_ITER", 100),
			Seating:      getEnvOrDefault("ARENA_SEATING", "ordered"),
			MatchTimeout: getEnvDurationOrDefault("ARENA_MATCH_TIMEOUT", 2*time.Minute),
		},
		Search: SearchConfig{
			Storage:         getEnvOrDefault("ARENA_STORAGE", "arena.db"),
			Study:           getEnvOrDefault("ARENA_STUDY", ""),
			Trials:          getEnvIntOrDefault("ARENA_TRIALS", 100),
			Parallel:        getEnvIntOrDefault("ARENA_PARALLEL", 1),
			Seed:            int64(getEnvIntOrDefault("ARENA_SEED", 0)),
			ObjectiveScript: getEnvOrDefault("ARENA_OBJECTIVE_SCRIPT", ""),
		},
		Server: ServerConfig{
			Addr: getEnvOrDefault("ARENA_ADDR", "127.0.0.1:8077"),
		},
		LogLevel: getEnvOrDefault("LOG_LEVEL", "INFO"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the numeric bounds the engine relies on.
func (c *Config) Validate() error {
	if c.Tournament.Padding < 1 {
		return fmt.Errorf("%w: padding must be >= 1, got %d", ErrInvalid, c.Tournament.Padding)
	}
	if c.Tournament.Iterations < 1 {
		return fmt.Errorf("%w: iterations must be >= 1, got %d", ErrInvalid, c.Tournament.Iterations)
	}
	if c.Tournament.MatchTimeout < 0 {
		return fmt.Errorf("%w: match timeout must not be negative", ErrInvalid)
	}
	if c.Search.Trials < 0 {
		return fmt.Errorf("%w: trials must not be negative", ErrInvalid)
	}
	if c.Search.Parallel < 1 {
		return fmt.Errorf("%w: parallel must be >= 1, got %d", ErrInvalid, c.Search.Parallel)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
