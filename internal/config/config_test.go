package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"ARENA_ENTRIES_DIR", "ARENA_PADDING", "ARENA_ITER", "ARENA_MATCH_TIMEOUT", "ARENA_PARALLEL"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Tournament.EntriesDir != "./entries" {
		t.Errorf("EntriesDir = %q", cfg.Tournament.EntriesDir)
	}
	if cfg.Tournament.Padding != 1 || cfg.Tournament.Iterations != 100 {
		t.Errorf("Padding/Iterations = %d/%d", cfg.Tournament.Padding, cfg.Tournament.Iterations)
	}
	if cfg.Tournament.MatchTimeout != 2*time.Minute {
		t.Errorf("MatchTimeout = %v", cfg.Tournament.MatchTimeout)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ARENA_PADDING", "3")
	t.Setenv("ARENA_ITER", "7")
	t.Setenv("ARENA_MATCH_TIMEOUT", "5s")
	t.Setenv("ARENA_PARALLEL", "4")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Tournament.Padding != 3 || cfg.Tournament.Iterations != 7 {
		t.Errorf("Padding/Iterations = %d/%d", cfg.Tournament.Padding, cfg.Tournament.Iterations)
	}
	if cfg.Tournament.MatchTimeout != 5*time.Second {
		t.Errorf("MatchTimeout = %v", cfg.Tournament.MatchTimeout)
	}
	if cfg.Search.Parallel != 4 {
		t.Errorf("Parallel = %d", cfg.Search.Parallel)
	}
}

func TestLoadRejectsZeroPadding(t *testing.T) {
	t.Setenv("ARENA_PADDING", "0")

	_, err := Load()
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}
