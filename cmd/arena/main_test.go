package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MJE43/daihinmin-arena/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Tournament: config.TournamentConfig{Padding: 1, Iterations: 1, Seating: "ordered"},
		Search:     config.SearchConfig{Storage: filepath.Join(t.TempDir(), "arena.db"), Trials: 1, Parallel: 1},
		Server:     config.ServerConfig{Addr: "127.0.0.1:0"},
		LogLevel:   "ERROR",
	}
}

func run(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(cfg)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func arenaFixture(t *testing.T) (entries, controller string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell controllers need a POSIX shell")
	}
	base := t.TempDir()
	entries = filepath.Join(base, "entries")
	require.NoError(t, os.Mkdir(entries, 0o755))
	for _, n := range []string{"a", "b", "c", "d"} {
		require.NoError(t, os.WriteFile(filepath.Join(entries, n), []byte("player "+n), 0o755))
	}
	controller = filepath.Join(base, "controller.sh")
	body := "#!/bin/sh\necho 3 x 0 1\necho 2 x 1 1\necho 1 x 2 1\necho 0 x 3 3001\necho stock 5\necho max_cuts 1\n"
	require.NoError(t, os.WriteFile(controller, []byte(body), 0o755))
	return entries, controller
}

func TestHashCommand(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "x")
	require.NoError(t, os.WriteFile(file, []byte("abc"), 0o644))

	out, err := run(t, testConfig(t), "hash", file, dir)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	assert.True(t, strings.HasPrefix(lines[0], want))
	assert.True(t, strings.HasPrefix(lines[1], want))

	_, err = run(t, testConfig(t), "hash", filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestRoundRobinCommand(t *testing.T) {
	entries, ctl := arenaFixture(t)

	out, err := run(t, testConfig(t), "roundrobin", "--dir", entries, "--controller", ctl, "--seating", "unordered", "--json")
	require.NoError(t, err)

	var got standings
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 1, got.Matches)
	assert.Equal(t, 5, got.Stock)
	require.Len(t, got.Entries, 4)
	assert.Equal(t, 3, got.Entries[0].Score)
	assert.NotEmpty(t, got.Entries[0].Name)
	assert.True(t, got.Entries[3].Err)

	out, err = run(t, testConfig(t), "roundrobin", "--dir", entries, "--controller", ctl)
	require.NoError(t, err)
	assert.Contains(t, out, "RANK")
	assert.Contains(t, out, "matches=24")

	_, err = run(t, testConfig(t), "roundrobin", "--dir", entries, "--controller", ctl, "--seating", "diagonal")
	assert.Error(t, err)
}

func TestOptimizeCommand(t *testing.T) {
	entries, ctl := arenaFixture(t)
	target := filepath.Join(t.TempDir(), "mine")
	require.NoError(t, os.WriteFile(target, []byte("tuned"), 0o755))
	cfg := testConfig(t)

	args := []string{"optimize", target, "--dir", entries, "--controller", ctl, "--seating", "unordered",
		"--study", "cli", "--trials", "2", "--parallel", "2", "--seed", "5"}
	out, err := run(t, cfg, args...)
	require.NoError(t, err)
	assert.Contains(t, out, "study cli (seed 5, resumed=false): 2 complete, 0 failed")
	assert.Contains(t, out, "best trial #")
	assert.Contains(t, out, "cards_num")

	out, err = run(t, cfg, args...)
	require.NoError(t, err)
	assert.Contains(t, out, "resumed=true")
	assert.Contains(t, out, "fitness over 4 complete trials")
}
