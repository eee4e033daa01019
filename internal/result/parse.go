// Package result turns controller output into match records.
package result

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/MJE43/daihinmin-arena/internal/match"
)

// ErrorRemain is the remain value the controller reports for a player whose
// game ended abnormally.
const ErrorRemain = 3001

// trailerLines is four seat lines plus the stock and max_cuts lines.
const trailerLines = 6

var (
	ErrTimedOut  = errors.New("match timed out")
	ErrTruncated = errors.New("output truncated")
	ErrMalformed = errors.New("malformed result line")
)

// PlayerMatchResult is one seat's line of a match result.
type PlayerMatchResult struct {
	Score  int  `json:"score"`
	Remain int  `json:"remain"`
	Err    bool `json:"err"`
}

// MatchOutcome is one fully parsed match.
type MatchOutcome struct {
	Players [4]PlayerMatchResult `json:"players"`
	Stock   int                  `json:"stock"`
	MaxCuts int                  `json:"max_cuts"`
}

// Diagnostics is the context logged with a failed parse.
type Diagnostics struct {
	Command  string
	Seed     uint64
	Stderr   string
	ExitCode int
}

// Parsed is the fallible result of parsing one match. When Err is set,
// Outcome is the zero value and the match contributes nothing.
type Parsed struct {
	Outcome     MatchOutcome
	Err         error
	Diagnostics Diagnostics
}

// Ok reports whether the match produced a usable outcome.
func (p Parsed) Ok() bool { return p.Err == nil }

// Parse reads the trailing block of out. It never panics and never returns a
// partially populated outcome.
func Parse(out match.Output, diag Diagnostics) Parsed {
	diag.Stderr = out.Stderr
	diag.ExitCode = out.ExitCode
	if out.TimedOut {
		return Parsed{Err: ErrTimedOut, Diagnostics: diag}
	}

	outcome, err := ParseStdout(out.Stdout)
	if err != nil {
		return Parsed{Err: err, Diagnostics: diag}
	}
	return Parsed{Outcome: outcome, Diagnostics: diag}
}

// ParseStdout parses the last six non-blank-trailing lines of stdout: four
// "score ignored seat remain" lines, then lines ending in stock and max_cuts.
func ParseStdout(stdout string) (MatchOutcome, error) {
	lines := trailingLines(stdout)
	if len(lines) < trailerLines {
		return MatchOutcome{}, fmt.Errorf("%w: %d lines, need %d", ErrTruncated, len(lines), trailerLines)
	}
	tail := lines[len(lines)-trailerLines:]

	var outcome MatchOutcome
	var filled [4]bool
	for _, line := range tail[:4] {
		seat, player, err := parseSeatLine(line)
		if err != nil {
			return MatchOutcome{}, err
		}
		if filled[seat] {
			return MatchOutcome{}, fmt.Errorf("%w: seat %d reported twice", ErrMalformed, seat)
		}
		filled[seat] = true
		outcome.Players[seat] = player
	}

	var err error
	if outcome.Stock, err = lastInt(tail[4]); err != nil {
		return MatchOutcome{}, fmt.Errorf("stock: %w", err)
	}
	if outcome.MaxCuts, err = lastInt(tail[5]); err != nil {
		return MatchOutcome{}, fmt.Errorf("max_cuts: %w", err)
	}
	return outcome, nil
}

func trailingLines(s string) []string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func parseSeatLine(line string) (int, PlayerMatchResult, error) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return 0, PlayerMatchResult{}, fmt.Errorf("%w: %q", ErrMalformed, line)
	}
	score, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, PlayerMatchResult{}, fmt.Errorf("%w: score %q", ErrMalformed, fields[0])
	}
	seat, err := strconv.Atoi(fields[2])
	if err != nil || seat < 0 || seat > 3 {
		return 0, PlayerMatchResult{}, fmt.Errorf("%w: seat %q", ErrMalformed, fields[2])
	}
	remain, err := strconv.Atoi(fields[3])
	if err != nil {
		return 0, PlayerMatchResult{}, fmt.Errorf("%w: remain %q", ErrMalformed, fields[3])
	}
	return seat, PlayerMatchResult{Score: score, Remain: remain, Err: remain == ErrorRemain}, nil
}

func lastInt(line string) (int, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, fmt.Errorf("%w: empty line", ErrMalformed)
	}
	n, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, line)
	}
	return n, nil
}
