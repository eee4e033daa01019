// Package store provides SQLite persistence for studies, their trials, and
// the per-entry and per-match records each trial produced.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/MJE43/daihinmin-arena/internal/result"
	"github.com/MJE43/daihinmin-arena/internal/tally"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var ErrNotFound = errors.New("not found")

// Trial states.
const (
	StateRunning  = "running"
	StateComplete = "complete"
	StateFailed   = "failed"
)

// --------- Data models ---------

type Study struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Seed       uint64    `json:"seed"`
	TargetID   string    `json:"target_id"`
	TargetPath string    `json:"target_path"`
	Direction  string    `json:"direction"`
	CreatedAt  time.Time `json:"created_at"`
	TrialCount int       `json:"trial_count"`
}

type Trial struct {
	ID            string           `json:"id"`
	StudyID       string           `json:"study_id"`
	Number        int              `json:"number"`
	State         string           `json:"state"`
	Params        map[string]int   `json:"params"`
	Fitness       *decimal.Decimal `json:"fitness,omitempty"`
	Stock         int              `json:"stock"`
	MaxCuts       int              `json:"max_cuts"`
	Matches       int              `json:"matches"`
	FailedMatches int              `json:"failed_matches"`
	Error         string           `json:"error,omitempty"`
	StartedAt     time.Time        `json:"started_at"`
	FinishedAt    *time.Time       `json:"finished_at,omitempty"`
	Entries       []TrialEntry     `json:"entries,omitempty"`
}

// TrialEntry is one entry's totals within a trial.
type TrialEntry struct {
	EntryID     string `json:"entry_id"`
	Score       int    `json:"score"`
	Remain      int    `json:"remain"`
	Err         bool   `json:"err"`
	Appearances int    `json:"appearances"`
	IsTarget    bool   `json:"is_target"`
}

// TrialResult is what a finished trial reports.
type TrialResult struct {
	Fitness  decimal.Decimal
	Stats    *tally.Stats
	TargetID string
}

// MatchRecord is one played match of a trial.
type MatchRecord struct {
	Iter    int                         `json:"iter"`
	Index   int                         `json:"index"`
	Seed    uint64                      `json:"seed"`
	Seats   [4]string                   `json:"seats"`
	OK      bool                        `json:"ok"`
	Players [4]result.PlayerMatchResult `json:"players"`
	Stock   int                         `json:"stock"`
	MaxCuts int                         `json:"max_cuts"`
	Error   string                      `json:"error,omitempty"`
}

// TrialsPage is a paginated trials response.
type TrialsPage struct {
	Trials     []Trial `json:"trials"`
	TotalCount int     `json:"totalCount"`
	Page       int     `json:"page"`
	PerPage    int     `json:"perPage"`
	TotalPages int     `json:"totalPages"`
}

// --------- Store ---------

type Store struct {
	db      *sql.DB
	retries uint64
	backoff time.Duration
}

// Open opens or creates the SQLite database at dbPath and migrates it.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite is not concurrent for writes
	s := &Store{db: db, retries: 5, backoff: 50 * time.Millisecond}
	if err := s.migrate(ctx); err != nil {
		return nil, multierr.Append(err, db.Close())
	}
	return s, nil
}

// dsn builds a SQLite URI for dbPath. The path is percent-encoded so '?',
// '#' and '%' in file names survive; SQLite decodes it when opening.
func dsn(dbPath string) string {
	u := url.URL{
		Scheme:   "file",
		Path:     filepath.ToSlash(dbPath),
		RawQuery: "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)",
	}
	switch {
	case !filepath.IsAbs(dbPath):
		// keep relative paths opaque: "file:dir/x.db", not "file:///dir/x.db"
		u.Opaque = (&url.URL{Path: u.Path}).EscapedPath()
		u.Path = ""
	case !strings.HasPrefix(u.Path, "/"):
		// drive letter paths: "file:///C:/dir/x.db"
		u.Path = "/" + u.Path
	}
	return u.String()
}

// Close optimizes and closes the database.
func (s *Store) Close() error {
	_, err := s.db.Exec("PRAGMA optimize")
	return multierr.Append(err, s.db.Close())
}

func (s *Store) migrate(ctx context.Context) error {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, sub)
	if err != nil {
		return fmt.Errorf("store: migrations: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// write runs fn and retries it while SQLite reports the database busy.
func (s *Store) write(ctx context.Context, fn func(ctx context.Context) error) error {
	b := retry.WithMaxRetries(s.retries, retry.NewExponential(s.backoff))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			if isBusyErr(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
}

// inTx runs fn inside one transaction under the busy retry policy.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return s.write(ctx, func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			return multierr.Append(err, tx.Rollback())
		}
		return tx.Commit()
	})
}

// --------- Studies ---------

// OpenStudy returns the study called name, creating it with seed and target
// when it does not exist yet. An existing study keeps its stored seed and
// target; created reports which case happened.
func (s *Store) OpenStudy(ctx context.Context, name string, seed uint64, targetID, targetPath string) (study *Study, created bool, err error) {
	existing, err := s.GetStudy(ctx, name)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	st := &Study{
		ID:         uuid.NewString(),
		Name:       name,
		Seed:       seed,
		TargetID:   targetID,
		TargetPath: targetPath,
		Direction:  "maximize",
		CreatedAt:  time.Now().UTC(),
	}
	err = s.write(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO studies(id, name, seed, target_id, target_path, direction, created_at)
			VALUES(?, ?, ?, ?, ?, ?, ?)`,
			st.ID, st.Name, int64(st.Seed), st.TargetID, st.TargetPath, st.Direction, st.CreatedAt)
		return err
	})
	if err != nil {
		if isConstraintErr(err) {
			// another process created it first
			existing, err := s.GetStudy(ctx, name)
			return existing, false, err
		}
		return nil, false, fmt.Errorf("store: create study: %w", err)
	}
	return st, true, nil
}

const studyColumns = `s.id, s.name, s.seed, s.target_id, s.target_path, s.direction, s.created_at,
	(SELECT COUNT(*) FROM trials t WHERE t.study_id = s.id)`

func scanStudy(sc interface{ Scan(...any) error }) (*Study, error) {
	var st Study
	var seed int64
	if err := sc.Scan(&st.ID, &st.Name, &seed, &st.TargetID, &st.TargetPath, &st.Direction, &st.CreatedAt, &st.TrialCount); err != nil {
		return nil, err
	}
	st.Seed = uint64(seed)
	return &st, nil
}

// GetStudy looks a study up by name.
func (s *Store) GetStudy(ctx context.Context, name string) (*Study, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+studyColumns+` FROM studies s WHERE s.name=?`, name)
	st, err := scanStudy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("study %q: %w", name, ErrNotFound)
	}
	return st, err
}

// ListStudies returns every study, newest first.
func (s *Store) ListStudies(ctx context.Context) ([]Study, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+studyColumns+` FROM studies s ORDER BY s.created_at DESC, s.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Study{}
	for rows.Next() {
		st, err := scanStudy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

// NextTrialNumber is max(number)+1 over the study's trials, 0 when empty.
func (s *Store) NextTrialNumber(ctx context.Context, studyID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(number), -1) + 1 FROM trials WHERE study_id=?`, studyID).Scan(&n)
	return n, err
}

// --------- Trials ---------

// CreateTrial inserts a running trial with its sampled parameters.
func (s *Store) CreateTrial(ctx context.Context, studyID string, number int, params map[string]int) (*Trial, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	t := &Trial{
		ID:        uuid.NewString(),
		StudyID:   studyID,
		Number:    number,
		State:     StateRunning,
		Params:    params,
		StartedAt: time.Now().UTC(),
	}
	err = s.write(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO trials(id, study_id, number, state, params_json, started_at)
			VALUES(?, ?, ?, ?, ?, ?)`,
			t.ID, t.StudyID, t.Number, t.State, string(data), t.StartedAt)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("store: create trial %d: %w", number, err)
	}
	return t, nil
}

// CompleteTrial stores the fitness, totals, and per-entry records of a trial.
func (s *Store) CompleteTrial(ctx context.Context, trialID string, res TrialResult) error {
	f, _ := res.Fitness.Float64()
	now := time.Now().UTC()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE trials SET state=?, fitness=?, fitness_exact=?, stock=?, max_cuts=?, matches=?,
				failed_matches=?, finished_at=?
			WHERE id=?`,
			StateComplete, f, res.Fitness.String(), res.Stats.Stock, res.Stats.MaxCuts,
			res.Stats.Matches, res.Stats.Failed, now, trialID)
		if err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO trial_entries(trial_id, entry_id, score, remain, err, appearances, is_target)
			VALUES(?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, e := range res.Stats.Entries() {
			if _, err := stmt.ExecContext(ctx, trialID, e.ID, e.Score, e.Remain, e.Err, e.Appearances, e.ID == res.TargetID); err != nil {
				return err
			}
		}
		return nil
	})
}

// FailTrial marks a trial failed with the reason.
func (s *Store) FailTrial(ctx context.Context, trialID string, reason error) error {
	msg := ""
	if reason != nil {
		msg = reason.Error()
	}
	return s.write(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx,
			`UPDATE trials SET state=?, error=?, finished_at=? WHERE id=?`,
			StateFailed, msg, time.Now().UTC(), trialID)
		return err
	})
}

// InsertMatches appends match records to a trial in one transaction.
func (s *Store) InsertMatches(ctx context.Context, trialID string, records []MatchRecord) error {
	if len(records) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO trial_matches(trial_id, iter, idx, seed, seats_json, ok, players_json, stock, max_cuts, error)
			VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range records {
			seats, _ := json.Marshal(r.Seats)
			players, _ := json.Marshal(r.Players)
			if _, err := stmt.ExecContext(ctx, trialID, r.Iter, r.Index, int64(r.Seed), string(seats), r.OK,
				string(players), r.Stock, r.MaxCuts, r.Error); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListMatches returns a trial's match records in play order.
func (s *Store) ListMatches(ctx context.Context, trialID string, limit, offset int) ([]MatchRecord, error) {
	if limit <= 0 || limit > 10000 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT iter, idx, seed, seats_json, ok, players_json, stock, max_cuts, error
		FROM trial_matches WHERE trial_id=? ORDER BY iter, idx LIMIT ? OFFSET ?`, trialID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []MatchRecord{}
	for rows.Next() {
		var r MatchRecord
		var seed int64
		var seats, players string
		if err := rows.Scan(&r.Iter, &r.Index, &seed, &seats, &r.OK, &players, &r.Stock, &r.MaxCuts, &r.Error); err != nil {
			return nil, err
		}
		r.Seed = uint64(seed)
		if err := json.Unmarshal([]byte(seats), &r.Seats); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(players), &r.Players); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const trialColumns = `id, study_id, number, state, params_json, fitness_exact, stock, max_cuts, matches,
	failed_matches, error, started_at, finished_at`

func scanTrial(sc interface{ Scan(...any) error }) (*Trial, error) {
	var t Trial
	var params string
	var fitness sql.NullString
	var finished sql.NullTime
	if err := sc.Scan(&t.ID, &t.StudyID, &t.Number, &t.State, &params, &fitness, &t.Stock, &t.MaxCuts,
		&t.Matches, &t.FailedMatches, &t.Error, &t.StartedAt, &finished); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(params), &t.Params); err != nil {
		return nil, fmt.Errorf("trial %s params: %w", t.ID, err)
	}
	if fitness.Valid {
		d, err := decimal.NewFromString(fitness.String)
		if err != nil {
			return nil, fmt.Errorf("trial %s fitness: %w", t.ID, err)
		}
		t.Fitness = &d
	}
	if finished.Valid {
		ft := finished.Time
		t.FinishedAt = &ft
	}
	return &t, nil
}

// GetTrial returns a trial with its per-entry records.
func (s *Store) GetTrial(ctx context.Context, id string) (*Trial, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+trialColumns+` FROM trials WHERE id=?`, id)
	t, err := scanTrial(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("trial %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if t.Entries, err = s.trialEntries(ctx, id); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Store) trialEntries(ctx context.Context, trialID string) ([]TrialEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entry_id, score, remain, err, appearances, is_target
		FROM trial_entries WHERE trial_id=? ORDER BY entry_id`, trialID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TrialEntry
	for rows.Next() {
		var e TrialEntry
		if err := rows.Scan(&e.EntryID, &e.Score, &e.Remain, &e.Err, &e.Appearances, &e.IsTarget); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListTrials returns a page of a study's trials ordered by number.
func (s *Store) ListTrials(ctx context.Context, studyID string, page, perPage int) (*TrialsPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 || perPage > 500 {
		perPage = 50
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trials WHERE study_id=?`, studyID).Scan(&total); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+trialColumns+` FROM trials WHERE study_id=?
		ORDER BY number LIMIT ? OFFSET ?`, studyID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trials := []Trial{}
	for rows.Next() {
		t, err := scanTrial(rows)
		if err != nil {
			return nil, err
		}
		trials = append(trials, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &TrialsPage{
		Trials:     trials,
		TotalCount: total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: (total + perPage - 1) / perPage,
	}, nil
}

// BestTrial is the complete trial with the highest fitness; ties go to the
// earliest trial.
func (s *Store) BestTrial(ctx context.Context, studyID string) (*Trial, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM trials WHERE study_id=? AND state=?
		ORDER BY fitness DESC, number ASC LIMIT 1`, studyID, StateComplete).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no complete trials: %w", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return s.GetTrial(ctx, id)
}

// CompletedFitness returns the fitness of every complete trial by number.
func (s *Store) CompletedFitness(ctx context.Context, studyID string) ([]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT fitness FROM trials WHERE study_id=? AND state=? ORDER BY number`, studyID, StateComplete)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var f float64
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// CountByState tallies a study's trials per state.
func (s *Store) CountByState(ctx context.Context, studyID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM trials WHERE study_id=? GROUP BY state`, studyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		out[state] = n
	}
	return out, rows.Err()
}

func isConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "constraint failed") || strings.Contains(msg, "unique constraint")
}

// isBusyErr matches SQLITE_BUSY and SQLITE_LOCKED as modernc reports them.
func isBusyErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "database table is locked")
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
