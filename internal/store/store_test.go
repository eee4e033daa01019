package store

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/MJE43/daihinmin-arena/internal/result"
	"github.com/MJE43/daihinmin-arena/internal/schedule"
	"github.com/MJE43/daihinmin-arena/internal/tally"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test_arena.db")
	store, err := Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleStats() *tally.Stats {
	s := tally.New()
	s.AddOutcome([4]string{"aa", "bb", "cc", "dd"}, result.MatchOutcome{
		Players: [4]result.PlayerMatchResult{{Score: 3, Remain: 1}, {Score: 2}, {Score: 1}, {Remain: 3001, Err: true}},
		Stock:   10,
		MaxCuts: 2,
	})
	return s
}

func TestOpenStudyResumes(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	st, created, err := store.OpenStudy(ctx, "tune", math.MaxUint64, "target-id", "/bin/target")
	if err != nil || !created {
		t.Fatalf("OpenStudy = %v, created=%v", err, created)
	}
	if st.Seed != math.MaxUint64 {
		t.Errorf("Seed = %d", st.Seed)
	}

	again, created, err := store.OpenStudy(ctx, "tune", 1, "other", "/other")
	if err != nil || created {
		t.Fatalf("reopen = %v, created=%v", err, created)
	}
	if again.ID != st.ID || again.Seed != math.MaxUint64 || again.TargetID != "target-id" {
		t.Errorf("reopened study = %+v", again)
	}

	if _, err := store.GetStudy(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetStudy missing = %v", err)
	}
}

func TestTrialLifecycle(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	st, _, _ := store.OpenStudy(ctx, "s", 7, "aa", "")

	n, err := store.NextTrialNumber(ctx, st.ID)
	if err != nil || n != 0 {
		t.Fatalf("NextTrialNumber empty = %d, %v", n, err)
	}

	tr, err := store.CreateTrial(ctx, st.ID, 0, map[string]int{"cards_num": 5, "w0": 9})
	if err != nil {
		t.Fatalf("CreateTrial: %v", err)
	}
	if _, err := store.CreateTrial(ctx, st.ID, 0, nil); err == nil {
		t.Error("duplicate trial number accepted")
	}

	err = store.CompleteTrial(ctx, tr.ID, TrialResult{
		Fitness:  decimal.RequireFromString("-39.998"),
		Stats:    sampleStats(),
		TargetID: "aa",
	})
	if err != nil {
		t.Fatalf("CompleteTrial: %v", err)
	}

	got, err := store.GetTrial(ctx, tr.ID)
	if err != nil {
		t.Fatalf("GetTrial: %v", err)
	}
	if got.State != StateComplete || got.Fitness == nil || got.Fitness.String() != "-39.998" {
		t.Errorf("trial = %+v", got)
	}
	if got.Params["cards_num"] != 5 || got.Stock != 10 || got.MaxCuts != 2 || got.Matches != 1 {
		t.Errorf("trial totals = %+v", got)
	}
	if len(got.Entries) != 4 || !got.Entries[0].IsTarget || got.Entries[0].Score != 3 || !got.Entries[3].Err {
		t.Errorf("entries = %+v", got.Entries)
	}
	if got.FinishedAt == nil {
		t.Error("FinishedAt not set")
	}

	n, _ = store.NextTrialNumber(ctx, st.ID)
	if n != 1 {
		t.Errorf("NextTrialNumber = %d, want 1", n)
	}

	if _, err := store.GetTrial(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetTrial missing = %v", err)
	}
}

func TestBestTrialAndSummary(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	st, _, _ := store.OpenStudy(ctx, "s", 1, "aa", "")

	if _, err := store.BestTrial(ctx, st.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("BestTrial empty = %v", err)
	}
	empty, err := store.Summary(ctx, st.ID)
	if err != nil || empty.Complete != 0 || empty.Mean != 0 {
		t.Errorf("empty summary = %+v, %v", empty, err)
	}

	for i, f := range []string{"-40", "-10.5", "-25", "-10.5"} {
		tr, _ := store.CreateTrial(ctx, st.ID, i, map[string]int{})
		if err := store.CompleteTrial(ctx, tr.ID, TrialResult{Fitness: decimal.RequireFromString(f), Stats: tally.New()}); err != nil {
			t.Fatal(err)
		}
	}
	failed, _ := store.CreateTrial(ctx, st.ID, 4, map[string]int{})
	if err := store.FailTrial(ctx, failed.ID, errors.New("controller missing")); err != nil {
		t.Fatal(err)
	}
	_, _ = store.CreateTrial(ctx, st.ID, 5, map[string]int{})

	best, err := store.BestTrial(ctx, st.ID)
	if err != nil {
		t.Fatalf("BestTrial: %v", err)
	}
	if best.Number != 1 {
		t.Errorf("best = #%d, want #1 (earliest of the tie)", best.Number)
	}

	sum, err := store.Summary(ctx, st.ID)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.Complete != 4 || sum.Failed != 1 || sum.Running != 1 {
		t.Errorf("counts = %+v", sum)
	}
	if sum.Mean != -21.5 || sum.Median != -17.75 || sum.Min != -40 || sum.Max != -10.5 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.StdDev <= 0 {
		t.Errorf("StdDev = %v", sum.StdDev)
	}

	page, err := store.ListTrials(ctx, st.ID, 2, 4)
	if err != nil {
		t.Fatalf("ListTrials: %v", err)
	}
	if page.TotalCount != 6 || page.TotalPages != 2 || len(page.Trials) != 2 || page.Trials[0].Number != 4 {
		t.Errorf("page = %+v", page)
	}
	if page.Trials[0].State != StateFailed || page.Trials[0].Error != "controller missing" {
		t.Errorf("failed trial = %+v", page.Trials[0])
	}

	studies, err := store.ListStudies(ctx)
	if err != nil || len(studies) != 1 || studies[0].TrialCount != 6 {
		t.Errorf("ListStudies = %+v, %v", studies, err)
	}
}

func TestMatchRecorder(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	st, _, _ := store.OpenStudy(ctx, "s", 1, "aa", "")
	tr, _ := store.CreateTrial(ctx, st.ID, 0, map[string]int{})

	rec := NewMatchRecorder(ctx, store, tr.ID, 2)
	ok := result.Parsed{Outcome: result.MatchOutcome{Stock: 4, MaxCuts: 1}}
	bad := result.Parsed{Err: result.ErrTruncated}
	rec.MatchPlayed(0, 0, schedule.Match{Seats: [4]string{"a", "b", "c", "d"}, Seed: 0}, ok)
	rec.MatchPlayed(0, 1, schedule.Match{Seats: [4]string{"d", "c", "b", "a"}, Seed: 1}, bad)
	rec.MatchPlayed(1, 0, schedule.Match{Seats: [4]string{"a", "b", "c", "d"}, Seed: 2}, ok)
	if err := rec.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	got, err := store.ListMatches(ctx, tr.ID, 0, 0)
	if err != nil {
		t.Fatalf("ListMatches: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("matches = %d, want 3", len(got))
	}
	if !got[0].OK || got[0].Stock != 4 || got[1].OK || got[1].Error == "" || got[2].Seed != 2 {
		t.Errorf("records = %+v", got)
	}
	if got[1].Seats != [4]string{"d", "c", "b", "a"} {
		t.Errorf("seats = %v", got[1].Seats)
	}
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "arena.db")

	first, err := Open(ctx, dbPath)
	if err != nil {
		t.Fatal(err)
	}
	st, _, _ := first.OpenStudy(ctx, "s", 3, "aa", "")
	_, _ = first.CreateTrial(ctx, st.ID, 0, map[string]int{})
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second, err := Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	got, created, err := second.OpenStudy(ctx, "s", 99, "zz", "")
	if err != nil || created || got.Seed != 3 {
		t.Fatalf("resumed study = %+v, created=%v, %v", got, created, err)
	}
	if n, _ := second.NextTrialNumber(ctx, got.ID); n != 1 {
		t.Errorf("NextTrialNumber = %d, want 1", n)
	}
}

func TestIsBusyErr(t *testing.T) {
	if !isBusyErr(errors.New("database is locked (5) (SQLITE_BUSY)")) {
		t.Error("busy not detected")
	}
	if isBusyErr(errors.New("UNIQUE constraint failed")) || isBusyErr(nil) {
		t.Error("false positive")
	}
}

func TestOpenPathWithURISpecialChars(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("'?' is not a valid file name character")
	}
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "runs?v=1#a 100%")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	dbPath := filepath.Join(dir, "arena.db")

	first, err := Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, _, err := first.OpenStudy(ctx, "s", 3, "aa", ""); err != nil {
		t.Fatalf("OpenStudy: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("database not at the requested path: %v", err)
	}

	second, err := Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	if _, err := second.GetStudy(ctx, "s"); err != nil {
		t.Errorf("GetStudy after reopen: %v", err)
	}
}

func TestDSN(t *testing.T) {
	const q = "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	if got := dsn("arena.db"); got != "file:arena.db"+q {
		t.Errorf("relative dsn = %s", got)
	}
	if runtime.GOOS != "windows" {
		if got := dsn("/data/a?b#c.db"); got != "file:///data/a%3Fb%23c.db"+q {
			t.Errorf("absolute dsn = %s", got)
		}
	}
}
