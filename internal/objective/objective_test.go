package objective

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MJE43/daihinmin-arena/internal/result"
	"github.com/MJE43/daihinmin-arena/internal/tally"
)

func TestFitness(t *testing.T) {
	got := Fitness(10, 2)
	if !got.Equal(decimal.RequireFromString("-39.998")) {
		t.Errorf("Fitness(10, 2) = %s, want -39.998", got)
	}
	if !Fitness(0, 0).IsZero() {
		t.Errorf("Fitness(0, 0) = %s", Fitness(0, 0))
	}
	prev := Fitness(0, 3)
	for stock := 1; stock < 50; stock++ {
		f := Fitness(stock, 3)
		if !f.LessThan(prev) {
			t.Fatalf("fitness not decreasing in stock at %d", stock)
		}
		prev = f
	}
}

func sampleStats() *tally.Stats {
	s := tally.New()
	s.AddOutcome([4]string{"aa", "bb", "cc", "dd"}, result.MatchOutcome{
		Players: [4]result.PlayerMatchResult{{Score: 4, Remain: 10}, {Score: 3}, {Score: 2}, {Score: 1, Remain: 3001, Err: true}},
		Stock:   10,
		MaxCuts: 2,
	})
	s.Failed = 1
	return s
}

func TestDefaultReducer(t *testing.T) {
	got, err := Default{}.Reduce(Input{Stats: sampleStats()})
	if err != nil || !got.Equal(decimal.RequireFromString("-39.998")) {
		t.Errorf("Default = %s, %v", got, err)
	}
}

func TestScriptReduce(t *testing.T) {
	src := `
		function fitness(stats) {
			var bonus = stats.target ? stats.target.score * 100 : 0;
			return -stats.stock - stats.failed + bonus + stats.entries.length;
		}`
	s, err := CompileScript("fit.js", src, nil)
	if err != nil {
		t.Fatalf("CompileScript: %v", err)
	}

	stats := sampleStats()
	target, _ := stats.Entry("aa")

	got, err := s.Reduce(Input{Stats: stats, Target: &target})
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	// -10 - 1 + 400 + 4
	if !got.Equal(decimal.NewFromInt(393)) {
		t.Errorf("fitness = %s, want 393", got)
	}

	got, err = s.Reduce(Input{Stats: stats})
	if err != nil || !got.Equal(decimal.NewFromInt(-7)) {
		t.Errorf("fitness without target = %s, %v", got, err)
	}
}

func TestScriptErrors(t *testing.T) {
	if _, err := CompileScript("x.js", "var x = 1;", nil); !errors.Is(err, ErrNoFitnessFunc) {
		t.Errorf("missing fitness: %v", err)
	}
	if _, err := CompileScript("x.js", "function (", nil); err == nil {
		t.Error("syntax error accepted")
	}

	s, err := CompileScript("x.js", `function fitness(s) { return require("fs"); }`, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Reduce(Input{Stats: sampleStats()}); err == nil {
		t.Error("sandboxed require must fail")
	}

	s, _ = CompileScript("x.js", `function fitness(s) { return "abc"; }`, nil)
	if _, err := s.Reduce(Input{Stats: sampleStats()}); !errors.Is(err, ErrNotFinite) {
		t.Errorf("NaN fitness: %v", err)
	}
}

func TestScriptTimeout(t *testing.T) {
	s, err := CompileScript("loop.js", `function fitness(s) { for (;;) {} }`, nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.WithTimeout(50 * time.Millisecond).Reduce(Input{Stats: sampleStats()})
	if !errors.Is(err, ErrScriptTimeout) {
		t.Errorf("err = %v, want timeout", err)
	}
}

func TestLoadScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fit.js")
	if err := os.WriteFile(path, []byte(`function fitness(s) { return s.maxCuts * 0.5; }`), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := LoadScript(path, nil)
	if err != nil {
		t.Fatalf("LoadScript: %v", err)
	}
	got, err := s.Reduce(Input{Stats: sampleStats()})
	if err != nil || !got.Equal(decimal.NewFromInt(1)) {
		t.Errorf("fitness = %s, %v", got, err)
	}
	if _, err := LoadScript(filepath.Join(t.TempDir(), "none.js"), nil); err == nil {
		t.Error("missing file accepted")
	}
}
