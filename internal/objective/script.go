package objective

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/shopspring/decimal"

	"github.com/MJE43/daihinmin-arena/internal/logx"
	"github.com/MJE43/daihinmin-arena/internal/tally"
)

var (
	ErrNoFitnessFunc = errors.New("fitness() function is not defined")
	ErrScriptTimeout = errors.New("script timed out")
	ErrNotFinite     = errors.New("fitness is not a finite number")
)

const defaultScriptTimeout = time.Second

// Script is a user-supplied JavaScript reducer defining fitness(stats).
// The source is compiled once; every Reduce call gets its own runtime so
// concurrent trials never share VM state.
type Script struct {
	name    string
	program *goja.Program
	timeout time.Duration
	logger  *logx.Logger
}

// CompileScript parses source and checks that it defines fitness().
func CompileScript(name, source string, logger *logx.Logger) (*Script, error) {
	program, err := goja.Compile(name, source, false)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	if logger == nil {
		logger = logx.Discard()
	}
	s := &Script{name: name, program: program, timeout: defaultScriptTimeout, logger: logger}

	rt, err := s.load()
	if err != nil {
		return nil, err
	}
	if _, err := fitnessFunc(rt); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadScript reads and compiles a script file.
func LoadScript(path string, logger *logx.Logger) (*Script, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read objective script: %w", err)
	}
	return CompileScript(path, string(src), logger)
}

// WithTimeout sets the per-call time limit.
func (s *Script) WithTimeout(d time.Duration) *Script {
	c := *s
	c.timeout = d
	return &c
}

func (s *Script) Reduce(in Input) (decimal.Decimal, error) {
	rt, err := s.load()
	if err != nil {
		return decimal.Zero, err
	}
	fn, err := fitnessFunc(rt)
	if err != nil {
		return decimal.Zero, err
	}

	var out goja.Value
	err = s.runWithTimeout(rt, func() error {
		v, err := fn(goja.Undefined(), rt.ToValue(statsObject(in)))
		if err != nil {
			return fmt.Errorf("fitness() error: %w", err)
		}
		out = v
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	f := out.ToFloat()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrNotFinite, out.String())
	}
	return decimal.NewFromFloat(f), nil
}

// load creates a sandboxed runtime and runs the top level of the script.
func (s *Script) load() (*goja.Runtime, error) {
	rt := goja.New()
	s.injectGlobals(rt)
	err := s.runWithTimeout(rt, func() error {
		if _, err := rt.RunProgram(s.program); err != nil {
			return fmt.Errorf("script execution error: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rt, nil
}

func (s *Script) injectGlobals(rt *goja.Runtime) {
	logFn := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		s.logger.Debugf("script=%s %s", s.name, strings.Join(parts, " "))
		return goja.Undefined()
	}
	rt.Set("log", logFn)
	console := rt.NewObject()
	console.Set("log", logFn)
	rt.Set("console", console)

	rt.Set("require", goja.Undefined())
	rt.Set("fetch", goja.Undefined())
	rt.Set("XMLHttpRequest", goja.Undefined())
	rt.Set("eval", goja.Undefined())
	rt.Set("Function", goja.Undefined())
}

func (s *Script) runWithTimeout(rt *goja.Runtime, fn func() error) error {
	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(s.timeout):
		rt.Interrupt("script execution timeout")
		if err := <-done; err != nil {
			return fmt.Errorf("%w: %v", ErrScriptTimeout, err)
		}
		return ErrScriptTimeout
	}
}

func fitnessFunc(rt *goja.Runtime) (goja.Callable, error) {
	v := rt.Get("fitness")
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, ErrNoFitnessFunc
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, fmt.Errorf("fitness is not a function")
	}
	return fn, nil
}

func entryObject(e tally.EntryStats) map[string]any {
	return map[string]any{
		"id":          e.ID,
		"name":        e.Name,
		"score":       e.Score,
		"remain":      e.Remain,
		"err":         e.Err,
		"appearances": e.Appearances,
	}
}

func statsObject(in Input) map[string]any {
	var target any
	if in.Target != nil {
		target = entryObject(*in.Target)
	}
	entries := []any{}
	for _, e := range in.Stats.Entries() {
		entries = append(entries, entryObject(e))
	}
	return map[string]any{
		"stock":   in.Stats.Stock,
		"maxCuts": in.Stats.MaxCuts,
		"matches": in.Stats.Matches,
		"failed":  in.Stats.Failed,
		"target":  target,
		"entries": entries,
	}
}
