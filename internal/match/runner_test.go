package match

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"
	"time"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell controllers need a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "controller.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestInvocationArgs(t *testing.T) {
	inv := NewInvocation("ctl.py", []string{"python3"}, [4]string{"/e/a", "/e/b", "/e/c", "/e/d"}, 42)

	want := []string{
		"python3", "ctl.py",
		"0", "/e/a 42",
		"1", "/e/b 42",
		"2", "/e/c 42",
		"3", "/e/d 42",
		"--seed", "42", "--show",
	}
	if got := inv.Args(); !reflect.DeepEqual(got, want) {
		t.Errorf("Args = %q\nwant   %q", got, want)
	}

	inv.Show = false
	inv.Interpreter = nil
	args := inv.Args()
	if args[0] != "ctl.py" || args[len(args)-1] != "42" {
		t.Errorf("Args without show/interpreter = %q", args)
	}
}

func TestInvocationString(t *testing.T) {
	inv := NewInvocation("ctl", nil, [4]string{"a", "b", "c", "d"}, 7)
	s := inv.String()
	if !strings.Contains(s, `0 "a 7"`) || !strings.HasSuffix(s, "--seed 7 --show") {
		t.Errorf("String = %s", s)
	}
}

func TestRunnerCapturesOutputOnFailure(t *testing.T) {
	ctl := writeScript(t, `echo "seat0=$2"
echo "oops" >&2
exit 3
`)
	r := NewRunner("", 0)

	out, err := r.Run(context.Background(), NewInvocation(ctl, nil, [4]string{"p0", "p1", "p2", "p3"}, 5))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", out.ExitCode)
	}
	if strings.TrimSpace(out.Stdout) != "seat0=p0 5" {
		t.Errorf("Stdout = %q", out.Stdout)
	}
	if strings.TrimSpace(out.Stderr) != "oops" {
		t.Errorf("Stderr = %q", out.Stderr)
	}
	if out.TimedOut {
		t.Error("unexpected timeout")
	}
}

func TestRunnerUsesWorkingDir(t *testing.T) {
	ctl := writeScript(t, "pwd\n")
	dir := t.TempDir()

	out, err := NewRunner(dir, 0).Run(context.Background(), NewInvocation(ctl, nil, [4]string{}, 0))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got, _ := filepath.EvalSymlinks(strings.TrimSpace(out.Stdout))
	want, _ := filepath.EvalSymlinks(dir)
	if got != want {
		t.Errorf("pwd = %q, want %q", got, want)
	}
}

func TestRunnerTimeout(t *testing.T) {
	ctl := writeScript(t, "exec sleep 5\n")
	r := NewRunner("", 100*time.Millisecond)

	start := time.Now()
	out, err := r.Run(context.Background(), NewInvocation(ctl, nil, [4]string{}, 0))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !out.TimedOut {
		t.Error("expected TimedOut")
	}
	if time.Since(start) > 4*time.Second {
		t.Errorf("timeout not enforced, took %v", time.Since(start))
	}
}

func TestRunnerMissingController(t *testing.T) {
	r := NewRunner("", 0)
	_, err := r.Run(context.Background(), NewInvocation(filepath.Join(t.TempDir(), "absent"), nil, [4]string{}, 0))
	if err == nil {
		t.Fatal("expected start error")
	}
}
