package logx

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"error": LevelError,
		"WARN":  LevelWarn,
		"info":  LevelInfo,
		"Debug": LevelDebug,
		"":      LevelInfo,
		"noise": LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "TOUR", LevelWarn)

	l.Infof("hidden %d", 1)
	l.Debugf("hidden %d", 2)
	l.Warnf("shown %d", 3)
	l.Errorf("shown %d", 4)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info/debug lines leaked: %q", out)
	}
	if !strings.Contains(out, "[TOUR ] WARN  shown 3") {
		t.Errorf("missing warn line: %q", out)
	}
	if !strings.Contains(out, "ERROR shown 4") {
		t.Errorf("missing error line: %q", out)
	}
}

func TestWithKeepsWriterAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "A", LevelInfo).With("B")
	l.Infof("hello")
	if !strings.Contains(buf.String(), "[B    ] INFO  hello") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestStdWritesAtWarn(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "API", LevelWarn).Std().Printf("http: TLS handshake error")
	if !strings.Contains(buf.String(), "[API  ] WARN  http: TLS handshake error") {
		t.Errorf("unexpected output %q", buf.String())
	}
	if strings.Count(buf.String(), "\n") != 1 {
		t.Errorf("want one line, got %q", buf.String())
	}
}
