// Package logx provides the leveled, channel-tagged logger used across the arena.
package logx

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	reset  = "\x1b[0m"
	gray   = "\x1b[90m"
	cyan   = "\x1b[36m"
	yellow = "\x1b[33m"
	green  = "\x1b[32m"
	red    = "\x1b[31m"
)

// Level is a logging verbosity level.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// ParseLevel maps ERROR|WARN|INFO|DEBUG (case-insensitive) to a Level.
// Unknown values fall back to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return LevelError
	case "WARN", "WARNING":
		return LevelWarn
	case "DEBUG":
		return LevelDebug
	default:
		return LevelInfo
	}
}

func (l Level) String() string {
	switch l {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelDebug:
		return "DEBUG"
	default:
		return "INFO"
	}
}

func (l Level) color() string {
	switch l {
	case LevelError:
		return red
	case LevelWarn:
		return yellow
	case LevelDebug:
		return gray
	default:
		return green
	}
}

// Logger writes "[CHANNEL] LEVEL message" lines through a log.Logger.
type Logger struct {
	out     *log.Logger
	w       io.Writer
	channel string
	level   Level
	color   bool
}

// New creates a logger for the given channel. Color is enabled only when w is
// a terminal and NO_COLOR is unset.
func New(w io.Writer, channel string, level Level) *Logger {
	return &Logger{
		out:     log.New(w, "", log.LstdFlags|log.LUTC),
		w:       w,
		channel: channel,
		level:   level,
		color:   colorEnabled(w),
	}
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *Logger {
	return New(io.Discard, "", LevelError)
}

func colorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// With returns a logger sharing the writer and level under another channel.
func (l *Logger) With(channel string) *Logger {
	return &Logger{
		out:     l.out,
		w:       l.w,
		channel: channel,
		level:   l.level,
		color:   l.color,
	}
}

// Enabled reports whether messages at lvl are written.
func (l *Logger) Enabled(lvl Level) bool { return lvl <= l.level }

func (l *Logger) c(color, s string) string {
	if !l.color {
		return s
	}
	return color + s + reset
}

func (l *Logger) logf(lvl Level, format string, args ...any) {
	if !l.Enabled(lvl) {
		return
	}
	tag := ""
	if l.channel != "" {
		tag = l.c(cyan, fmt.Sprintf("[%-5s]", l.channel)) + " "
	}
	l.out.Printf("%s%s %s", tag, l.c(lvl.color(), fmt.Sprintf("%-5s", lvl)), fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...any) { l.logf(LevelError, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.logf(LevelWarn, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.logf(LevelInfo, format, args...) }
func (l *Logger) Debugf(format string, args ...any) { l.logf(LevelDebug, format, args...) }

// Std exposes a *log.Logger that writes through this logger at warn level,
// for libraries that want the stdlib type.
func (l *Logger) Std() *log.Logger {
	return log.New(writerFunc(func(p []byte) (int, error) {
		l.Warnf("%s", strings.TrimRight(string(p), "\n"))
		return len(p), nil
	}), "", 0)
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
