// Package rvlog provides simple leveled logging for the cache subsystem,
// wrapping the standard library's log.Logger. No third-party structured
// logging library appears anywhere in the example corpus this module was
// built from; every repo that logs does so over the standard log/fmt
// packages, so this concern stays on the standard library by design.
package rvlog

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// Level is a logging severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger wraps log.Logger with a minimum level below which messages are
// dropped.
type Logger struct {
	logger *log.Logger
	level  Level
	mu     sync.Mutex
}

// Config configures a Logger.
type Config struct {
	Level  Level
	Output io.Writer
}

// DefaultConfig returns a Logger configuration writing Info and above to
// stderr.
func DefaultConfig() Config {
	return Config{Level: LevelInfo, Output: os.Stderr}
}

// New creates a Logger from the given configuration.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	return &Logger{
		logger: log.New(out, "", log.LstdFlags),
		level:  cfg.Level,
	}
}

func (l *Logger) log(level Level, format string, args ...any) {
	if level < l.level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Printf("[%s] %s", level, fmt.Sprintf(format, args...))
}

// Debugf logs at Debug level.
func (l *Logger) Debugf(format string, args ...any) { l.log(LevelDebug, format, args...) }

// Infof logs at Info level.
func (l *Logger) Infof(format string, args ...any) { l.log(LevelInfo, format, args...) }

// Warnf logs at Warn level.
func (l *Logger) Warnf(format string, args ...any) { l.log(LevelWarn, format, args...) }

// Errorf logs at Error level.
func (l *Logger) Errorf(format string, args ...any) { l.log(LevelError, format, args...) }
