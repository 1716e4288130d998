package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// LogLevel represents the available logging levels
type LogLevel string

const (
	LogLevelError LogLevel = "error"
	LogLevelWarn  LogLevel = "warn"
	LogLevelInfo  LogLevel = "info"
	LogLevelDebug LogLevel = "debug"
)

// parseLogLevel converts a string to a LogLevel
func parseLogLevel(level string) (LogLevel, error) {
	switch strings.ToLower(level) {
	case "error":
		return LogLevelError, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "info":
		return LogLevelInfo, nil
	case "debug":
		return LogLevelDebug, nil
	default:
		return "", fmt.Errorf("invalid log level: %s (must be error, warn, info, or debug)", level)
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LogLevelError:
		return slog.LevelError
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelDebug:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// setupLogger creates a text logger writing to w.
func setupLogger(level LogLevel, w io.Writer) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level.slogLevel(),
	})
	return slog.New(handler)
}

const (
	logFilePrefix = "pcremote-"
	logFileExt    = ".log"
)

// openLogFile creates a new timestamped log file in dir, after pruning the directory
// so that together with the new file at most keep log files remain. keep == 0 disables
// the file entirely and returns a nil file.
func openLogFile(dir string, keep int, now time.Time) (*os.File, error) {
	if keep == 0 {
		return nil, nil
	}
	dir = ExpandPath(dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	if err := pruneLogFiles(dir, keep-1); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to remove old log files: %v\n", err)
	}

	name := logFilePrefix + now.Format("2006-01-02_15-04-05") + logFileExt
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}
	return f, nil
}

// pruneLogFiles removes the oldest log files in dir until at most keep remain.
func pruneLogFiles(dir string, keep int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var logs []os.FileInfo
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, logFilePrefix) || !strings.HasSuffix(name, logFileExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		logs = append(logs, info)
	}
	if len(logs) <= keep {
		return nil
	}

	// Oldest first; the timestamped names break ties.
	sort.Slice(logs, func(i, j int) bool {
		if logs[i].ModTime().Equal(logs[j].ModTime()) {
			return logs[i].Name() < logs[j].Name()
		}
		return logs[i].ModTime().Before(logs[j].ModTime())
	})

	var firstErr error
	for _, info := range logs[:len(logs)-keep] {
		if err := os.Remove(filepath.Join(dir, info.Name())); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
