package reporting

import (
	"fmt"
	"strings"
	"time"
)

// LogLevel is the numeric severity of a log line. Higher values are more severe.
type LogLevel int

const (
	LogLevelTrace LogLevel = 5000
	LogLevelDebug LogLevel = 10000
	LogLevelInfo  LogLevel = 20000
	LogLevelWarn  LogLevel = 30000
	LogLevelError LogLevel = 40000
	LogLevelFatal LogLevel = 50000
)

var logLevelNames = map[string]LogLevel{
	"trace": LogLevelTrace,
	"debug": LogLevelDebug,
	"info":  LogLevelInfo,
	"warn":  LogLevelWarn,
	"error": LogLevelError,
	"fatal": LogLevelFatal,
}

// ParseLogLevel converts a level name ("error", "WARN", ...) into a LogLevel.
func ParseLogLevel(s string) (LogLevel, error) {
	if lvl, ok := logLevelNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return lvl, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

// String returns the level name.
func (l LogLevel) String() string {
	for name, lvl := range logLevelNames {
		if lvl == l {
			return strings.ToUpper(name)
		}
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// LogLine is a single log record attached to exactly one result.
type LogLine struct {
	ID       int64
	ResultID int64
	RunID    int64
	Level    LogLevel
	Message  string
	Time     time.Time
}

// AtLeast reports whether the line is at or above the given severity.
func (l LogLine) AtLeast(min LogLevel) bool { return l.Level >= min }
