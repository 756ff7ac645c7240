package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Level is a log verbosity. Lower is more severe.
type Level int

const (
	LevelError Level = iota + 1
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

var levelNames = map[Level]string{
	LevelError: "error",
	LevelWarn:  "warn",
	LevelInfo:  "info",
	LevelDebug: "debug",
	LevelTrace: "trace",
}

func (l Level) String() string {
	if s, ok := levelNames[l]; ok {
		return s
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// ParseLevel accepts a level name or its number. Unknown input is info.
func ParseLevel(s string) Level {
	s = strings.ToLower(strings.TrimSpace(s))
	for lvl, name := range levelNames {
		if s == name || s == fmt.Sprint(int(lvl)) {
			return lvl
		}
	}
	if s == "warning" {
		return LevelWarn
	}
	return LevelInfo
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(b []byte) error {
	*l = ParseLevel(string(b))
	return nil
}

func (l Level) logrus() logrus.Level {
	switch l {
	case LevelError:
		return logrus.ErrorLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelDebug:
		return logrus.DebugLevel
	case LevelTrace:
		return logrus.TraceLevel
	default:
		return logrus.InfoLevel
	}
}

// Line is one recorded log line.
type Line struct {
	Time    time.Time      `json:"t"`
	Level   Level          `json:"lvl"`
	Message string         `json:"msg"`
	Context map[string]any `json:"ctx,omitempty"`
}

// Logger keeps a level-filtered, in-memory log of one run and mirrors
// every kept line to a logrus sink.
type Logger struct {
	mu        sync.Mutex
	threshold Level
	lines     []Line
	sink      logrus.FieldLogger
	now       func() time.Time
}

// NewLogger keeps lines at or above threshold severity. A nil sink only
// records in memory.
func NewLogger(threshold Level, sink logrus.FieldLogger) *Logger {
	if threshold < LevelError {
		threshold = LevelInfo
	}
	return &Logger{threshold: threshold, sink: sink, now: time.Now}
}

// Enabled reports whether lvl would be kept.
func (l *Logger) Enabled(lvl Level) bool {
	return lvl <= l.threshold
}

// Log records a line if lvl passes the threshold.
func (l *Logger) Log(lvl Level, msg string, ctx map[string]any) {
	if !l.Enabled(lvl) {
		return
	}
	l.mu.Lock()
	l.lines = append(l.lines, Line{Time: l.now().UTC(), Level: lvl, Message: msg, Context: ctx})
	l.mu.Unlock()

	if l.sink != nil {
		l.sink.WithFields(logrus.Fields(ctx)).Log(lvl.logrus(), msg)
	}
}

func (l *Logger) Error(msg string, ctx map[string]any) { l.Log(LevelError, msg, ctx) }
func (l *Logger) Warn(msg string, ctx map[string]any)  { l.Log(LevelWarn, msg, ctx) }
func (l *Logger) Info(msg string, ctx map[string]any)  { l.Log(LevelInfo, msg, ctx) }
func (l *Logger) Debug(msg string, ctx map[string]any) { l.Log(LevelDebug, msg, ctx) }
func (l *Logger) Trace(msg string, ctx map[string]any) { l.Log(LevelTrace, msg, ctx) }

// Lines returns a copy of the kept lines.
func (l *Logger) Lines() []Line {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Line(nil), l.lines...)
}

// MarshalJSON exports the kept lines as a JSON array.
func (l *Logger) MarshalJSON() ([]byte, error) {
	lines := l.Lines()
	if lines == nil {
		lines = []Line{}
	}
	return json.Marshal(lines)
}
