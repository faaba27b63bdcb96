package normup

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
)

// Field represents a structured logging field
type Field struct {
	Key   string
	Value any
}

// Logger receives resolver, dispatch and statement logs
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// NoopLogger discards everything; it is the DB default
type NoopLogger struct{}

func (NoopLogger) Debug(string, ...Field) {}
func (NoopLogger) Info(string, ...Field)  {}
func (NoopLogger) Warn(string, ...Field)  {}
func (NoopLogger) Error(string, ...Field) {}

// Level is the minimum severity a StdLogger prints
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	}
	return "DEBUG"
}

// StdLogger writes "LEVEL msg key=value ..." lines through the standard log
// package. The zero value prints every level to stderr. A "stmt" field is
// printed on its own line so the statement can be pasted into a SQL shell.
type StdLogger struct {
	Min Level
	Out *log.Logger
}

func (s StdLogger) Debug(msg string, fields ...Field) { s.print(LevelDebug, msg, fields) }
func (s StdLogger) Info(msg string, fields ...Field)  { s.print(LevelInfo, msg, fields) }
func (s StdLogger) Warn(msg string, fields ...Field)  { s.print(LevelWarn, msg, fields) }
func (s StdLogger) Error(msg string, fields ...Field) { s.print(LevelError, msg, fields) }

var stdOut = log.New(os.Stderr, "normup ", log.LstdFlags)

func (s StdLogger) print(level Level, msg string, fields []Field) {
	if level < s.Min {
		return
	}
	out := s.Out
	if out == nil {
		out = stdOut
	}
	var stmt string
	rest := fields[:0:0]
	for _, f := range fields {
		if v, ok := f.Value.(string); ok && f.Key == "stmt" && v != "" {
			stmt = v
			continue
		}
		rest = append(rest, f)
	}
	line := level.String() + " " + msg
	if kv := formatFields(rest); kv != "" {
		line += " " + kv
	}
	out.Print(line)
	if stmt != "" {
		out.Print(stmt)
	}
}

// formatFields renders fields as key=value pairs; string slices are joined with commas
func formatFields(fields []Field) string {
	if len(fields) == 0 {
		return ""
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		var val string
		switch v := f.Value.(type) {
		case string:
			val = v
		case []string:
			val = strings.Join(v, ",")
		case map[string]any:
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			val = strings.Join(keys, ",")
		default:
			val = fmt.Sprintf("%v", v)
		}
		parts = append(parts, f.Key+"="+val)
	}
	return strings.Join(parts, " ")
}
