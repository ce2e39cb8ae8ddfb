package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Logger is the leveled keyval logger used across the service
type Logger interface {
	Debug(msg string, keyvals ...interface{})
	Info(msg string, keyvals ...interface{})
	Warn(msg string, keyvals ...interface{})
	Error(msg string, keyvals ...interface{})
}

type logLevel int

const (
	debugLevel logLevel = iota
	infoLevel
	warnLevel
	errorLevel
)

type leveledLogger struct {
	out    *log.Logger
	errOut *log.Logger
	level  logLevel
}

// NewLogger creates a logger that writes at or above the given level.
// Unknown level strings fall back to info.
func NewLogger(level string) Logger {
	return NewLoggerTo(os.Stdout, os.Stderr, level)
}

// NewLoggerTo creates a logger with explicit writers. Errors go to errOut,
// everything else to out.
func NewLoggerTo(out, errOut io.Writer, level string) Logger {
	var l logLevel

	switch strings.ToLower(level) {
	case "debug":
		l = debugLevel
	case "info":
		l = infoLevel
	case "warn":
		l = warnLevel
	case "error":
		l = errorLevel
	default:
		l = infoLevel
	}

	return &leveledLogger{
		out:    log.New(out, "", log.Ldate|log.Ltime),
		errOut: log.New(errOut, "", log.Ldate|log.Ltime),
		level:  l,
	}
}

func (l *leveledLogger) Debug(msg string, keyvals ...interface{}) {
	if l.level <= debugLevel {
		l.out.Println("DEBUG: " + formatMsg(msg, keyvals...))
	}
}

func (l *leveledLogger) Info(msg string, keyvals ...interface{}) {
	if l.level <= infoLevel {
		l.out.Println("INFO: " + formatMsg(msg, keyvals...))
	}
}

func (l *leveledLogger) Warn(msg string, keyvals ...interface{}) {
	if l.level <= warnLevel {
		l.out.Println("WARN: " + formatMsg(msg, keyvals...))
	}
}

func (l *leveledLogger) Error(msg string, keyvals ...interface{}) {
	if l.level <= errorLevel {
		l.errOut.Println("ERROR: " + formatMsg(msg, keyvals...))
	}
}

// formatMsg appends keyvals to the message as key=value pairs. A dangling
// key with no value is rendered as key=missing rather than dropped.
func formatMsg(msg string, keyvals ...interface{}) string {
	if len(keyvals) == 0 {
		return msg
	}

	var b strings.Builder
	b.WriteString(msg)

	for i := 0; i < len(keyvals); i += 2 {
		key := fmt.Sprintf("%v", keyvals[i])
		value := "missing"

		if i+1 < len(keyvals) {
			value = fmt.Sprintf("%v", keyvals[i+1])
		}

		b.WriteString(" " + key + "=" + value)
	}

	return b.String()
}
