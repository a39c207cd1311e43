package kfmt

import "io"

// Level specifies the severity of a log message.
type Level uint8

// The supported log levels in increasing severity.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	logLevel = LevelInfo

	levelNames = [...]string{
		LevelDebug: "debug",
		LevelInfo:  "info",
		LevelWarn:  "warn",
		LevelError: "error",
	}
)

// SetLogLevel discards all future messages with a severity lower than l.
func SetLogLevel(l Level) {
	if l > LevelError {
		l = LevelError
	}
	logLevel = l
}

// ParseLevel maps a level name ("debug", "info", "warn", "error") to a Level.
func ParseLevel(name string) (Level, bool) {
	for l, levelName := range levelNames {
		if levelName == name {
			return Level(l), true
		}
	}
	return LevelInfo, false
}

// Logger emits messages tagged with the name of the kernel module that
// generated them. Each output line is prefixed with "[module] level: " so
// multi-line messages (e.g. register dumps) remain attributable.
type Logger struct {
	lw lineWriter
}

// NewLogger returns a Logger for the named module. Loggers are meant to be
// created once, as package-level variables.
func NewLogger(module string) *Logger {
	prefix := make([]byte, 0, len(module)+3)
	prefix = append(prefix, '[')
	prefix = append(prefix, module...)
	prefix = append(prefix, ']', ' ')
	return &Logger{lw: lineWriter{tag: prefix}}
}

// Debugf logs a message with LevelDebug.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logf(LevelDebug, format, args)
}

// Infof logs a message with LevelInfo.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.logf(LevelInfo, format, args)
}

// Warnf logs a message with LevelWarn.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logf(LevelWarn, format, args)
}

// Errorf logs a message with LevelError.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logf(LevelError, format, args)
}

func (l *Logger) logf(level Level, format string, args []interface{}) {
	if level < logLevel {
		return
	}

	state := outLock.acquire()
	l.lw.reset(sinkWriter{}, level)
	fprintf(&l.lw, format, args)
	fprintf(&l.lw, "\n", nil)
	outLock.release(state)
}

// sinkWriter forwards writes to the active output sink or the early ring
// buffer. Callers must hold outLock.
type sinkWriter struct{}

func (sinkWriter) Write(p []byte) (int, error) {
	if outputSink != nil {
		return outputSink.Write(p)
	}
	return earlyPrintBuffer.Write(p)
}

// Console returns an io.Writer that sends its output to the active output
// sink, or the early ring buffer if no sink is attached. It is meant to be
// passed to Fprintf and DumpTo style helpers.
func Console() io.Writer {
	return sinkWriter{}
}
