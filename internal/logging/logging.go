// Package logging provides the leveled logger shared by every puppetext
// component.
//
// The logger keeps the shape the rest of the code base expects
// (Debug/Info/Warn/Error with printf-style arguments, WithField and
// WithComponent for context) and delegates encoding and level filtering to
// zap. A bounded tail of recent lines is retained so the "show connection
// logs" command can replay them without re-reading any file.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents the severity level of a log message.
type Level int

const (
	// LevelDebug is for detailed debugging information.
	LevelDebug Level = iota
	// LevelInfo is for general informational messages.
	LevelInfo
	// LevelWarn is for warning messages.
	LevelWarn
	// LevelError is for error messages.
	LevelError
)

// String returns the string representation of the log level.
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

// ParseLevel parses a level name. It accepts the editor service names
// (debug, verbose, normal, warning, error) as well as the usual
// debug/info/warn/error spellings. Unknown names map to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "verbose":
		return LevelDebug
	case "info", "normal":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func fromZapLevel(l zapcore.Level) Level {
	switch l {
	case zapcore.DebugLevel:
		return LevelDebug
	case zapcore.WarnLevel:
		return LevelWarn
	case zapcore.ErrorLevel, zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return LevelError
	default:
		return LevelInfo
	}
}

// Config configures the logger.
type Config struct {
	// Level is the minimum log level to output.
	Level Level
	// Output is where logs are written. Defaults to os.Stderr.
	Output io.Writer
	// Prefix is attached to every line as the "logger" name.
	Prefix string
	// TailLines is how many recent lines are retained for Recent.
	// Zero uses DefaultTailLines.
	TailLines int
}

// DefaultTailLines is the number of lines kept for Recent by default.
const DefaultTailLines = 500

// DefaultConfig returns the default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:     LevelInfo,
		Output:    os.Stderr,
		Prefix:    "puppet",
		TailLines: DefaultTailLines,
	}
}

// Logger provides structured, leveled logging.
// A nil *Logger is valid and discards everything.
type Logger struct {
	sugar *zap.SugaredLogger
	level zap.AtomicLevel
	tail  *tail
}

// New creates a new logger with the given configuration.
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	if cfg.TailLines <= 0 {
		cfg.TailLines = DefaultTailLines
	}

	level := zap.NewAtomicLevelAt(cfg.Level.zapLevel())
	t := newTail(cfg.TailLines)

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000")
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.EncodeCaller = nil
	encoderConfig.CallerKey = ""
	encoderConfig.StacktraceKey = ""

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(io.MultiWriter(cfg.Output, t)),
		level,
	)

	zl := zap.New(core)
	if cfg.Prefix != "" {
		zl = zl.Named(cfg.Prefix)
	}

	return &Logger{
		sugar: zl.Sugar(),
		level: level,
		tail:  t,
	}
}

// Null returns a logger that discards all output.
func Null() *Logger {
	return &Logger{
		sugar: zap.NewNop().Sugar(),
		level: zap.NewAtomicLevelAt(zapcore.ErrorLevel),
		tail:  newTail(1),
	}
}

// WithField returns a new logger with the given field added.
// The returned logger shares the level and the recent-lines tail.
func (l *Logger) WithField(key string, value any) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{
		sugar: l.sugar.With(key, value),
		level: l.level,
		tail:  l.tail,
	}
}

// WithFields returns a new logger with all the given fields added.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	if l == nil {
		return nil
	}
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{
		sugar: l.sugar.With(args...),
		level: l.level,
		tail:  l.tail,
	}
}

// WithComponent returns a new logger with the component field set.
func (l *Logger) WithComponent(component string) *Logger {
	return l.WithField("component", component)
}

// SetLevel sets the minimum log level for this logger and every logger
// derived from it.
func (l *Logger) SetLevel(level Level) {
	if l == nil {
		return
	}
	l.level.SetLevel(level.zapLevel())
}

// Level returns the current minimum level.
func (l *Logger) Level() Level {
	if l == nil {
		return LevelError
	}
	return fromZapLevel(l.level.Level())
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...any) {
	if l == nil {
		return
	}
	l.sugar.Debug(format(msg, args))
}

// Info logs an info message.
func (l *Logger) Info(msg string, args ...any) {
	if l == nil {
		return
	}
	l.sugar.Info(format(msg, args))
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, args ...any) {
	if l == nil {
		return
	}
	l.sugar.Warn(format(msg, args))
}

// Error logs an error message.
func (l *Logger) Error(msg string, args ...any) {
	if l == nil {
		return
	}
	l.sugar.Error(format(msg, args))
}

// Recent returns the most recent log lines, oldest first.
func (l *Logger) Recent() []string {
	if l == nil {
		return nil
	}
	return l.tail.lines()
}

// Sync flushes any buffered output.
func (l *Logger) Sync() error {
	if l == nil {
		return nil
	}
	return l.sugar.Sync()
}

func format(msg string, args []any) string {
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}
