package log

import (
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"moul.io/zapfilter"
)

// Logger is a thin wrapper around zap.Logger. A process-wide default is
// created on startup and may be replaced via ResetDefault once the CLI
// has resolved the log configuration.
type Logger struct {
	l     *zap.Logger
	level zap.AtomicLevel
}

type (
	Field  = zap.Field
	Level  = zapcore.Level
	Option = zap.Option
)

const (
	DebugLevel = zapcore.DebugLevel
	InfoLevel  = zapcore.InfoLevel
	WarnLevel  = zapcore.WarnLevel
	ErrorLevel = zapcore.ErrorLevel
	FatalLevel = zapcore.FatalLevel
)

// field helpers, re-exported so callers only import this package
var (
	Skip       = zap.Skip
	Binary     = zap.Binary
	Bool       = zap.Bool
	Duration   = zap.Duration
	Float64    = zap.Float64
	Int        = zap.Int
	Int32      = zap.Int32
	Int64      = zap.Int64
	Uint32     = zap.Uint32
	String     = zap.String
	Stringer   = zap.Stringer
	Time       = zap.Time
	Any        = zap.Any
	ErrorField = zap.Error
	WithCaller = zap.WithCaller
	AddStack   = zap.AddStacktrace

	AddCallerSkip = zap.AddCallerSkip
)

func ParseLevel(text string) (Level, error) {
	return zapcore.ParseLevel(text)
}

func (l *Logger) Debug(msg string, fields ...Field) { l.l.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...Field)  { l.l.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.l.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...Field) { l.l.Error(msg, fields...) }
func (l *Logger) Fatal(msg string, fields ...Field) { l.l.Fatal(msg, fields...) }

func (l *Logger) Named(name string) *Logger {
	return &Logger{l: l.l.Named(name), level: l.level}
}

func (l *Logger) SetLevel(level Level) { l.level.SetLevel(level) }
func (l *Logger) Sync() error          { return l.l.Sync() }

// New creates a production logger (JSON encoding) writing to w.
func New(w io.Writer, level Level, opts ...Option) *Logger {
	return newLogger(w, level, zap.NewProductionEncoderConfig(), jsonEncoder, opts...)
}

// DevLogger creates a development logger (console encoding) writing to w.
func DevLogger(w io.Writer, level Level, opts ...Option) *Logger {
	return newLogger(w, level, zap.NewDevelopmentEncoderConfig(), consoleEncoder, opts...)
}

type encoderPicker func(cfg zapcore.EncoderConfig) zapcore.Encoder

func jsonEncoder(cfg zapcore.EncoderConfig) zapcore.Encoder {
	return zapcore.NewJSONEncoder(cfg)
}

func consoleEncoder(cfg zapcore.EncoderConfig) zapcore.Encoder {
	return zapcore.NewConsoleEncoder(cfg)
}

//nolint:whitespace // editor/linter
func newLogger(
	w io.Writer,
	level Level,
	encCfg zapcore.EncoderConfig,
	picker encoderPicker,
	opts ...Option,
) *Logger {
	if w == nil {
		w = os.Stderr
	}
	atomic := zap.NewAtomicLevelAt(level)
	core := zapcore.NewCore(picker(encCfg), zapcore.AddSync(w), atomic)
	if cfg := loadedConfig(); cfg != nil && len(cfg.Filters) > 0 {
		core = zapfilter.NewFilteringCore(core, zapfilter.MustParseRules(cfg.rules()))
	}
	return &Logger{l: zap.New(core, opts...), level: atomic}
}

var (
	std = New(os.Stderr, InfoLevel, WithCaller(true), AddCallerSkip(1))
	mu  sync.Mutex
)

// Default returns the process-wide default logger.
func Default() *Logger { return std }

// ResetDefault replaces the process-wide default logger.
func ResetDefault(l *Logger) {
	mu.Lock()
	defer mu.Unlock()
	std = l
}

// GetLogger returns a named child of the default logger.
func GetLogger(name string) *Logger { return std.Named(name) }

func Debug(msg string, fields ...Field) { std.Debug(msg, fields...) }
func Info(msg string, fields ...Field)  { std.Info(msg, fields...) }
func Warn(msg string, fields ...Field)  { std.Warn(msg, fields...) }
func Error(msg string, fields ...Field) { std.Error(msg, fields...) }
func Fatal(msg string, fields ...Field) { std.Fatal(msg, fields...) }

func Sync() error {
	return std.Sync()
}

func init() {
	if std == nil {
		fmt.Fprintln(os.Stderr, "could not initialize default logger")
		os.Exit(1)
	}
}
