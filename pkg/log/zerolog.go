package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	pperrors "github.com/YuminosukeSato/ppgrid/pkg/errors"
)

// ZerologLogger implements Logger on top of zerolog.
type ZerologLogger struct {
	zl zerolog.Logger
}

// NewZerologLogger creates a JSON logger writing to w at the given level.
func NewZerologLogger(w io.Writer, level Level) *ZerologLogger {
	zl := zerolog.New(w).Level(toZerologLevel(level)).With().Timestamp().Logger()
	return &ZerologLogger{zl: zl}
}

// Debug implements Logger.Debug.
func (l *ZerologLogger) Debug(msg string, fields ...any) {
	l.emit(l.zl.Debug(), msg, fields)
}

// Info implements Logger.Info.
func (l *ZerologLogger) Info(msg string, fields ...any) {
	l.emit(l.zl.Info(), msg, fields)
}

// Warn implements Logger.Warn.
func (l *ZerologLogger) Warn(msg string, fields ...any) {
	l.emit(l.zl.Warn(), msg, fields)
}

// Error implements Logger.Error.
func (l *ZerologLogger) Error(msg string, fields ...any) {
	l.emit(l.zl.Error(), msg, fields)
}

// With implements Logger.With.
func (l *ZerologLogger) With(fields ...any) Logger {
	return &ZerologLogger{zl: l.zl.With().Fields(normalizeFields(fields)).Logger()}
}

// Enabled implements Logger.Enabled.
func (l *ZerologLogger) Enabled(_ context.Context, level Level) bool {
	return l.zl.GetLevel() <= toZerologLevel(level)
}

func (l *ZerologLogger) emit(e *zerolog.Event, msg string, fields []any) {
	if e == nil {
		return
	}
	fields = normalizeFields(fields)
	for i := 0; i+1 < len(fields); i += 2 {
		if err, ok := fields[i+1].(error); ok {
			if st := extractStacktrace(err); st != "" {
				e = e.Str(StacktraceKey, st)
			}
			if obj, ok := asObjectMarshaler(err); ok {
				e = e.Object(ErrorTypeKey, obj)
			}
		}
	}
	e.Fields(fields).Msg(msg)
}

// warn routes library warnings from pkg/errors into this logger.
func (l *ZerologLogger) warn(w error) {
	e := l.zl.Warn().Str(ComponentKey, "warnings")
	if obj, ok := w.(zerolog.LogObjectMarshaler); ok {
		e = e.Object("warning", obj)
	}
	e.Msg(w.Error())
}

// normalizeFields turns a leading error into an ErrorKey pair and drops a
// dangling key.
func normalizeFields(fields []any) []any {
	if len(fields) == 0 {
		return fields
	}
	if err, ok := fields[0].(error); ok {
		fields = append([]any{ErrorKey, err}, fields[1:]...)
	}
	if len(fields)%2 != 0 {
		fields = fields[:len(fields)-1]
	}
	out := make([]any, len(fields))
	for i := 0; i < len(fields); i += 2 {
		out[i] = fmt.Sprint(fields[i])
		out[i+1] = fields[i+1]
	}
	return out
}

func asObjectMarshaler(err error) (zerolog.LogObjectMarshaler, bool) {
	for e := err; e != nil; e = errors.UnwrapOnce(e) {
		if obj, ok := e.(zerolog.LogObjectMarshaler); ok {
			return obj, true
		}
	}
	return nil, false
}

func extractStacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// ParseLevel converts "debug", "info", "warn" or "error" into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, pperrors.NewValueError("ParseLevel", fmt.Sprintf("invalid log level %q", s))
	}
}

// ZerologProvider implements LoggerProvider.
type ZerologProvider struct {
	mu     sync.RWMutex
	w      io.Writer
	level  Level
	logger *ZerologLogger
}

// NewZerologProvider creates a provider writing JSON lines to w.
func NewZerologProvider(w io.Writer, level Level) *ZerologProvider {
	return &ZerologProvider{w: w, level: level, logger: NewZerologLogger(w, level)}
}

// GetLogger implements LoggerProvider.GetLogger.
func (p *ZerologProvider) GetLogger() Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.logger
}

// GetLoggerWithName implements LoggerProvider.GetLoggerWithName.
func (p *ZerologProvider) GetLoggerWithName(name string) Logger {
	return p.GetLogger().With(ComponentKey, name)
}

// SetLevel implements LoggerProvider.SetLevel.
func (p *ZerologProvider) SetLevel(level Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.level = level
	p.logger = NewZerologLogger(p.w, level)
}

// RouteWarnings sends pkg/errors warnings to this provider's logger.
func (p *ZerologProvider) RouteWarnings() {
	pperrors.SetZerologWarnFunc(func(w error) {
		p.mu.RLock()
		l := p.logger
		p.mu.RUnlock()
		l.warn(w)
	})
}

var (
	providerMu sync.RWMutex
	provider   LoggerProvider = NewZerologProvider(os.Stderr, LevelInfo)
)

// SetProvider replaces the process-wide provider.
func SetProvider(p LoggerProvider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	provider = p
}

// GetLogger returns the process-wide default logger.
func GetLogger() Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLogger()
}

// GetLoggerWithName returns a process-wide logger tagged with name.
func GetLoggerWithName(name string) Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLoggerWithName(name)
}

// SetLevel sets the level of the process-wide provider.
func SetLevel(level Level) {
	providerMu.RLock()
	defer providerMu.RUnlock()
	provider.SetLevel(level)
}
