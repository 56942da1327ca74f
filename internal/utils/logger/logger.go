package logger

import (
	"sort"

	"go.uber.org/zap"

	"github.com/dwarvesf/faucet-swap-backend/internal/types/environments"
)

type Logger struct {
	wrappedLogger *zap.Logger
}

func New(env environments.Environment) *Logger {
	var cfg zap.Config

	switch env {
	case environments.Development:
		cfg = newDevelopmentLoggerConfig()
	case environments.Test:
		cfg = newTestLoggerConfig()
	case environments.Staging:
		cfg = newStagingLoggerConfig()
	default:
		cfg = newProductionLoggerConfig()
	}

	zapLogger, err := cfg.Build()
	if err != nil {
		panic(err)
	}

	return &Logger{
		wrappedLogger: zapLogger,
	}
}

// NewNop returns a logger that discards everything. Used by tests of other packages.
func NewNop() *Logger {
	return &Logger{wrappedLogger: zap.NewNop()}
}

// Named scopes the logger to a component, e.g. "listener" or "reconciler".
func (l *Logger) Named(component string) *Logger {
	return &Logger{wrappedLogger: l.wrappedLogger.Named(component)}
}

// With attaches fields to every entry written by the returned logger.
func (l *Logger) With(fields map[string]string) *Logger {
	return &Logger{wrappedLogger: l.wrappedLogger.With(transformStrMapToFields(fields)...)}
}

func (l *Logger) Debug(msg string, inputFields ...map[string]string) {
	l.wrappedLogger.Debug(msg, fieldsOf(inputFields)...)
}

func (l *Logger) Info(msg string, inputFields ...map[string]string) {
	l.wrappedLogger.Info(msg, fieldsOf(inputFields)...)
}

func (l *Logger) Warn(msg string, inputFields ...map[string]string) {
	l.wrappedLogger.Warn(msg, fieldsOf(inputFields)...)
}

func (l *Logger) Error(msg string, inputFields ...map[string]string) {
	l.wrappedLogger.Error(msg, fieldsOf(inputFields)...)
}

func (l *Logger) Fatal(msg string, inputFields ...map[string]string) {
	l.wrappedLogger.Fatal(msg, fieldsOf(inputFields)...)
}

// Sync flushes buffered entries; call before exit.
func (l *Logger) Sync() {
	_ = l.wrappedLogger.Sync()
}

// fieldsOf merges the maps in order; a later map overrides an earlier key.
func fieldsOf(inputFields []map[string]string) []zap.Field {
	switch len(inputFields) {
	case 0:
		return []zap.Field{}
	case 1:
		return transformStrMapToFields(inputFields[0])
	}

	merged := map[string]string{}
	for _, m := range inputFields {
		for k, v := range m {
			merged[k] = v
		}
	}
	return transformStrMapToFields(merged)
}

// transformStrMapToFields sorts by key so entries render deterministically.
func transformStrMapToFields(strMap map[string]string) []zap.Field {
	keys := make([]string, 0, len(strMap))
	for k := range strMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, zap.String(k, strMap[k]))
	}
	return fields
}
