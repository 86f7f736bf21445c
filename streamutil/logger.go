package streamutil

import (
	"fmt"
	"log/slog"
)

// Logger is the narrow surface lock, compactor and collection depend on, so
// tests can swap in NopLogger without pulling in a real slog handler.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// SlogLogger adapts *slog.Logger to Logger, formatting with fmt.Sprintf the
// way the rest of this codebase already builds error strings.
type SlogLogger struct {
	L *slog.Logger
}

func NewSlogLogger(l *slog.Logger) *SlogLogger { return &SlogLogger{L: l} }

func (s *SlogLogger) Infof(format string, args ...any)  { s.L.Info(fmt.Sprintf(format, args...)) }
func (s *SlogLogger) Warnf(format string, args ...any)  { s.L.Warn(fmt.Sprintf(format, args...)) }
func (s *SlogLogger) Errorf(format string, args ...any) { s.L.Error(fmt.Sprintf(format, args...)) }

type nopLogger struct{}

// NopLogger discards everything, the default when no logger is configured.
var NopLogger Logger = nopLogger{}

func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}
