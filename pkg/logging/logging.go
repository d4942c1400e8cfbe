// Package logging builds the zap loggers shared by every tierdb component.
//
// Components accept a *zap.Logger at construction time. A nil logger is
// replaced with a no-op logger via OrNop, so tests and embedders can skip
// logging setup entirely.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects the logger flavor.
type Options struct {
	// Level is one of debug, info, warn, error. Empty keeps the preset's level.
	Level string

	// Development selects zap's development preset (console encoder, stack
	// traces on warn). Production uses the JSON encoder.
	Development bool
}

// New creates a logger from opts.
func New(opts Options) (*zap.Logger, error) {
	var cfg zap.Config
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	if opts.Level != "" {
		lvl, err := ParseLevel(opts.Level)
		if err != nil {
			return nil, err
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

// ParseLevel converts a level name to a zapcore.Level.
func ParseLevel(s string) (zapcore.Level, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(s)))); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return lvl, nil
}

// Nop returns a logger that discards everything.
func Nop() *zap.Logger {
	return zap.NewNop()
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// BadgerAdapter routes badger's internal log lines into zap.
// It satisfies badger.Logger.
type BadgerAdapter struct {
	s *zap.SugaredLogger
}

// NewBadgerAdapter wraps l for use with badger.Options.WithLogger.
func NewBadgerAdapter(l *zap.Logger) *BadgerAdapter {
	return &BadgerAdapter{s: OrNop(l).WithOptions(zap.AddCallerSkip(1)).Sugar().Named("badger")}
}

func (a *BadgerAdapter) Errorf(format string, args ...interface{}) {
	a.s.Errorf(strings.TrimRight(format, "\n"), args...)
}

func (a *BadgerAdapter) Warningf(format string, args ...interface{}) {
	a.s.Warnf(strings.TrimRight(format, "\n"), args...)
}

func (a *BadgerAdapter) Infof(format string, args ...interface{}) {
	a.s.Infof(strings.TrimRight(format, "\n"), args...)
}

func (a *BadgerAdapter) Debugf(format string, args ...interface{}) {
	a.s.Debugf(strings.TrimRight(format, "\n"), args...)
}
