// Package logging adapts zap to the auth.Logger interface.
package logging

import (
	"go.uber.org/zap"

	auth "github.com/goliatone/go-phone-auth"
)

// ZapLogger forwards key/value logging calls to a zap.SugaredLogger
type ZapLogger struct {
	s *zap.SugaredLogger
}

var _ auth.Logger = (*ZapLogger)(nil)

// NewZap builds a development or production zap logger
func NewZap(development bool) (*ZapLogger, error) {
	var (
		l   *zap.Logger
		err error
	)
	if development {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return Wrap(l), nil
}

// Wrap adapts an existing zap.Logger
func Wrap(l *zap.Logger) *ZapLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return &ZapLogger{s: l.Sugar()}
}

func (z *ZapLogger) Debug(msg string, args ...any) { z.s.Debugw(msg, args...) }
func (z *ZapLogger) Info(msg string, args ...any)  { z.s.Infow(msg, args...) }
func (z *ZapLogger) Warn(msg string, args ...any)  { z.s.Warnw(msg, args...) }
func (z *ZapLogger) Error(msg string, args ...any) { z.s.Errorw(msg, args...) }

// Named returns a child logger with name appended
func (z *ZapLogger) Named(name string) *ZapLogger {
	return &ZapLogger{s: z.s.Named(name)}
}

// Sync flushes buffered entries
func (z *ZapLogger) Sync() error {
	return z.s.Sync()
}
