package logging

import (
	"context"
	"log/slog"
	"os"
)

// Logger is the leveled logging capability the engine logs through.
// Implementations backed by other structured loggers only need to satisfy
// this surface.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	DebugCtx(ctx context.Context, msg string, args ...any)
	InfoCtx(ctx context.Context, msg string, args ...any)
	WarnCtx(ctx context.Context, msg string, args ...any)
	ErrorCtx(ctx context.Context, msg string, args ...any)
}

// DefaultLogger wraps an *slog.Logger and prefixes every message so engine
// output is easy to grep out of an application's combined log stream.
type DefaultLogger struct {
	logger *slog.Logger
}

// NewDefaultLogger returns a DefaultLogger writing text-formatted records
// to stderr at the given minimum level.
func NewDefaultLogger(level slog.Level) *DefaultLogger {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	return &DefaultLogger{logger: logger}
}

const prefix = "[modelsync] "

func (d *DefaultLogger) Debug(msg string, args ...any) { d.logger.Debug(prefix+msg, args...) }
func (d *DefaultLogger) Info(msg string, args ...any)  { d.logger.Info(prefix+msg, args...) }
func (d *DefaultLogger) Warn(msg string, args ...any)  { d.logger.Warn(prefix+msg, args...) }
func (d *DefaultLogger) Error(msg string, args ...any) { d.logger.Error(prefix+msg, args...) }

type defaultArgsKey struct{}

func getDefaultArgs(ctx context.Context) []any {
	args, _ := ctx.Value(defaultArgsKey{}).([]any)
	return args
}

// WithDefaultArgs attaches structured fields (e.g. a per-publish
// correlation id) to ctx so every *Ctx log call made while handling that
// context carries them automatically.
func WithDefaultArgs(ctx context.Context, args ...any) context.Context {
	merged := append(append([]any{}, getDefaultArgs(ctx)...), args...)
	return context.WithValue(ctx, defaultArgsKey{}, merged)
}

func (d *DefaultLogger) DebugCtx(ctx context.Context, msg string, args ...any) {
	d.logger.Debug(prefix+msg, append(args, getDefaultArgs(ctx)...)...)
}

func (d *DefaultLogger) InfoCtx(ctx context.Context, msg string, args ...any) {
	d.logger.Info(prefix+msg, append(args, getDefaultArgs(ctx)...)...)
}

func (d *DefaultLogger) WarnCtx(ctx context.Context, msg string, args ...any) {
	d.logger.Warn(prefix+msg, append(args, getDefaultArgs(ctx)...)...)
}

func (d *DefaultLogger) ErrorCtx(ctx context.Context, msg string, args ...any) {
	d.logger.Error(prefix+msg, append(args, getDefaultArgs(ctx)...)...)
}

// Nop discards every log call. Useful for tests that don't want engine
// logging in their output.
type Nop struct{}

func (Nop) Debug(string, ...any)                     {}
func (Nop) Info(string, ...any)                      {}
func (Nop) Warn(string, ...any)                      {}
func (Nop) Error(string, ...any)                     {}
func (Nop) DebugCtx(context.Context, string, ...any) {}
func (Nop) InfoCtx(context.Context, string, ...any)  {}
func (Nop) WarnCtx(context.Context, string, ...any)  {}
func (Nop) ErrorCtx(context.Context, string, ...any) {}
