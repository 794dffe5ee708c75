package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/angelmondragon/homecook-backend/pkg/env"
	pkgerrors "github.com/angelmondragon/homecook-backend/pkg/errors"
)

// Options configures the structured logger. Format is "json" or "console";
// empty falls back to LOG_FORMAT. Fields are stamped on every entry.
type Options struct {
	ServiceName string
	Level       zerolog.Level
	WarnStack   bool
	Format      string
	Fields      map[string]any
	Output      io.Writer
}

type Logger struct {
	base      *zerolog.Logger
	warnStack bool
}

type ctxKey struct{}

func New(opts Options) *Logger {
	if opts.Level == zerolog.NoLevel {
		opts.Level = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano

	builder := zerolog.New(writerFor(opts)).
		With().
		Timestamp().
		Str("service", opts.ServiceName)
	for _, k := range sortedKeys(opts.Fields) {
		builder = builder.Interface(k, opts.Fields[k])
	}
	base := builder.Logger().Level(opts.Level)

	return &Logger{base: &base, warnStack: opts.WarnStack}
}

func writerFor(opts Options) io.Writer {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	format := opts.Format
	if format == "" {
		format = env.Get("LOG_FORMAT", "json")
	}
	if !strings.EqualFold(format, "console") {
		return out
	}
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "15:04:05",
		NoColor:    env.Bool("LOG_NO_COLOR", false),
	}
}

func sortedKeys(fields map[string]any) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseLevel falls back to info for empty or unknown values.
func ParseLevel(value string) zerolog.Level {
	levelString := strings.ToLower(strings.TrimSpace(value))
	if levelString == "" {
		return zerolog.InfoLevel
	}
	if lvl, err := zerolog.ParseLevel(levelString); err == nil && lvl != zerolog.NoLevel {
		return lvl
	}
	return zerolog.InfoLevel
}

func (l *Logger) loggerFromContext(ctx context.Context) *zerolog.Logger {
	if ctx == nil {
		return l.base
	}
	if entry, ok := ctx.Value(ctxKey{}).(*zerolog.Logger); ok {
		return entry
	}
	return l.base
}

func (l *Logger) attach(ctx context.Context, entry zerolog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey{}, &entry)
}

func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	entry := l.loggerFromContext(ctx)
	return l.attach(ctx, entry.With().Interface(key, value).Logger())
}

// WithFields binds fields in key order so output is stable across runs.
func (l *Logger) WithFields(ctx context.Context, fields map[string]any) context.Context {
	builder := l.loggerFromContext(ctx).With()
	for _, k := range sortedKeys(fields) {
		builder = builder.Interface(k, fields[k])
	}
	return l.attach(ctx, builder.Logger())
}

func (l *Logger) WithRequestID(ctx context.Context, requestID string) context.Context {
	return l.WithField(ctx, "request_id", requestID)
}

func (l *Logger) WithOrderID(ctx context.Context, orderID string) context.Context {
	return l.WithField(ctx, "order_id", orderID)
}

func (l *Logger) WithProducerID(ctx context.Context, producerID string) context.Context {
	return l.WithField(ctx, "producer_id", producerID)
}

func (l *Logger) WithActorRole(ctx context.Context, role string) context.Context {
	return l.WithField(ctx, "actor_role", role)
}

func (l *Logger) Debug(ctx context.Context, msg string) {
	l.loggerFromContext(ctx).Debug().Msg(msg)
}

func (l *Logger) Info(ctx context.Context, msg string) {
	l.loggerFromContext(ctx).Info().Msg(msg)
}

func (l *Logger) Warn(ctx context.Context, msg string) {
	event := l.loggerFromContext(ctx).Warn()
	if l.warnStack {
		event = event.Str("stack", stackTrace())
	}
	event.Msg(msg)
}

// Error logs err with a stack trace. Typed errors that retrying cannot fix
// (state conflicts, forbidden actors, validation) are business refusals and
// drop to warn without a stack.
func (l *Logger) Error(ctx context.Context, msg string, err error) {
	entry := l.loggerFromContext(ctx)
	typed := pkgerrors.As(err)
	if typed != nil && !pkgerrors.Retryable(err) {
		entry.Warn().Err(err).Str("error_code", string(typed.Code())).Msg(msg)
		return
	}

	event := entry.Error()
	if err != nil {
		event = event.Err(err)
	}
	if typed != nil {
		event = event.Str("error_code", string(typed.Code()))
	}
	event.Str("stack", stackTrace()).Msg(msg)
}

// stackTrace drops the frames belonging to this package.
func stackTrace() string {
	lines := strings.Split(strings.TrimSpace(string(debug.Stack())), "\n")
	if len(lines) == 0 {
		return ""
	}
	out := []string{lines[0]}
	skipping := true
	for i := 1; i+1 < len(lines); i += 2 {
		fn := lines[i]
		if skipping && (strings.HasPrefix(fn, "runtime/debug.") ||
			strings.Contains(fn, "/pkg/logger.stackTrace") ||
			strings.Contains(fn, "/pkg/logger.(*Logger).")) {
			continue
		}
		skipping = false
		out = append(out, lines[i], lines[i+1])
	}
	return strings.Join(out, "\n")
}
