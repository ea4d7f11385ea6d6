// Package logger wraps zap with the process-wide configuration and an HTTP
// request logging middleware.
package logger

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Logger wraps zap.Logger.
type Logger struct {
	*zap.Logger
}

// CreateLogger builds a production logger at the given level ("debug",
// "info", "warn", "error"). On a bad level the returned logger is still
// usable at the default level.
func CreateLogger(level string) (*Logger, error) {
	fallback, err := zap.NewProduction()
	if err != nil {
		log.Println(err)
		fallback = zap.NewNop()
	}
	out := &Logger{Logger: fallback}

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return out, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	zl, err := cfg.Build()
	if err != nil {
		return out, err
	}
	out.Logger = zl
	return out, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// Named returns a child logger with the given name segment.
func (l *Logger) Named(name string) *Logger {
	return &Logger{Logger: l.Logger.Named(name)}
}

// WithLogging returns middleware logging method, path, status, duration and
// response size of every request.
func (l *Logger) WithLogging() func(h http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				l.Info("served",
					zap.String("method", r.Method),
					zap.String("uri", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Duration("duration", time.Since(start)),
					zap.Int("size", ww.BytesWritten()))
			}()
			h.ServeHTTP(ww, r)
		}
		return http.HandlerFunc(fn)
	}
}
