// Package logging configures logrus and adapts it to gin and pgx.
package logging

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/tracelog"
	log "github.com/sirupsen/logrus"
)

// New returns a logger with the given level ("debug", "info", ...) and
// format ("text" or "json").
func New(level, format string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	logger := log.New()
	logger.SetLevel(lvl)
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&log.JSONFormatter{})
	default:
		return nil, fmt.Errorf("log format must be text or json, got %q", format)
	}
	return logger, nil
}

// Middleware logs one line per request. 5xx responses log at error level,
// 4xx at warn, everything else at info.
func Middleware(logger log.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		entry := logger.WithFields(log.Fields{
			"method":    c.Request.Method,
			"path":      path,
			"status":    c.Writer.Status(),
			"latency":   time.Since(start).String(),
			"client_ip": c.ClientIP(),
			"bytes":     c.Writer.Size(),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			entry.Error("request")
		case status >= 400:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
	}
}

// QueryTracer returns a pgx tracer that logs SQL through logger at debug level.
func QueryTracer(logger log.FieldLogger) *tracelog.TraceLog {
	return &tracelog.TraceLog{
		Logger: tracelog.LoggerFunc(func(_ context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
			entry := logger.WithFields(log.Fields(data))
			switch level {
			case tracelog.LogLevelError:
				entry.Error(msg)
			case tracelog.LogLevelWarn:
				entry.Warn(msg)
			case tracelog.LogLevelInfo, tracelog.LogLevelDebug:
				entry.Debug(msg)
			default:
				entry.Trace(msg)
			}
		}),
		LogLevel: tracelog.LogLevelDebug,
	}
}
