// Package logging configures logrus for the server and adapts it to chi's
// request logger.
package logging

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/deepdive-md/deepdive/config"
	"github.com/deepdive-md/deepdive/internal/requestid"
)

// Setup applies level, format and output from cfg to the standard logrus
// logger. When LogFile is set, output goes to both stderr and a rotated file.
func Setup(cfg *config.Config) (*logrus.Logger, error) {
	logger := logrus.StandardLogger()

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	logger.SetLevel(level)

	switch cfg.LogFormat {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("invalid LOG_FORMAT %q", cfg.LogFormat)
	}

	if cfg.LogFile != "" {
		logger.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // MB
			MaxBackups: 10,
			MaxAge:     30, // days
			Compress:   true,
		}))
	}

	return logger, nil
}

// RequestLogger returns chi middleware that logs one line per request.
func RequestLogger(logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return middleware.RequestLogger(&formatter{logger: logger})
}

type formatter struct {
	logger logrus.FieldLogger
}

func (f *formatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &entry{
		logger: f.logger.WithFields(logrus.Fields{
			"request_id": requestid.FromContext(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"remote":     r.RemoteAddr,
		}),
	}
}

type entry struct {
	logger logrus.FieldLogger
}

func (e *entry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ interface{}) {
	l := e.logger.WithFields(logrus.Fields{
		"status":     status,
		"bytes":      bytes,
		"elapsed_ms": elapsed.Milliseconds(),
	})
	if status >= http.StatusInternalServerError {
		l.Warn("request completed")
		return
	}
	l.Info("request completed")
}

func (e *entry) Panic(v interface{}, stack []byte) {
	e.logger.WithFields(logrus.Fields{
		"panic": fmt.Sprintf("%+v", v),
		"stack": string(stack),
	}).Error("request panicked")
}
