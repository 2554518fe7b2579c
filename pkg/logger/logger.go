package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Redacted replaces the value of any attribute whose key names a secret.
const Redacted = "[REDACTED]"

// secretKeys are attribute keys that never reach a log line in clear text:
// witness and attester keys, API tokens, and connection strings with passwords.
var secretKeys = map[string]struct{}{
	"secret_key":      {},
	"attestation_key": {},
	"auth_token":      {},
	"password":        {},
	"dsn":             {},
	"url":             {},
}

// Config describes how the application logger should behave.
type Config struct {
	Level       string
	Format      string
	OutputPaths []string
	// Service 写入每条日志的 service 字段，为空时省略。
	Service string
	// Redact 追加需要脱敏的字段名。
	Redact []string
	Audit  AuditConfig
}

// AuditConfig controls audit log output behaviour.
type AuditConfig struct {
	Enabled    bool
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

var (
	mu            sync.Mutex
	defaultLogger *slog.Logger
	auditLogger   *slog.Logger
	closers       []io.Closer
)

// Init configures the global logger instances. The first successful call wins;
// later calls are no-ops.
func Init(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()
	if defaultLogger != nil {
		return nil
	}

	redact := redactor(cfg.Redact)
	handler, err := buildHandler(cfg.Format, cfg.OutputPaths, &slog.HandlerOptions{
		Level:       parseLevel(cfg.Level),
		AddSource:   true,
		ReplaceAttr: redact,
	})
	if err != nil {
		return err
	}
	base := slog.New(handler)
	if cfg.Service != "" {
		base = base.With(slog.String("service", cfg.Service))
	}

	audit := base.With(slog.String("stream", "audit"))
	if cfg.Audit.Enabled {
		a, err := buildAuditLogger(cfg.Audit, redact)
		if err != nil {
			return err
		}
		audit = a
		if cfg.Service != "" {
			audit = audit.With(slog.String("service", cfg.Service))
		}
	}
	defaultLogger, auditLogger = base, audit
	return nil
}

func buildHandler(format string, outputs []string, opts *slog.HandlerOptions) (slog.Handler, error) {
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}
	writers := make([]io.Writer, 0, len(outputs))
	for _, out := range outputs {
		writer, closer, err := openWriter(out)
		if err != nil {
			return nil, err
		}
		if closer != nil {
			closers = append(closers, closer)
		}
		writers = append(writers, writer)
	}

	writer := writers[0]
	if len(writers) > 1 {
		writer = io.MultiWriter(writers...)
	}
	if strings.EqualFold(format, "text") {
		return slog.NewTextHandler(writer, opts), nil
	}
	return slog.NewJSONHandler(writer, opts), nil
}

// buildAuditLogger 审计日志固定为 JSON，经 lumberjack 按大小轮转。
func buildAuditLogger(cfg AuditConfig, redact func([]string, slog.Attr) slog.Attr) (*slog.Logger, error) {
	if cfg.Path == "" {
		return nil, errors.New("audit log path cannot be empty when enabled")
	}
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 100
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 7
	}
	if cfg.MaxAgeDays <= 0 {
		cfg.MaxAgeDays = 30
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit log directory: %w", err)
	}
	writer := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	closers = append(closers, writer)
	handler := slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: slog.LevelInfo, ReplaceAttr: redact})
	return slog.New(handler).With(slog.String("stream", "audit")), nil
}

// redactor returns a ReplaceAttr hook that masks secretKeys plus extra.
func redactor(extra []string) func([]string, slog.Attr) slog.Attr {
	keys := make(map[string]struct{}, len(secretKeys)+len(extra))
	for k := range secretKeys {
		keys[k] = struct{}{}
	}
	for _, k := range extra {
		keys[strings.ToLower(k)] = struct{}{}
	}
	return func(_ []string, a slog.Attr) slog.Attr {
		if _, ok := keys[strings.ToLower(a.Key)]; ok && a.Value.Kind() != slog.KindGroup {
			return slog.String(a.Key, Redacted)
		}
		return a
	}
}

func openWriter(path string) (io.Writer, io.Closer, error) {
	switch strings.ToLower(path) {
	case "stdout":
		return os.Stdout, nil, nil
	case "stderr":
		return os.Stderr, nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return file, file, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// L returns the structured logger instance.
func L() *slog.Logger {
	mu.Lock()
	l := defaultLogger
	mu.Unlock()
	if l != nil {
		return l
	}
	if err := Init(Config{}); err != nil {
		return slog.Default()
	}
	mu.Lock()
	defer mu.Unlock()
	return defaultLogger
}

// Audit returns the audit logger.
func Audit() *slog.Logger {
	mu.Lock()
	a := auditLogger
	mu.Unlock()
	if a == nil {
		return L()
	}
	return a
}

// Sync flushes buffered log entries to their outputs.
func Sync() error {
	mu.Lock()
	defer mu.Unlock()
	var err error
	for _, closer := range closers {
		err = errors.Join(err, closer.Close())
	}
	closers = nil
	return err
}

// Named returns a child logger tagged with the component name.
func Named(name string) *slog.Logger {
	return L().With(slog.String("component", name))
}

// reset drops the configured loggers so Init can run again.
func reset() {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger, auditLogger = nil, nil
}
