package logging

import (
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"chatwidget/pkg/config"
	"chatwidget/pkg/version"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelTrace sits below debug and is used for full request/response dumps.
const LevelTrace = slog.Level(-8)

const (
	maxLogSizeMB  = 5
	maxLogBackups = 5
	maxLogAgeDays = 14

	redacted = "[REDACTED]"
)

// Attribute keys whose values are never written out.
var secretKeys = map[string]bool{
	"api_key":       true,
	"authorization": true,
	"password":      true,
}

// Init configures slog for program to write to a rotating file, by default
// ~/.chatwidget/logs/<program>.log. On error the returned logger discards
// everything so the terminal stays clean.
func Init(cfg config.Config, program string) (*slog.Logger, error) {
	logPath := strings.TrimSpace(cfg.LogFile)
	if logPath == "" {
		logPath = defaultLogPath(program)
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0700); err != nil {
		return install(cfg, program, io.Discard), err
	}

	return install(cfg, program, &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    maxLogSizeMB,
		MaxBackups: maxLogBackups,
		MaxAge:     maxLogAgeDays,
		Compress:   true,
	}), nil
}

// InitWriter configures slog to write to out, for processes whose stderr is the
// log sink (the chat service).
func InitWriter(cfg config.Config, program string, out io.Writer) *slog.Logger {
	return install(cfg, program, out)
}

func install(cfg config.Config, program string, out io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       parseLogLevel(cfg.LogLevel),
		ReplaceAttr: replaceAttr,
	}
	logger := slog.New(newHandler(cfg.LogFormat, out, opts)).With(
		slog.String("app", program),
		slog.String("version", version.Summary()),
	)
	slog.SetDefault(logger)
	return logger
}

func defaultLogPath(program string) string {
	name := program + ".log"
	homeDir, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(homeDir) == "" {
		return filepath.Join(".chatwidget", "logs", name)
	}
	return filepath.Join(homeDir, ".chatwidget", "logs", name)
}

// replaceAttr names the trace level and scrubs secrets: keyed attributes are
// replaced outright, URLs lose their userinfo password.
func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if level, ok := a.Value.Any().(slog.Level); ok && level <= LevelTrace {
			return slog.String(slog.LevelKey, "TRACE")
		}
		return a
	}
	if secretKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, redacted)
	}
	if strings.HasSuffix(a.Key, "_url") && a.Value.Kind() == slog.KindString {
		return slog.String(a.Key, redactURL(a.Value.String()))
	}
	return a
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), redacted)
	}
	return u.String()
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return LevelTrace
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

func newHandler(format string, out io.Writer, opts *slog.HandlerOptions) slog.Handler {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "text":
		return slog.NewTextHandler(out, opts)
	default:
		return slog.NewJSONHandler(out, opts)
	}
}
