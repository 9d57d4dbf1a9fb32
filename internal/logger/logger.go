// Package logger provides the process-wide zap sugared logger.
// Level comes from LOG_LEVEL; ENVIRONMENT=production switches to JSON output.
package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger *zap.SugaredLogger
	once   sync.Once
)

// IsTest routes output to stdout with the development encoder. Set it from
// TestMain before the first GetLogger call.
var IsTest bool

func initLogger() {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(os.Getenv("LOG_LEVEL"))); err != nil {
		level = zapcore.InfoLevel
	}

	var cfg zap.Config
	switch {
	case IsTest:
		cfg = zap.NewDevelopmentConfig()
		cfg.OutputPaths = []string{"stdout"}
	case os.Getenv("ENVIRONMENT") == "production":
		cfg = zap.NewProductionConfig()
		cfg.OutputPaths = []string{"stdout"}
		cfg.ErrorOutputPaths = []string{"stderr"}
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	zl, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	logger = zl.Sugar()
}

// GetLogger returns the shared logger, initialising it on first use.
func GetLogger() *zap.SugaredLogger {
	once.Do(initLogger)
	return logger
}

// Close flushes buffered entries. Call before exit.
func Close() error {
	if logger == nil || IsTest {
		return nil
	}
	if err := logger.Sync(); err != nil {
		fmt.Fprintf(os.Stderr, "Error syncing logger: %v\n", err)
		return err
	}
	return nil
}

// MaskSecret keeps the first and last few characters of s.
func MaskSecret(s string) string {
	const keep = 3
	if s == "" {
		return ""
	}
	if len(s) < 2*keep+3 {
		return strings.Repeat("*", len(s))
	}
	return s[:keep] + "..." + s[len(s)-keep:]
}

// MaskConnectionString hides the password of a URL-style DSN.
func MaskConnectionString(dsn string) string {
	idx := strings.Index(dsn, "://")
	if idx == -1 {
		return dsn
	}
	rest := dsn[idx+3:]
	at := strings.Index(rest, "@")
	if at == -1 {
		return dsn
	}
	userInfo := rest[:at]
	if colon := strings.Index(userInfo, ":"); colon != -1 {
		return dsn[:idx+3] + userInfo[:colon] + ":***" + rest[at:]
	}
	return dsn
}
