// Package observability holds the process-wide CLI logger.
package observability

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the logger used by commands. It discards output until one of
// the Init functions runs.
var CLILogger = zap.NewNop()

// Log formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// InitCLILogger installs a console logger on stderr at info level, or debug
// when verbose is set.
func InitCLILogger(appName string, verbose bool) {
	level := "info"
	if verbose {
		level = "debug"
	}
	// Fixed arguments cannot fail.
	logger, _ := NewLogger(appName, level, FormatConsole, os.Stderr)
	CLILogger = logger
}

// Configure installs a logger built from level and format names.
func Configure(appName, level, format string) error {
	logger, err := NewLogger(appName, level, format, os.Stderr)
	if err != nil {
		return err
	}
	CLILogger = logger
	return nil
}

// NewLogger builds a zap logger writing to w.
//
// level is a zap level name (debug, info, warn, error). format is "console"
// or "json"; empty means console.
func NewLogger(appName, level, format string, w io.Writer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	switch strings.ToLower(format) {
	case "", FormatConsole:
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	case FormatJSON:
		enc = zapcore.NewJSONEncoder(encCfg)
	default:
		return nil, fmt.Errorf("invalid log format %q (want console or json)", format)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(w)), lvl)
	logger := zap.New(core)
	if appName != "" {
		logger = logger.Named(appName)
	}
	return logger, nil
}
