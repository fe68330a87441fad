package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/ormasoftchile/wizard/pkg/schema"
)

// Config holds settings read from the environment and the project manifest.
// Command-line flags override it.
type Config struct {
	LogLevel  slog.Level
	LogFormat string // text, json
	LogFile   string // empty: stderr
	TraceDir  string
	UI        string // tui, repl, prompt
}

// Environment variables read by loadConfig.
const (
	envLogLevel  = "WIZARD_LOG_LEVEL"
	envLogFormat = "WIZARD_LOG_FORMAT"
	envLogFile   = "WIZARD_LOG_FILE"
	envTraceDir  = "WIZARD_TRACE_DIR"
	envUI        = "WIZARD_UI"
)

var uiModes = []string{"tui", "repl", "prompt"}

// loadDotEnv loads a .env file from the working directory if present.
// Variables already set in the environment win.
func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: .env: %v\n", err)
	}
}

// loadConfig builds the configuration from getenv, falling back to the
// project manifest defaults and then to built-in defaults.
func loadConfig(getenv func(string) string, project *schema.Project) (Config, error) {
	cfg := Config{
		LogLevel:  slog.LevelWarn,
		LogFormat: "text",
		UI:        "tui",
	}
	if project != nil {
		if project.Defaults.UI != "" {
			cfg.UI = project.Defaults.UI
		}
		cfg.TraceDir = project.Defaults.TraceDir
	}

	if v := getenv(envLogLevel); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return cfg, fmt.Errorf("%s: %w", envLogLevel, err)
		}
	}
	if v := getenv(envLogFormat); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}
	if v := getenv(envLogFile); v != "" {
		cfg.LogFile = v
	}
	if v := getenv(envTraceDir); v != "" {
		cfg.TraceDir = v
	}
	if v := getenv(envUI); v != "" {
		cfg.UI = strings.ToLower(v)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%s: unknown log format %q (want text or json)", envLogFormat, c.LogFormat)
	}
	return checkUI(c.UI)
}

func checkUI(ui string) error {
	for _, m := range uiModes {
		if ui == m {
			return nil
		}
	}
	return fmt.Errorf("unknown ui %q (want %s)", ui, strings.Join(uiModes, ", "))
}

// newLogger builds the operator logger. Logs go to LogFile when set,
// otherwise to fallback; a nil fallback discards them. The returned close
// function releases the log file.
func newLogger(cfg Config, fallback io.Writer) (*slog.Logger, func() error, error) {
	noop := func() error { return nil }
	w := fallback
	closeFn := noop
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, noop, fmt.Errorf("open log file: %w", err)
		}
		w, closeFn = f, f.Close
	}
	if w == nil {
		return slog.New(slog.DiscardHandler), noop, nil
	}

	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h), closeFn, nil
}
