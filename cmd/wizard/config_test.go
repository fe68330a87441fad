package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ormasoftchile/wizard/pkg/schema"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(env(nil), nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != slog.LevelWarn || cfg.LogFormat != "text" || cfg.UI != "tui" || cfg.TraceDir != "" {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestLoadConfig_ProjectThenEnv(t *testing.T) {
	project := &schema.Project{Name: "p", Defaults: schema.ProjectDefaults{UI: "prompt", TraceDir: "traces"}}

	cfg, err := loadConfig(env(nil), project)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.UI != "prompt" || cfg.TraceDir != "traces" {
		t.Errorf("project defaults not applied: %+v", cfg)
	}

	cfg, err = loadConfig(env(map[string]string{
		envUI:        "REPL",
		envTraceDir:  "/tmp/t",
		envLogLevel:  "debug",
		envLogFormat: "json",
		envLogFile:   "wizard.log",
	}), project)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.UI != "repl" || cfg.TraceDir != "/tmp/t" || cfg.LogLevel != slog.LevelDebug || cfg.LogFormat != "json" || cfg.LogFile != "wizard.log" {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		env  map[string]string
		want string
	}{
		{map[string]string{envLogLevel: "loud"}, envLogLevel},
		{map[string]string{envLogFormat: "xml"}, "unknown log format"},
		{map[string]string{envUI: "gui"}, "unknown ui"},
	}
	for _, tt := range tests {
		_, err := loadConfig(env(tt.env), nil)
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("env %v: err = %v, want %q", tt.env, err, tt.want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := newLogger(Config{LogLevel: slog.LevelInfo, LogFormat: "json"}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()
	logger.Debug("hidden")
	logger.Info("shown", "k", "v")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("log output = %q", out)
	}
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wizard.log")
	logger, closeFn, err := newLogger(Config{LogLevel: slog.LevelInfo, LogFormat: "text", LogFile: path}, nil)
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("to file")
	if err := closeFn(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "msg=\"to file\"") {
		t.Errorf("log file = %q", data)
	}
}

func TestNewLogger_Discard(t *testing.T) {
	logger, _, err := newLogger(Config{LogFormat: "text"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("discard logger should not be enabled")
	}
}
