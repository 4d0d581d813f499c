package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNewLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	l := newLogger(Options{Quiet: true, File: path})
	l.Info("region written", zap.Int("rx", 3), zap.Int("ry", 4))
	_ = l.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	line := string(data)
	for _, want := range []string{`"msg":"region written"`, `"rx":3`, `"ry":4`} {
		if !strings.Contains(line, want) {
			t.Errorf("log line %q does not contain %s", line, want)
		}
	}
}

func TestNewLoggerDebugLevel(t *testing.T) {
	if l := newLogger(Options{Debug: true}); !l.Core().Enabled(zap.DebugLevel) {
		t.Error("debug logger should enable debug level")
	}
	if l := newLogger(Options{}); l.Core().Enabled(zap.DebugLevel) {
		t.Error("default logger should not enable debug level")
	}
}

func TestGet(t *testing.T) {
	if Get() == nil {
		t.Fatal("Get() returned nil")
	}
	if Get() != Get() {
		t.Error("Get() should return the same logger")
	}
}
