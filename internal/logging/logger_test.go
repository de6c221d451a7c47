package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLogger_CreatesDirAndLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	log, err := NewLogger(dir, "worker", "debug")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("log dir missing: %v", err)
	}

	log.Info("test_message_from_logging_test")
	_ = log.Sync()

	b, err := os.ReadFile(filepath.Join(dir, "worker.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(b), `"msg":"test_message_from_logging_test"`) {
		t.Fatalf("message not in log file: %s", b)
	}
	if !strings.Contains(string(b), `"service":"worker"`) {
		t.Fatalf("service field missing: %s", b)
	}
}

func TestNewLogger_StderrOnly(t *testing.T) {
	log, err := NewLogger("", "api", "warn")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if log.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("debug should be disabled at warn level")
	}
}

func TestNewLogger_BadLevel(t *testing.T) {
	if _, err := NewLogger("", "api", "loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
