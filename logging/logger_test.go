package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNewLoggerWritesRedactedFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	logger, err := NewLogger(false, logPath)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	logger.Info("request dispatched",
		zap.String("api_key", "sk-proj-verysecretcredential1234"),
		zap.String("job_id", "video_123"),
	)
	logger.Sync()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	content := string(data)

	if strings.Contains(content, "verysecretcredential") {
		t.Error("log file contains unredacted credential")
	}
	if !strings.Contains(content, RedactedPlaceholder) {
		t.Error("log file missing redaction placeholder")
	}
	if !strings.Contains(content, "video_123") {
		t.Error("log file missing non-sensitive field")
	}
}

func TestLoggerRedactsSensitiveStringValues(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	logger, err := NewLogger(false, logPath)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	// Field name is innocent but the value carries a credential.
	logger.Info("config dump",
		zap.String("detail", "loaded key sk-proj-abcdefghijklmnopqrstuv"),
	)
	logger.Sync()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if strings.Contains(string(data), "abcdefghijklmnopqrstuv") {
		t.Error("credential in field value was not redacted")
	}
}

func TestNewLoggerConsoleOnly(t *testing.T) {
	logger, err := NewLogger(true, "")
	if err != nil {
		t.Fatalf("NewLogger(console only) error = %v", err)
	}
	if !logger.IsDevelopment() {
		t.Error("IsDevelopment() = false, want true")
	}
	// Must not panic without a file core.
	logger.Debug("debug line", zap.Int("n", 1))
}

func TestNamedAndWith(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	logger, err := NewLogger(false, logPath)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	child := logger.Named("transport").With(zap.String("correlation_id", "abc-123"))
	child.Info("paced request")
	child.Sync()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "transport") {
		t.Error("log entry missing logger name")
	}
	if !strings.Contains(content, "abc-123") {
		t.Error("log entry missing With field")
	}
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()
	logger.Info("discarded", zap.String("k", "v"))
	logger.Warnf("discarded %d", 1)
	if err := logger.Sync(); err != nil {
		t.Errorf("Sync() = %v, want nil", err)
	}
}
