package log_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/campuskb/campuskb/internal/log"
)

func TestNewWithWriterText(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithWriter(&buf, log.Config{Level: slog.LevelInfo})

	logger.Info("hello", "key", "value")

	out := buf.String()
	if !strings.Contains(out, "hello") || !strings.Contains(out, "key=value") {
		t.Errorf("unexpected log output: %q", out)
	}
}

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithWriter(&buf, log.Config{JSON: true})

	logger.Info("hello")

	if !strings.Contains(buf.String(), `"msg":"hello"`) {
		t.Errorf("expected JSON output, got %q", buf.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithWriter(&buf, log.Config{Level: slog.LevelWarn})

	logger.Debug("quiet")
	logger.Info("also quiet")
	logger.Warn("loud")

	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Errorf("below-level entries should be dropped: %q", out)
	}
	if !strings.Contains(out, "loud") {
		t.Errorf("warn entry missing: %q", out)
	}
}

func TestNewNopDiscards(t *testing.T) {
	logger := log.NewNop()
	// Must not panic and must not write anywhere observable.
	logger.Error("discarded")
}
