package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestPrettyHandlerOutput(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelInfo)
	logger := slog.New(newPrettyHandler(&buf, levelVar))

	logger = NewComponentLogger(logger, "sweeper")
	logger.Info("entry completed", EntryID(42), String(FieldReason, "expired"))

	line := buf.String()
	if !strings.Contains(line, "INFO sweeper: entry completed") {
		t.Fatalf("unexpected log line: %q", line)
	}
	if !strings.Contains(line, "entry_id=42") {
		t.Fatalf("expected entry_id attribute, got: %q", line)
	}
	if !strings.Contains(line, "reason=expired") {
		t.Fatalf("expected reason attribute, got: %q", line)
	}
}

func TestPrettyHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelWarn)
	logger := slog.New(newPrettyHandler(&buf, levelVar))

	logger.Info("ignored")
	logger.Warn("kept")

	if strings.Contains(buf.String(), "ignored") {
		t.Fatalf("info line should be filtered: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "kept") {
		t.Fatalf("warn line missing: %q", buf.String())
	}
}

func TestErrorAttr(t *testing.T) {
	attr := Error(errors.New("boom"))
	if attr.Key != "error" {
		t.Fatalf("unexpected key %q", attr.Key)
	}
	attr = Error(nil)
	if attr.Value.String() != "<nil>" {
		t.Fatalf("expected <nil> marker, got %q", attr.Value.String())
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("nop logger should report disabled")
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
