package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "bogus"} {
		if logger := New(level); logger == nil {
			t.Fatalf("New(%q) returned nil", level)
		}
	}
}

func TestWriterOutputIsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("info", &buf)
	logger.Info("booking confirmed", "booking_id", "abc-123")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "booking confirmed" {
		t.Fatalf("unexpected msg: %v", entry["msg"])
	}
	if entry["booking_id"] != "abc-123" {
		t.Fatalf("missing booking_id attribute: %v", entry)
	}
}

func TestDebugSuppressedAtInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("info", &buf)
	logger.Debug("should not appear")
	if strings.Contains(buf.String(), "should not appear") {
		t.Fatalf("debug message leaked at info level: %s", buf.String())
	}
}
