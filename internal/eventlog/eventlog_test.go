package eventlog

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestAppendWritesOneJSONLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	l.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	if err := l.Append(KindMismatch, 42, map[string]any{"debugChecksum": "a", "releaseChecksum": "b"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := l.Append(KindTimeout, 43, nil); err != nil {
		t.Fatalf("Append: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}

	var ev Event
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatalf("unmarshal line 0: %v", err)
	}
	if ev.Kind != KindMismatch || ev.Seed != 42 {
		t.Fatalf("got %+v, want kind=%q seed=42", ev, KindMismatch)
	}
	if ev.Detail["debugChecksum"] != "a" {
		t.Fatalf("got detail %+v", ev.Detail)
	}
}

// TestAppendNilLoggerIsNoop covers the constructor's documented contract: a
// Logger built over a nil writer (no --output-events-to) must make Append a
// harmless no-op rather than panicking.
func TestAppendNilLoggerIsNoop(t *testing.T) {
	l := New(nil)
	if err := l.Append(KindStarted, 1, nil); err != nil {
		t.Fatalf("Append on nil-writer Logger: %v", err)
	}

	var nilLogger *Logger
	if err := nilLogger.Append(KindStarted, 1, nil); err != nil {
		t.Fatalf("Append on nil *Logger: %v", err)
	}
}
