package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"pkt.systems/pslog"
)

func newCaptureLogger(capture *logCapture) pslog.Logger {
	return pslog.NewWithOptions(capture, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		MinLevel:      pslog.InfoLevel,
		VerboseFields: true,
	})
}

func TestWithTabAddsField(t *testing.T) {
	capture := &logCapture{}
	ctx := pslog.ContextWithLogger(context.Background(), newCaptureLogger(capture))
	WithTab(ctx, "tab1").Info("hello")

	entry := capture.firstEntry(t)
	if entry["tab"] != "tab1" {
		t.Fatalf("expected tab field, got %+v", entry)
	}
}

func TestWithTabSkipsDuplicate(t *testing.T) {
	capture := &logCapture{}
	ctx := ContextWithTabLogger(context.Background(), newCaptureLogger(capture), "tab1")
	WithTab(ctx, "tab1").Info("hello")

	line := capture.buf.String()
	if n := bytes.Count([]byte(line), []byte(`"tab"`)); n != 1 {
		t.Fatalf("expected exactly one tab field, got %d in %s", n, line)
	}
}

func TestWithOperationAddsField(t *testing.T) {
	capture := &logCapture{}
	WithOperation(newCaptureLogger(capture), "generate").Info("hello")

	entry := capture.firstEntry(t)
	if entry["op"] != "generate" {
		t.Fatalf("expected op field, got %+v", entry)
	}
}

func TestWithOperationEmptyIsNoop(t *testing.T) {
	capture := &logCapture{}
	WithOperation(newCaptureLogger(capture), "").Info("hello")

	entry := capture.firstEntry(t)
	if _, ok := entry["op"]; ok {
		t.Fatalf("did not expect op field, got %+v", entry)
	}
}

type logCapture struct {
	buf bytes.Buffer
}

func (c *logCapture) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

func (c *logCapture) firstEntry(t *testing.T) map[string]any {
	t.Helper()
	data := c.buf.Bytes()
	idx := bytes.IndexByte(data, '\n')
	if idx == -1 {
		idx = len(data)
	}
	line := bytes.TrimSpace(data[:idx])
	entry := map[string]any{}
	if err := json.Unmarshal(line, &entry); err != nil {
		t.Fatalf("parse log entry: %v", err)
	}
	return entry
}
