package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	pkgerrors "github.com/angelmondragon/homecook-backend/pkg/errors"
)

func TestLoggerErrorIncludesContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf})

	ctx := context.Background()
	ctx = log.WithRequestID(ctx, "req-123")
	ctx = log.WithOrderID(ctx, "order-1")

	log.Error(ctx, "boom", errors.New("boom"))

	if !bytes.Contains(buf.Bytes(), []byte(`"request_id":"req-123"`)) {
		t.Fatalf("expected request_id to be preserved; entry=%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"order_id":"order-1"`)) {
		t.Fatalf("expected order_id to be preserved; entry=%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"stack"`)) {
		t.Fatalf("expected stack trace on error; entry=%s", buf.String())
	}
}

func TestLoggerErrorDowngradesDomainRefusals(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})

	log.Error(context.Background(), "accept refused", pkgerrors.InvalidTransition("accept", "cancelled"))

	entry := buf.String()
	if !strings.Contains(entry, `"level":"warn"`) || !strings.Contains(entry, `"error_code":"STATE_CONFLICT"`) {
		t.Fatalf("expected warn with error code; entry=%s", entry)
	}
	if strings.Contains(entry, `"stack"`) {
		t.Fatalf("domain refusals carry no stack; entry=%s", entry)
	}
}

func TestLoggerStackSkipsOwnFrames(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})
	log.Error(context.Background(), "gateway down", pkgerrors.External(errors.New("timeout"), "refund"))

	var entry struct {
		Level string `json:"level"`
		Code  string `json:"error_code"`
		Stack string `json:"stack"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if entry.Level != "error" || entry.Code != "DEPENDENCY_ERROR" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if strings.Contains(entry.Stack, "logger.stackTrace") || !strings.Contains(entry.Stack, "TestLoggerStackSkipsOwnFrames") {
		t.Fatalf("unexpected stack:\n%s", entry.Stack)
	}
}

func TestLoggerWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf, WarnStack: true})
	log.Warn(context.Background(), "warny")
	if !bytes.Contains(buf.Bytes(), []byte(`"stack"`)) {
		t.Fatalf("expected stack when warn stack enabled; entry=%s", buf.String())
	}
}

func TestLoggerDebugSuppressedAtInfo(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: zerolog.InfoLevel, Output: buf})
	log.Debug(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected debug to be suppressed, got %s", buf.String())
	}
}

func TestParseLevelDefaults(t *testing.T) {
	if lvl := ParseLevel(""); lvl != zerolog.InfoLevel {
		t.Fatalf("expected default info level, got %v", lvl)
	}
	if lvl := ParseLevel("invalid"); lvl != zerolog.InfoLevel {
		t.Fatalf("invalid level should fallback to info, got %v", lvl)
	}
	if lvl := ParseLevel(" WARN "); lvl != zerolog.WarnLevel {
		t.Fatalf("expected warn level, got %v", lvl)
	}
}

func TestLoggerStampsStaticFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{
		ServiceName: "test",
		Level:       zerolog.InfoLevel,
		Fields:      map[string]any{"env": "staging", "region": "mx"},
		Output:      buf,
	})
	log.Info(context.Background(), "hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if entry["env"] != "staging" || entry["region"] != "mx" || entry["service"] != "test" {
		t.Fatalf("missing static fields: %v", entry)
	}
}

func TestLoggerConsoleFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: zerolog.InfoLevel, Format: "console", Output: buf})
	log.Info(context.Background(), "hello console")

	if json.Valid(buf.Bytes()) {
		t.Fatalf("expected console output, got json: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "hello console") {
		t.Fatalf("message missing: %s", buf.String())
	}
}
