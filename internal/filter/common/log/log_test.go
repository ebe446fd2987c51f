package log

import (
	"errors"
	"testing"

	"go.uber.org/zap/zapcore"
)

type testLogger struct {
	entries []string
}

func (l *testLogger) Info(_ map[string]any, msg string)  { l.entries = append(l.entries, "INFO:"+msg) }
func (l *testLogger) Error(_ map[string]any, msg string) { l.entries = append(l.entries, "ERROR:"+msg) }
func (l *testLogger) Debug(_ map[string]any, msg string) { l.entries = append(l.entries, "DEBUG:"+msg) }
func (l *testLogger) Warn(_ map[string]any, msg string)  { l.entries = append(l.entries, "WARN:"+msg) }
func (l *testLogger) Panic(_ map[string]any, msg string) {}
func (l *testLogger) Fatal(_ map[string]any, msg string) {}

func TestActualZapLogger(t *testing.T) {
	Debug(map[string]any{
		"list":  "domains",
		"count": 42,
		"ok":    true,
	}, "test debug")
	Info(nil, "test info")
	Warn(nil, "test warn")
	Error(map[string]any{"error": errors.New("boom")}, "test error")
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic, but none occurred")
		}
	}()
	Panic(nil, "test panic")
}

func TestSetLoggerAndGlobalLogging(t *testing.T) {
	orig := GetLogger()
	defer SetLogger(orig)
	tlog := &testLogger{}
	SetLogger(tlog)

	Info(nil, "info msg")
	Error(nil, "error msg")
	Debug(nil, "debug msg")
	Warn(nil, "warn msg")

	expected := []string{
		"INFO:info msg",
		"ERROR:error msg",
		"DEBUG:debug msg",
		"WARN:warn msg",
	}

	if len(tlog.entries) != len(expected) {
		t.Fatalf("expected %d log entries, got %d", len(expected), len(tlog.entries))
	}
	for i, msg := range expected {
		if tlog.entries[i] != msg {
			t.Errorf("expected log[%d] = %q, got %q", i, msg, tlog.entries[i])
		}
	}
}

func TestConfigure_ValidLevels(t *testing.T) {
	orig := GetLogger()
	defer SetLogger(orig)

	if err := Configure("dev", "debug"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := Configure("prod", "INFO"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	Sync()
}

func TestConfigure_InvalidLevel(t *testing.T) {
	orig := GetLogger()
	defer SetLogger(orig)

	if err := Configure("dev", "notalevel"); err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
}

func TestZapFields_SortedAndErrorsNamed(t *testing.T) {
	fields := zapFields(map[string]any{
		"zeta":  1,
		"alpha": "a",
		"error": errors.New("x"),
	})
	if len(fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(fields))
	}
	want := []string{"alpha", "error", "zeta"}
	for i, k := range want {
		if fields[i].Key != k {
			t.Errorf("field[%d].Key = %q, want %q", i, fields[i].Key, k)
		}
	}
	if fields[1].Type != zapcore.ErrorType {
		t.Errorf("error field type = %v, want ErrorType", fields[1].Type)
	}
}

func TestNoopLogger_TestAllLevels(t *testing.T) {
	orig := GetLogger()
	defer SetLogger(orig)
	SetLogger(NewNoopLogger())

	Debug(nil, "debug message")
	Info(nil, "info message")
	Warn(nil, "warn message")
	Error(nil, "error message")
	Panic(nil, "panic message")
	Fatal(nil, "fatal message")
	Sync()
}

type recordingLogger struct {
	fields []map[string]any
}

func (r *recordingLogger) record(f map[string]any) { r.fields = append(r.fields, f) }

func (r *recordingLogger) Info(f map[string]any, _ string)  { r.record(f) }
func (r *recordingLogger) Error(f map[string]any, _ string) { r.record(f) }
func (r *recordingLogger) Debug(f map[string]any, _ string) { r.record(f) }
func (r *recordingLogger) Warn(f map[string]any, _ string)  { r.record(f) }
func (r *recordingLogger) Panic(f map[string]any, _ string) { r.record(f) }
func (r *recordingLogger) Fatal(f map[string]any, _ string) { r.record(f) }

func TestWith_AttachesFields(t *testing.T) {
	rec := &recordingLogger{}
	l := With(Component(rec, "session"), map[string]any{"list": "domains"})

	l.Info(map[string]any{"count": 3}, "loaded")
	l.Warn(map[string]any{"component": "override"}, "collision")
	l.Error(nil, "nil fields")
	l.Debug(nil, "debug")
	l.Panic(nil, "panic")
	l.Fatal(nil, "fatal")

	if len(rec.fields) != 6 {
		t.Fatalf("expected 6 entries, got %d", len(rec.fields))
	}
	first := rec.fields[0]
	if first["component"] != "session" || first["list"] != "domains" || first["count"] != 3 {
		t.Errorf("unexpected fields %v", first)
	}
	if rec.fields[1]["component"] != "override" {
		t.Errorf("expected per-call field to win, got %v", rec.fields[1]["component"])
	}
	if len(rec.fields[2]) != 2 {
		t.Errorf("expected only attached fields, got %v", rec.fields[2])
	}
}

func TestWith_NoFieldsAndNoop(t *testing.T) {
	rec := &recordingLogger{}
	if With(rec, nil) != Logger(rec) {
		t.Error("expected With with no fields to return the same logger")
	}
	noop := NewNoopLogger()
	if Component(noop, "x") != noop {
		t.Error("expected noop logger to stay noop")
	}
}
