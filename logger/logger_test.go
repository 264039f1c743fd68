package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoggerLevels(t *testing.T) {
	t.Parallel()

	l := New(INFO, "", 100)
	l.SetConsoleOutput(false)

	l.Error("error message")
	l.Warn("warn message")
	l.Info("info message")
	l.Debug("debug message")
	l.Trace("trace message")

	buffer := l.GetBuffer()
	if len(buffer) != 3 {
		t.Fatalf("expected 3 log entries, got %d", len(buffer))
	}
	if buffer[0].Level != ERROR || buffer[1].Level != WARN || buffer[2].Level != INFO {
		t.Errorf("unexpected levels: %v %v %v", buffer[0].Level, buffer[1].Level, buffer[2].Level)
	}
}

func TestLoggerContext(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	l := New(DEBUG, "", 10)
	l.SetConsoleWriter(&out)

	l.Info("device call failed", "op", "add_user", "attempt", 2, "dangling")

	buffer := l.GetBuffer()
	if len(buffer) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(buffer))
	}
	if buffer[0].Context["op"] != "add_user" || buffer[0].Context["attempt"] != 2 {
		t.Errorf("unexpected context: %v", buffer[0].Context)
	}
	if _, ok := buffer[0].Context["dangling"]; ok {
		t.Error("odd trailing key should be ignored")
	}
	if !strings.Contains(out.String(), "[INFO] device call failed attempt=2 op=add_user") {
		t.Errorf("unexpected console line: %q", out.String())
	}
}

func TestLoggerBufferIsBounded(t *testing.T) {
	t.Parallel()

	l := New(INFO, "", 3)
	l.SetConsoleOutput(false)
	for i := 0; i < 5; i++ {
		l.Info("entry", "i", i)
	}

	buffer := l.GetBuffer()
	if len(buffer) != 3 {
		t.Fatalf("expected buffer of 3, got %d", len(buffer))
	}
	if buffer[0].Context["i"] != 2 {
		t.Errorf("oldest entries should be dropped, first is %v", buffer[0].Context["i"])
	}
}

func TestLoggerWritesFileAndRotates(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	l := New(INFO, dir, 10)
	l.SetConsoleOutput(false)
	l.SetRotationPolicy(RotationPolicy{Enabled: true, MaxSizeMB: 1, MaxFiles: 2})
	defer l.Close()

	big := strings.Repeat("x", 600*1024)
	l.Info(big)
	l.Info(big)
	l.Info("after rotation")

	data, err := os.ReadFile(filepath.Join(dir, logFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "after rotation") {
		t.Error("expected fresh log file to contain latest entry")
	}

	backups, _ := filepath.Glob(filepath.Join(dir, "server_*.log"))
	if len(backups) != 1 {
		t.Errorf("expected 1 rotated file, got %d", len(backups))
	}
}

func TestWarnRateLimited(t *testing.T) {
	t.Parallel()

	l := New(INFO, "", 10)
	l.SetConsoleOutput(false)

	for i := 0; i < 5; i++ {
		l.WarnRateLimited("router_down", time.Hour, "router unreachable")
	}
	if got := len(l.GetBufferFiltered(WARN)); got != 1 {
		t.Errorf("expected 1 rate-limited warning, got %d", got)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]LogLevel{
		"error":   ERROR,
		"WARN":    WARN,
		"warning": WARN,
		"info":    INFO,
		" debug ": DEBUG,
		"trace":   TRACE,
		"bogus":   INFO,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
