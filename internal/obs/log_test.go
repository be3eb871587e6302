package obs

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"
)

func capture(t *testing.T, level, format string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	Configure(Config{Level: level, Format: format, Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })
	return &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid json line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"trace", LevelTrace},
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestJSONLineShape(t *testing.T) {
	buf := capture(t, "info", "json")
	Info("relay.start", Fields{"listen": "127.0.0.1:9000"})

	lines := decodeLines(t, buf)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	got := lines[0]
	if got["msg"] != "relay.start" || got["level"] != "info" || got["listen"] != "127.0.0.1:9000" {
		t.Errorf("unexpected record %v", got)
	}
	if _, ok := got["ts"]; !ok {
		t.Errorf("record has no ts field: %v", got)
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t, "info", "json")
	Trace("hidden", nil)
	Debug("hidden", nil)
	Warn("shown", nil)

	lines := decodeLines(t, buf)
	if len(lines) != 1 || lines[0]["msg"] != "shown" || lines[0]["level"] != "warn" {
		t.Fatalf("unexpected output %v", lines)
	}
}

func TestScopedEvents(t *testing.T) {
	buf := capture(t, "trace", "json")
	l := (&Logger{}).With(Fields{"session": "abc"}).Scope(ScopeSocketToPipe)
	l.WaitingData()
	l.ReceivedData(5)
	l.SentData(5)
	l.ConnectionClosed()

	lines := decodeLines(t, buf)
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4", len(lines))
	}
	wantIDs := []float64{1, 2, 3, 4}
	wantMsgs := []string{"Waiting data.", "Received 5 bytes.", "Sent 5 bytes.", "Connection closed."}
	for i, line := range lines {
		if line["event_id"] != wantIDs[i] {
			t.Errorf("line %d event_id = %v, want %v", i, line["event_id"], wantIDs[i])
		}
		if line["msg"] != wantMsgs[i] {
			t.Errorf("line %d msg = %v, want %q", i, line["msg"], wantMsgs[i])
		}
		if line["scope"] != ScopeSocketToPipe || line["session"] != "abc" {
			t.Errorf("line %d missing scope/session: %v", i, line)
		}
	}
	if lines[0]["level"] != "trace" || lines[3]["level"] != "info" {
		t.Errorf("unexpected levels %v / %v", lines[0]["level"], lines[3]["level"])
	}
	if lines[2]["bytes_sent"] != float64(5) {
		t.Errorf("bytes_sent = %v", lines[2]["bytes_sent"])
	}
}

func TestWithDoesNotAlias(t *testing.T) {
	buf := capture(t, "info", "json")
	parent := (&Logger{}).With(Fields{"session": "s1"})
	p2s := parent.Scope(ScopePipeToSocket)
	s2p := parent.Scope(ScopeSocketToPipe)
	p2s.ConnectionClosed()
	s2p.ConnectionClosed()

	lines := decodeLines(t, buf)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0]["scope"] != ScopePipeToSocket || lines[1]["scope"] != ScopeSocketToPipe {
		t.Errorf("scopes leaked between children: %v", lines)
	}
}

func TestSocketEvents(t *testing.T) {
	buf := capture(t, "info", "json")
	addr := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9000}
	var l *Logger
	l.SocketConnectionWaiting(addr)
	l.RelayCompleted(2048, 10, 1500*time.Millisecond)

	lines := decodeLines(t, buf)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0]["msg"] != "Waiting socket connection on 127.0.0.1:9000." {
		t.Errorf("msg = %v", lines[0]["msg"])
	}
	if lines[1]["bytes_to_socket"] != float64(2048) || lines[1]["event"] != "relay.completed" {
		t.Errorf("unexpected completion record %v", lines[1])
	}
}

func TestConsoleFormat(t *testing.T) {
	buf := capture(t, "trace", "console")
	(&Logger{}).Scope(ScopePipeToSocket).ReceivedData(7)

	line := buf.String()
	for _, want := range []string{"TRACE", "Received 7 bytes.", "scope=P2S", "event_id=2"} {
		if !strings.Contains(line, want) {
			t.Errorf("console line %q missing %q", line, want)
		}
	}
}

func TestTextFormatTraceName(t *testing.T) {
	buf := capture(t, "trace", "text")
	Trace("x", nil)
	if !strings.Contains(buf.String(), "level=trace") {
		t.Errorf("text line %q missing level=trace", buf.String())
	}
}
