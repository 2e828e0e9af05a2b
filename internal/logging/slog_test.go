package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

// captured returns a text logger at debug level and the buffer it writes to.
func captured() (*SlogLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewSlogLogger(slog.New(h)), &buf
}

func TestSlogLogger_EachLevelIsRecorded(t *testing.T) {
	cases := []struct {
		name  string
		emit  func(l *SlogLogger)
		level string
		attr  string
	}{
		{"debug", func(l *SlogLogger) { l.Debug(context.Background(), "token rejected", "source", "cookie") }, "DEBUG", "source=cookie"},
		{"info", func(l *SlogLogger) { l.Info(context.Background(), "user signed in", "user_id", 3) }, "INFO", "user_id=3"},
		{"warn", func(l *SlogLogger) { l.Warn(context.Background(), "session lookup failed", "sid", "abc") }, "WARN", "sid=abc"},
		{"error", func(l *SlogLogger) { l.Error(context.Background(), "publish failed", "subject", "auth.login") }, "ERROR", "subject=auth.login"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l, buf := captured()
			tc.emit(l)

			out := buf.String()
			if !strings.Contains(out, "level="+tc.level) || !strings.Contains(out, tc.attr) {
				t.Fatalf("want level=%s and %s, got:\n%s", tc.level, tc.attr, out)
			}
		})
	}
}

func TestSlogLogger_WithCarriesRequestScope(t *testing.T) {
	l, buf := captured()

	scoped := l.With("request_id", "r-1", "module", "auth")
	scoped.Info(context.Background(), "login", "username", "alice")
	l.Info(context.Background(), "unscoped")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("want 2 records, got %d:\n%s", len(lines), buf.String())
	}
	for _, want := range []string{"request_id=r-1", "module=auth", "username=alice"} {
		if !strings.Contains(lines[0], want) {
			t.Fatalf("scoped record misses %q: %s", want, lines[0])
		}
	}
	if strings.Contains(lines[1], "request_id") {
		t.Fatalf("With must not leak into the parent logger: %s", lines[1])
	}
}

func TestNew_RespectsLevelAndWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New("warn", &buf)
	ctx := context.Background()

	log.Info(ctx, "hidden")
	log.Warn(ctx, "shown", "user_id", 7)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info record must be filtered at warn level:\n%s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"user_id":7`) {
		t.Fatalf("expected JSON warn record, got:\n%s", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestDiscard_ImplementsLogger(t *testing.T) {
	var l Logger = Discard()
	l.With("k", "v").Error(context.Background(), "dropped")
}
