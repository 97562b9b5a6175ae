package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWakeHandler_Handle(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		opID    string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			opID:    "op-123",
			level:   slog.LevelInfo,
			message: "alarm created",
			want:    "2024-06-15T14:30:45Z\tINFO\top-123\talarm created\n",
		},
		{
			name:    "debug level",
			opID:    "op-456",
			level:   slog.LevelDebug,
			message: "alarm scheduled",
			want:    "2024-06-15T14:30:45Z\tDEBUG\top-456\talarm scheduled\n",
		},
		{
			name:    "with record attrs",
			opID:    "op-789",
			level:   slog.LevelInfo,
			message: "alarms synced",
			attrs:   []slog.Attr{slog.String("alarm", "a1"), slog.Int("created", 2)},
			want:    "2024-06-15T14:30:45Z\tINFO\top-789\talarms synced\talarm=a1\tcreated=2\n",
		},
		{
			name:    "values with spaces are quoted",
			opID:    "op-1",
			level:   slog.LevelWarn,
			message: "scheduling alarm failed",
			attrs:   []slog.Attr{slog.String("error", "os rejected"), slog.String("label", "")},
			want:    "2024-06-15T14:30:45Z\tWARN\top-1\tscheduling alarm failed\terror=\"os rejected\"\tlabel=\"\"\n",
		},
		{
			name:    "group attrs are flattened",
			opID:    "op-2",
			level:   slog.LevelInfo,
			message: "status",
			attrs:   []slog.Attr{slog.Group("perm", slog.String("exact", "denied"))},
			want:    "2024-06-15T14:30:45Z\tINFO\top-2\tstatus\tperm.exact=denied\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &wakeHandler{sinks: []sink{{w: &buf, min: slog.LevelDebug}}, opID: tt.opID}

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			r.AddAttrs(tt.attrs...)

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestWakeHandler_SinkLevels(t *testing.T) {
	var file, stderr bytes.Buffer
	h := &wakeHandler{sinks: []sink{
		{w: &file, min: slog.LevelDebug},
		{w: &stderr, min: slog.LevelWarn},
	}}
	logger := slog.New(h)

	logger.Debug("quiet")
	logger.Warn("loud")

	if !strings.Contains(file.String(), "quiet") || !strings.Contains(file.String(), "loud") {
		t.Errorf("file sink = %q, want both records", file.String())
	}
	if strings.Contains(stderr.String(), "quiet") || !strings.Contains(stderr.String(), "loud") {
		t.Errorf("stderr sink = %q, want only the warning", stderr.String())
	}
}

func TestWakeHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := &wakeHandler{sinks: []sink{{w: &buf}}, opID: "op-1"}

	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "scheduler")}).WithGroup("req")

	r := slog.NewRecord(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), slog.LevelInfo, "sync", 0)
	r.AddAttrs(slog.String("handle", "alarm:a1:1"))
	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "\tcomponent=scheduler") {
		t.Errorf("expected pre-set attr component=scheduler, got: %q", got)
	}
	if !strings.Contains(got, "\treq.handle=alarm:a1:1") {
		t.Errorf("expected grouped record attr, got: %q", got)
	}
	if len(h.attrs) != 0 || h.prefix != "" {
		t.Errorf("original handler modified: %+v", h)
	}
}

func TestWakeHandler_Enabled(t *testing.T) {
	h := &wakeHandler{sinks: []sink{{w: &bytes.Buffer{}, min: slog.LevelInfo}}}

	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Enabled(DEBUG) = true with an INFO sink")
	}
	for _, level := range []slog.Level{slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if !h.Enabled(context.Background(), level) {
			t.Errorf("Enabled(%v) = false, want true", level)
		}
	}
}

func TestNewLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")

	logger, f, err := newLogger(dir, "test-op", false)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	defer f.Close()

	logger.Debug("written to file only", "alarm", "a1")

	data, err := os.ReadFile(filepath.Join(dir, "wake.log"))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "test-op\twritten to file only\talarm=a1") {
		t.Errorf("log file = %q", data)
	}
}
