package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Krishiv200719/Airline-delay-visual-analytics/config"
)

func TestLoggerWritesEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger, err := NewLogger(path)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	logger.Info("loading flights")
	logger.Error("bad row")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.Contains(content, "INFO: loading flights") {
		t.Errorf("log missing info entry:\n%s", content)
	}
	if !strings.Contains(content, "ERROR: bad row") {
		t.Errorf("log missing error entry:\n%s", content)
	}
}

func TestLoggerSubscribe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger, err := NewLogger(path)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer logger.Close()

	ch := logger.Subscribe()
	logger.Warning("disk almost full")

	select {
	case entry := <-ch:
		if !strings.Contains(entry, "WARNING: disk almost full") {
			t.Errorf("unexpected entry %q", entry)
		}
	case <-time.After(time.Second):
		t.Fatal("no entry delivered to subscriber")
	}
}

func TestCheckRotate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	logger, err := NewLogger(path)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer logger.Close()

	cfg := config.Default()
	cfg.LogMaxSize = "16"

	logger.Info("an entry comfortably longer than sixteen bytes")
	if err := logger.CheckRotate(cfg); err != nil {
		t.Fatalf("CheckRotate: %v", err)
	}

	rotated, err := filepath.Glob(path + ".*")
	if err != nil {
		t.Fatal(err)
	}
	if len(rotated) != 1 {
		t.Fatalf("rotated files = %d, want 1", len(rotated))
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("fresh log file missing: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("fresh log size = %d, want 0", info.Size())
	}
}

func TestLogLevelString(t *testing.T) {
	cases := map[LogLevel]string{
		DEBUG:        "DEBUG",
		INFO:         "INFO",
		WARNING:      "WARNING",
		ERROR:        "ERROR",
		FATAL:        "FATAL",
		LogLevel(42): "UNKNOWN",
	}
	for level, want := range cases {
		if got := level.String(); got != want {
			t.Errorf("LogLevel(%d).String() = %q, want %q", level, got, want)
		}
	}
}

func TestEval(t *testing.T) {
	if got := eval("10 * 1024"); got != 10240 {
		t.Errorf("eval = %d, want 10240", got)
	}
	if got := eval("7"); got != 7 {
		t.Errorf("eval = %d, want 7", got)
	}
}
