package email

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Krishiv200719/Airline-delay-visual-analytics/storage"
)

func newTestHandler(t *testing.T, subject string) (*AttachmentHandler, string) {
	t.Helper()
	dir := t.TempDir()
	logger, err := storage.NewLogger(filepath.Join(t.TempDir(), "test.log"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { logger.Close() })
	return NewAttachmentHandler(subject, filepath.Join(dir, "data"), logger), filepath.Join(dir, "data")
}

func testEmail(uid uint32, subject string, attachments ...*Attachment) *Email {
	return &Email{
		UID:         uid,
		Date:        time.Date(2024, time.March, 10, 8, 0, 0, 0, time.UTC),
		From:        "ops@example.com",
		Subject:     subject,
		Attachments: attachments,
	}
}

func TestHandleSavesDataAttachments(t *testing.T) {
	h, dataDir := newTestHandler(t, "Daily delay")
	msg := testEmail(7, "Daily delay report 2024-03-10",
		&Attachment{Filename: "flights.csv", Content: []byte("airline,origin\nUA,JFK\n")},
		&Attachment{Filename: "notes.txt", Content: []byte("ignore me")},
		&Attachment{Filename: "march.xlsx", Content: []byte{0x50, 0x4b, 0x03, 0x04}},
		&Attachment{Filename: "extra.csv.gz", Content: []byte{0x1f, 0x8b}},
	)

	if err := h.Handle(msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	for _, name := range []string{"flights.csv", "march.xlsx", "extra.csv.gz"} {
		if _, err := os.Stat(filepath.Join(dataDir, name)); err != nil {
			t.Errorf("%s not saved: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dataDir, "notes.txt")); err == nil {
		t.Error("notes.txt saved despite unsupported extension")
	}
	if !h.IsProcessed(7) {
		t.Error("message not marked processed")
	}
}

func TestHandleSkipsProcessedUID(t *testing.T) {
	h, dataDir := newTestHandler(t, "Daily delay")
	msg := testEmail(9, "Daily delay report",
		&Attachment{Filename: "flights.csv", Content: []byte("first")})

	if err := h.Handle(msg); err != nil {
		t.Fatal(err)
	}

	// A second delivery of the same UID must not overwrite the file.
	msg.Attachments[0].Content = []byte("second")
	if err := h.Handle(msg); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dataDir, "flights.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "first" {
		t.Fatalf("file content = %q, want original", data)
	}
}

func TestHandleSubjectMismatch(t *testing.T) {
	h, dataDir := newTestHandler(t, "Daily delay")
	msg := testEmail(11, "Lunch menu",
		&Attachment{Filename: "flights.csv", Content: []byte("x")})

	if err := h.Handle(msg); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dataDir, "flights.csv")); err == nil {
		t.Error("attachment saved despite subject mismatch")
	}
	if h.IsProcessed(11) {
		t.Error("mismatched message marked processed")
	}
}

func TestHandleStripsAttachmentPath(t *testing.T) {
	h, dataDir := newTestHandler(t, "Daily delay")
	msg := testEmail(13, "Daily delay report",
		&Attachment{Filename: "../../escape.csv", Content: []byte("x")})

	if err := h.Handle(msg); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dataDir, "escape.csv")); err != nil {
		t.Fatalf("sanitized attachment missing: %v", err)
	}
}

func TestAcceptsAttachment(t *testing.T) {
	cases := map[string]bool{
		"flights.csv":    true,
		"FLIGHTS.CSV":    true,
		"march.xlsx":     true,
		"dump.csv.gz":    true,
		"notes.txt":      false,
		"archive.zip":    false,
		"flights.csv.bk": false,
	}
	for name, want := range cases {
		if got := acceptsAttachment(name); got != want {
			t.Errorf("acceptsAttachment(%q) = %v, want %v", name, got, want)
		}
	}
}
