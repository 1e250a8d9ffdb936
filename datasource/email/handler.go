package email

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Krishiv200719/Airline-delay-visual-analytics/storage"
	"github.com/Krishiv200719/Airline-delay-visual-analytics/utils"
)

// AttachmentHandler saves flight data attachments into the ingest
// directory, where the file loader and monitor pick them up. Messages
// are deduplicated by IMAP UID for the lifetime of the handler.
type AttachmentHandler struct {
	TargetSubject string
	DataDir       string
	log           *storage.Logger
	processedUIDs map[uint32]bool
	mu            sync.RWMutex
}

func NewAttachmentHandler(subject, dataDir string, log *storage.Logger) *AttachmentHandler {
	return &AttachmentHandler{
		TargetSubject: subject,
		DataDir:       dataDir,
		log:           log,
		processedUIDs: make(map[uint32]bool),
	}
}

// IsProcessed reports whether a message UID was already handled.
func (h *AttachmentHandler) IsProcessed(uid uint32) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.processedUIDs[uid]
}

func (h *AttachmentHandler) markAsProcessed(uid uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.processedUIDs[uid] = true
}

// acceptsAttachment reports whether filename looks like a flight data
// file the loader can read.
func acceptsAttachment(filename string) bool {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".csv"),
		strings.HasSuffix(lower, ".csv.gz"),
		strings.HasSuffix(lower, ".xlsx"):
		return true
	}
	return false
}

// Handle saves the data attachments of email into DataDir. Handling the
// same UID twice is a no-op.
func (h *AttachmentHandler) Handle(email *Email) error {
	if h.IsProcessed(email.UID) {
		return nil
	}

	if !strings.Contains(email.Subject, h.TargetSubject) {
		h.log.Debug(fmt.Sprintf("skipping mail with subject %q", email.Subject))
		return nil
	}

	h.log.Info(fmt.Sprintf("processing mail %q from %s (%s)",
		email.Subject, email.From, email.Date.Format("2006-01-02 15:04:05")))

	if err := utils.EnsureDir(h.DataDir); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	saved := 0
	for _, attachment := range email.Attachments {
		if !acceptsAttachment(attachment.Filename) {
			continue
		}

		// Base strips any path the sender smuggled into the name.
		name := filepath.Base(attachment.Filename)
		path := filepath.Join(h.DataDir, name)

		if err := os.WriteFile(path, attachment.Content, 0644); err != nil {
			return fmt.Errorf("saving attachment %s: %w", name, err)
		}
		h.log.Info(fmt.Sprintf("attachment saved: %s (%d bytes)", path, len(attachment.Content)))
		saved++
	}

	if saved > 0 {
		h.markAsProcessed(email.UID)
	}

	return nil
}
