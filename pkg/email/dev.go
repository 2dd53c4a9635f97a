package email

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// DevSender writes each message to dir as <timestamp>_<tag>.json instead of
// sending it.
type DevSender struct {
	dir string
	now func() time.Time
}

// NewDevSender writes messages under dir.
func NewDevSender(dir string) *DevSender {
	return &DevSender{dir: dir, now: time.Now}
}

type devRecord struct {
	Timestamp string `json:"timestamp"`
	Message
}

// Send writes msg as a JSON file.
func (d *DevSender) Send(_ context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return errors.Join(ErrFailedToSendEmail, err)
	}

	now := d.now()
	name := msg.Tag
	if name == "" {
		name = msg.Subject
	}
	path := filepath.Join(d.dir, fmt.Sprintf("%s_%s.json", now.Format("2006_01_02_150405.000000"), sanitizeFilename(name)))

	data, err := json.MarshalIndent(devRecord{Timestamp: now.Format(time.RFC3339), Message: msg}, "", "  ")
	if err != nil {
		return errors.Join(ErrFailedToSendEmail, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Join(ErrFailedToSendEmail, err)
	}
	return nil
}

var unsafeFilename = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

func sanitizeFilename(s string) string {
	s = unsafeFilename.ReplaceAllString(strings.ReplaceAll(s, " ", "_"), "")
	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		return "email"
	}
	return strings.ToLower(s)
}
