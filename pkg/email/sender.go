package email

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Sender delivers a single transactional email.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Message is one outbound email. At least one body is required.
type Message struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"html_body,omitempty"`
	TextBody string `json:"text_body,omitempty"`
	Tag      string `json:"tag,omitempty"`
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidAddress reports whether s looks like a deliverable email address.
func ValidAddress(s string) bool {
	return emailRegex.MatchString(s)
}

// Validate reports the first missing or malformed field of m.
func (m Message) Validate() error {
	switch {
	case !ValidAddress(m.To):
		return fmt.Errorf("%w: invalid recipient %q", ErrInvalidMessage, m.To)
	case strings.TrimSpace(m.Subject) == "":
		return fmt.Errorf("%w: subject is required", ErrInvalidMessage)
	case m.HTMLBody == "" && m.TextBody == "":
		return fmt.Errorf("%w: body is required", ErrInvalidMessage)
	}
	return nil
}

// NewSender returns a Postmark sender when a server token is configured and
// a DevSender otherwise.
func NewSender(cfg Config) (Sender, error) {
	if cfg.PostmarkServerToken == "" {
		return NewDevSender(cfg.DevDir), nil
	}
	return NewPostmarkSender(cfg)
}
