package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"
)

// PostmarkAPI is the subset of *postmark.Client used by PostmarkSender.
type PostmarkAPI interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
}

// PostmarkSender delivers messages through the Postmark API.
type PostmarkSender struct {
	api   PostmarkAPI
	from  string
	reply string
}

// NewPostmarkSender validates cfg and builds a Postmark-backed sender.
func NewPostmarkSender(cfg Config) (*PostmarkSender, error) {
	if cfg.PostmarkServerToken == "" {
		return nil, fmt.Errorf("%w: PostmarkServerToken is required", ErrInvalidConfig)
	}
	if !ValidAddress(cfg.SenderEmail) {
		return nil, fmt.Errorf("%w: SenderEmail must be a valid email address", ErrInvalidConfig)
	}
	if !ValidAddress(cfg.SupportEmail) {
		return nil, fmt.Errorf("%w: SupportEmail must be a valid email address", ErrInvalidConfig)
	}
	client := postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken)
	return NewPostmarkSenderWithAPI(client, cfg.SenderEmail, cfg.SupportEmail), nil
}

// NewPostmarkSenderWithAPI creates a sender on an existing client.
func NewPostmarkSenderWithAPI(api PostmarkAPI, from, replyTo string) *PostmarkSender {
	return &PostmarkSender{api: api, from: from, reply: replyTo}
}

// Send delivers msg through Postmark. Replies go to the support address.
func (s *PostmarkSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	resp, err := s.api.SendEmail(ctx, postmark.Email{
		From:       s.from,
		ReplyTo:    s.reply,
		To:         msg.To,
		Subject:    msg.Subject,
		Tag:        msg.Tag,
		HTMLBody:   msg.HTMLBody,
		TextBody:   msg.TextBody,
		TrackOpens: true,
		TrackLinks: "HtmlOnly",
	})
	if err != nil {
		return errors.Join(ErrFailedToSendEmail, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(
			ErrFailedToSendEmail,
			fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message),
		)
	}
	return nil
}
