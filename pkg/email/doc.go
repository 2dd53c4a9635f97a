// Package email sends transactional email. PostmarkSender delivers through
// Postmark; DevSender writes JSON files to a local directory so development
// setups need no credentials.
//
//	sender, err := email.NewSender(cfg)
//	err = sender.Send(ctx, email.Message{
//		To:       "owner@clinic.example",
//		Subject:  "Your trial ends soon",
//		TextBody: "...",
//	})
package email
