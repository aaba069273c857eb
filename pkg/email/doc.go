// Package email sends transactional emails through a provider-agnostic
// EmailSender.
//
// NewPostmarkClient delivers through Postmark. NewDevSender writes each
// message to a directory as an .html body plus a .json metadata file, which
// is what local development and tests use. Both validate SendEmailParams
// before doing anything.
//
//	sender, err := email.NewPostmarkClient(cfg)
//	err = sender.SendEmail(ctx, email.SendEmailParams{
//	    SendTo:   "owner@example.com",
//	    Subject:  "Your subscription was cancelled",
//	    BodyHTML: body,
//	    Tag:      "subscription-cancelled",
//	})
package email
