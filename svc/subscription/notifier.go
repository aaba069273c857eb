package subscription

import (
	"context"
	"io"
	"time"

	"github.com/a-h/templ"

	"github.com/petvoice/subscriptions/pkg/email"
	"github.com/petvoice/subscriptions/pkg/email/templates"
	domain "github.com/petvoice/subscriptions/pkg/subscription"
)

const (
	tagCancelled   = "subscription-cancelled"
	tagReactivated = "subscription-reactivated"
)

func cancelledEmail(immediate bool, until string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		body := "<p>Hi,</p>\n"
		if immediate {
			body += "<p>Your PetVoice subscription has been cancelled and premium features are no longer available. Your earliest pet profile has been kept.</p>\n"
		} else {
			body += "<p>Your PetVoice subscription has been cancelled. You keep premium features until " + templ.EscapeString(until) + ".</p>\n" +
				"<p>Changed your mind? You can reactivate any time before then from your account page.</p>\n"
		}
		_, err := io.WriteString(w, body+"<p>The PetVoice team</p>")
		return err
	})
}

func reactivatedEmail(until string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		renews := ""
		if until != "" {
			renews = " and renews on " + templ.EscapeString(until)
		}
		_, err := io.WriteString(w, "<p>Hi,</p>\n<p>Welcome back! Your PetVoice subscription is active again"+renews+".</p>\n<p>The PetVoice team</p>")
		return err
	})
}

// Notifier emails subscribers about lifecycle changes.
type Notifier struct {
	sender email.EmailSender
}

func NewNotifier(sender email.EmailSender) *Notifier {
	return &Notifier{sender: sender}
}

func (n *Notifier) SubscriptionCancelled(ctx context.Context, sub domain.Subscriber, result domain.CancellationResult) error {
	body, err := templates.Render(ctx, cancelledEmail(
		result.CancellationType == domain.CancellationImmediate,
		formatDate(result.CancellationEffectiveDate),
	))
	if err != nil {
		return err
	}
	return n.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   sub.Email,
		Subject:  "Your PetVoice subscription was cancelled",
		BodyHTML: body,
		Tag:      tagCancelled,
	})
}

func (n *Notifier) SubscriptionReactivated(ctx context.Context, sub domain.Subscriber, periodEnd *time.Time) error {
	body, err := templates.Render(ctx, reactivatedEmail(formatDate(periodEnd)))
	if err != nil {
		return err
	}
	return n.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   sub.Email,
		Subject:  "Your PetVoice subscription is active again",
		BodyHTML: body,
		Tag:      tagReactivated,
	})
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("January 2, 2006")
}
