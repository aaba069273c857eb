// Package templates renders templ components into email bodies.
package templates

import (
	"context"
	"errors"
	"strings"

	"github.com/a-h/templ"

	"github.com/petvoice/subscriptions/pkg/email"
)

// Render writes tpl into a string suitable for SendEmailParams.BodyHTML.
// Rendering failures are wrapped with email.ErrRenderTemplate.
func Render(ctx context.Context, tpl templ.Component) (string, error) {
	if tpl == nil {
		return "", email.ErrRenderTemplate
	}
	var sb strings.Builder
	if err := tpl.Render(ctx, &sb); err != nil {
		return "", errors.Join(email.ErrRenderTemplate, err)
	}
	return sb.String(), nil
}
