package subscription

import (
	"fmt"
	"log/slog"

	"github.com/stripe/stripe-go/v82"

	"github.com/petvoice/subscriptions/pkg/logger"
)

var _ stripe.LeveledLoggerInterface = stripeLogger{}

// stripeLogger routes stripe-go SDK logs into slog. The SDK logs every request
// at info, so info is lowered to debug. SDK errors are lowered to warn because
// the provider logs the failure itself at the call site.
type stripeLogger struct {
	log *slog.Logger
}

func newStripeLogger(log *slog.Logger) stripeLogger {
	return stripeLogger{log: log.With(logger.Component("stripe_sdk"))}
}

func (l stripeLogger) Debugf(format string, v ...any) {
	l.log.Debug(fmt.Sprintf(format, v...))
}

func (l stripeLogger) Infof(format string, v ...any) {
	l.log.Debug(fmt.Sprintf(format, v...))
}

func (l stripeLogger) Warnf(format string, v ...any) {
	l.log.Warn(fmt.Sprintf(format, v...))
}

func (l stripeLogger) Errorf(format string, v ...any) {
	l.log.Warn(fmt.Sprintf(format, v...))
}
