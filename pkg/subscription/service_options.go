package subscription

import (
	"log/slog"
	"time"
)

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock replaces time.Now. Tests use it to pin cancellation dates.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocker sets the per-user lock. Defaults to an in-process KeyedLocker,
// which is only correct for a single replica.
func WithLocker(l Locker) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.locker = l
		}
	}
}

// WithDeduper sets webhook event de-duplication. Defaults to MemoryDeduper.
func WithDeduper(d EventDeduper) ServiceOption {
	return func(s *Service) {
		if d != nil {
			s.deduper = d
		}
	}
}

func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithTierResolver(r *TierResolver) ServiceOption {
	return func(s *Service) {
		if r != nil {
			s.tiers = r
		}
	}
}

func WithMetrics(m *Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}
