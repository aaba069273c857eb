package subscription

// IsBlocked decides whether gated content must sit behind the upgrade prompt.
// Callers render the content behind a non-dismissible modal rather than
// redirecting, so in-flight user input is not lost.
func IsBlocked(s *Status) bool {
	if s == nil {
		return true
	}
	return !s.Subscribed || (s.IsCancelled && s.CancellationType == CancellationImmediate)
}
