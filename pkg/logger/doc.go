// Package logger builds *slog.Logger instances with functional options and
// a handler decorator that copies request-scoped values (request id, user id)
// out of context.Context into every record.
//
// Usage:
//
//	log := logger.New(
//		logger.WithEnvironment(cfg.Env, "petvoice"),
//		logger.WithLevelName(cfg.LogLevel),
//		logger.WithContextExtractors(requestIDExtractor),
//	)
//	log.InfoContext(ctx, "subscription reconciled", logger.UserID(userID))
//
// Attribute helpers in attr.go keep key names consistent across packages.
package logger
