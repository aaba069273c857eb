package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/petvoice/subscriptions/pkg/logger"
)

// ErrorMapper translates domain errors into HTTP errors. It reports false
// for errors it does not know.
type ErrorMapper func(error) (HTTPError, bool)

// NewErrorHandler renders errors as ErrorBody JSON. HTTPErrors found in the
// chain win, then mapper, then ErrInvalidBody; anything else is a 500 whose
// cause is logged but never shown to the client.
func NewErrorHandler(log *slog.Logger, mapper ErrorMapper) ErrorHandler {
	if log == nil {
		log = logger.Noop()
	}
	return func(w http.ResponseWriter, r *http.Request, err error) {
		httpErr := classify(err, mapper)

		level := slog.LevelWarn
		if httpErr.Code >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		log.LogAttrs(r.Context(), level, "request error",
			logger.RequestID(middleware.GetReqID(r.Context())),
			logger.Error(err),
			slog.Int("status_code", httpErr.Code),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Component("http"),
		)

		WriteError(w, httpErr)
	}
}

func classify(err error, mapper ErrorMapper) HTTPError {
	if httpErr, ok := asHTTPError(err); ok {
		return httpErr
	}
	if mapper != nil {
		if httpErr, ok := mapper(err); ok {
			return httpErr
		}
	}
	if errors.Is(err, ErrInvalidBody) {
		return ErrBadRequest.WithMessage(ErrInvalidBody.Error())
	}
	return ErrInternalServerError.WithMessage("an error occurred processing your request")
}
