// Package handler turns typed request handlers into http.HandlerFuncs.
//
// A handler receives the request and its decoded body and returns a Response.
// Binding and rendering failures go to an ErrorHandler, which maps them to a
// JSON error body:
//
//	type cancelRequest struct {
//		Type string `json:"type"`
//	}
//
//	func cancel(r *http.Request, req cancelRequest) handler.Response {
//		res, err := svc.Cancel(r.Context(), subscriberFrom(r), req.Type)
//		if err != nil {
//			return handler.JSONError(err)
//		}
//		return handler.JSON(res)
//	}
//
//	router.Post("/subscription/cancel", handler.Wrap(cancel,
//		handler.WithBinder[cancelRequest](handler.JSONBody(1<<16)),
//		handler.WithErrorHandler[cancelRequest](onError),
//	))
//
// Errors carried through JSONError are rendered by the same ErrorHandler, so
// every failure path produces the body
//
//	{"error":{"code":"not_found","message":"..."}}
package handler
