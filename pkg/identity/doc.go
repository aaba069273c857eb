// Package identity turns a bearer token into the caller's user id and email.
//
// Two Verifier implementations are provided. JWTVerifier checks HS256 access
// tokens locally with the project's JWT secret. RemoteVerifier asks the auth
// server's /auth/v1/user endpoint, which also catches revoked sessions.
// Middleware runs a Verifier on every request and stores the Identity in the
// request context, where FromContext finds it.
package identity
