package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Identity is the verified caller.
type Identity struct {
	UserID uuid.UUID
	Email  string
}

// Verifier validates a raw bearer token. Failures wrap ErrUnauthorized
// unless the auth backend itself could not be reached.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// New builds the Verifier selected by cfg.Mode.
func New(cfg Config) (Verifier, error) {
	switch strings.ToLower(cfg.Mode) {
	case "", ModeJWT:
		return NewJWTVerifier(cfg)
	case ModeRemote:
		return NewRemoteVerifier(cfg)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMode, cfg.Mode)
}

func newIdentity(sub, email string) (Identity, error) {
	id, err := uuid.Parse(sub)
	if err != nil || id == uuid.Nil || strings.TrimSpace(email) == "" {
		return Identity{}, fmt.Errorf("%w: %w", ErrUnauthorized, ErrInvalidClaims)
	}
	return Identity{UserID: id, Email: strings.ToLower(strings.TrimSpace(email))}, nil
}
