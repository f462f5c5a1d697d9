package session

import "konnect/internal/domain"

// NewSession returns the explicit key context for user, backed by ex. Keys are
// filled in by a successful login.
func NewSession(user domain.Identity, ex domain.KeyExchange) *domain.Session {
	return &domain.Session{User: user, Exchange: ex}
}
