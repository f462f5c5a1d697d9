package request

import (
	"context"

	"konnect/internal/domain"
)

// SetKeyGenerator replaces the response key generator of s.
func SetKeyGenerator(s *Service, gen func(context.Context, int) (domain.KeyPair, error)) {
	s.generate = gen
}
