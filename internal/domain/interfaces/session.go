package interfaces

import domaintypes "konnect/internal/domain/types"

// Session is the explicit key context of one signed-in user. It is created by
// the caller and passed into every core operation; nothing is kept globally.
type Session struct {
	User     domaintypes.Identity
	Keys     domaintypes.UserKeys
	Exchange KeyExchange
}

// LoggedIn reports whether the durable keys have been recovered.
func (s *Session) LoggedIn() bool {
	return s != nil && s.Keys.PrivateKey != "" && len(s.Keys.CacheKey) > 0
}
