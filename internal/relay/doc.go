// Package relay is the HTTP client of the konnect key server.
//
// One Client implements domain.KeyServer, domain.MessageTransport and
// domain.APIClient over resty. Every request carries the caller's bearer
// credential and a context for cancellation and deadlines. Non-2xx answers
// are mapped to the domain transport errors (ErrNotFound, ErrUnknownKeyID,
// ErrUnauthorized) where one applies; any other failure keeps the status
// code and the server's error text.
//
// Endpoints:
//   - GET  /encryption/public-key
//   - POST /encryption/aes/external-key
//   - POST /keys/register, /keys/user, /keys/group
//   - PUT  /groups/:id
//   - POST /messages, GET /messages, POST /messages/ack
//   - POST <any API path> for enveloped calls
package relay
