package relay

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"konnect/internal/domain"
	"konnect/internal/logger"
)

// Errors callers match on; they are the domain transport errors.
var (
	ErrNotFound     = domain.ErrNotFound
	ErrUnknownKeyID = domain.ErrUnknownKeyID
	ErrUnauthorized = domain.ErrUnauthorized
)

const (
	// DefaultTimeout bounds one HTTP attempt.
	DefaultTimeout = 10 * time.Second
	// DefaultRetries is the number of extra attempts on transport failures.
	DefaultRetries = 2
)

// Options configures a Client.
type Options struct {
	BaseURL string
	// Token is sent as "Authorization: Bearer <token>".
	Token   string
	Timeout time.Duration
	Retries int
	Logger  logger.Logger
}

// Client talks to the key server.
type Client struct {
	client *resty.Client
	log    logger.Logger
}

// New returns a Client for opts.BaseURL.
func New(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	cl := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return r != nil && r.StatusCode() == http.StatusServiceUnavailable
		})
	cl.SetHeader("Content-Type", "application/json")
	cl.SetHeader("Accept", "application/json")
	cl.SetHeader("User-Agent", "konnect/1.0.0")
	if opts.Token != "" {
		cl.SetAuthToken(opts.Token)
	}
	return &Client{client: cl, log: logger.OrDiscard(opts.Logger)}
}

// HTTPClient returns the underlying *http.Client, for tests that replace
// its transport.
func (c *Client) HTTPClient() *http.Client { return c.client.GetClient() }

// handleError maps a non-2xx response to an error. It returns nil for 2xx.
func handleError(resp *resty.Response) error {
	if !resp.IsError() {
		return nil
	}
	var body domain.ErrorResponse
	_ = json.Unmarshal(resp.Body(), &body)

	switch resp.StatusCode() {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		if body.Error != "" {
			return errors.Wrap(ErrUnauthorized, body.Error)
		}
		return ErrUnauthorized
	case http.StatusBadRequest:
		if body.Error == ErrUnknownKeyID.Error() {
			return ErrUnknownKeyID
		}
	}
	if body.Error != "" {
		return errors.Errorf("server returned %d: %s", resp.StatusCode(), body.Error)
	}
	return errors.Errorf("server returned %d", resp.StatusCode())
}
