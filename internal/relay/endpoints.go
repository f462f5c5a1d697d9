package relay

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"konnect/internal/domain"
)

func (c *Client) do(ctx context.Context, method, path string, in, out any) (*resty.Response, error) {
	req := c.client.R().SetContext(ctx)
	if in != nil {
		req.SetBody(in)
	}
	if out != nil {
		req.SetResult(out)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}
	if err := handleError(resp); err != nil {
		c.log.WithField("path", path).Debugf("%s answered %d", method, resp.StatusCode())
		return resp, errors.WithMessagef(err, "%s %s", method, path)
	}
	return resp, nil
}

// ServerPublicKey fetches the server's current public key and its id.
func (c *Client) ServerPublicKey(ctx context.Context) (domain.ServerPublicKey, error) {
	var out domain.ServerPublicKey
	if _, err := c.do(ctx, resty.MethodGet, "/encryption/public-key", nil, &out); err != nil {
		return domain.ServerPublicKey{}, err
	}
	return out, nil
}

// ExchangeSessionKey presents an ephemeral public key and returns the
// session key wrapped to it.
func (c *Client) ExchangeSessionKey(ctx context.Context, ephemeralPublicKey string) (domain.KeyExchangeResponse, error) {
	var out domain.KeyExchangeResponse
	in := domain.KeyExchangeRequest{PublicKey: ephemeralPublicKey}
	if _, err := c.do(ctx, resty.MethodPost, "/encryption/aes/external-key", in, &out); err != nil {
		return domain.KeyExchangeResponse{}, err
	}
	return out, nil
}

// RecipientKey returns the registered public key of who.
func (c *Client) RecipientKey(ctx context.Context, who domain.Identity) (string, error) {
	var out domain.RecipientKeyResponse
	in := domain.RecipientKeyRequest{Identity: who.String()}
	if _, err := c.do(ctx, resty.MethodPost, "/keys/user", in, &out); err != nil {
		return "", err
	}
	return out.Key, nil
}

// GroupKeys returns every member of group with its registered public key.
// Members without a key come back with an empty PublicKey.
func (c *Client) GroupKeys(ctx context.Context, group domain.GroupID) ([]domain.Recipient, error) {
	var out domain.GroupKeysResponse
	in := domain.GroupKeysRequest{GroupID: group}
	if _, err := c.do(ctx, resty.MethodPost, "/keys/group", in, &out); err != nil {
		return nil, err
	}
	rs := make([]domain.Recipient, 0, len(out.Keys))
	for _, k := range out.Keys {
		who, err := domain.ParseIdentity(k.Identity)
		if err != nil {
			return nil, errors.Wrapf(err, "group %s", group)
		}
		rs = append(rs, domain.Recipient{Identity: who, PublicKey: k.PublicKey})
	}
	return rs, nil
}

// RegisterPublicKey publishes the caller's durable public key.
func (c *Client) RegisterPublicKey(ctx context.Context, publicKey string) error {
	_, err := c.do(ctx, resty.MethodPost, "/keys/register", domain.RegisterKeyRequest{PublicKey: publicKey}, nil)
	return err
}

// SetGroupMembers replaces the member list of group. Admin only.
func (c *Client) SetGroupMembers(ctx context.Context, group domain.GroupID, members []domain.Identity) error {
	in := domain.GroupMembersRequest{Members: make([]string, 0, len(members))}
	for _, m := range members {
		in.Members = append(in.Members, m.String())
	}
	_, err := c.do(ctx, resty.MethodPut, "/groups/"+url.PathEscape(string(group)), in, nil)
	return err
}

// Publish posts one logical message's envelopes as a single batch.
func (c *Client) Publish(ctx context.Context, envelopes []domain.MessageEnvelope) error {
	_, err := c.do(ctx, resty.MethodPost, "/messages", envelopes, nil)
	return err
}

// Fetch returns up to limit queued envelopes, oldest first. limit <= 0
// means the server's default.
func (c *Client) Fetch(ctx context.Context, limit int) ([]domain.MessageEnvelope, error) {
	path := "/messages"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []domain.MessageEnvelope
	if _, err := c.do(ctx, resty.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Ack drops the first count queued envelopes.
func (c *Client) Ack(ctx context.Context, count int) error {
	_, err := c.do(ctx, resty.MethodPost, "/messages/ack", domain.AckRequest{Count: count}, nil)
	return err
}

// PutBackup replaces the caller's key backup on the server.
func (c *Client) PutBackup(ctx context.Context, backup domain.KeyBackup) error {
	_, err := c.do(ctx, resty.MethodPut, "/keys/backup", backup, nil)
	return err
}

// GetBackup returns the caller's key backup. A user without one gets
// domain.ErrNotFound.
func (c *Client) GetBackup(ctx context.Context) (domain.KeyBackup, error) {
	var out domain.KeyBackup
	if _, err := c.do(ctx, resty.MethodGet, "/keys/backup", nil, &out); err != nil {
		return domain.KeyBackup{}, err
	}
	return out, nil
}

// Call posts body to path and returns the raw response body.
func (c *Client) Call(ctx context.Context, path string, body any) (json.RawMessage, error) {
	resp, err := c.do(ctx, resty.MethodPost, path, body, nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(resp.Body()), nil
}

var (
	_ domain.KeyServer        = (*Client)(nil)
	_ domain.MessageTransport = (*Client)(nil)
	_ domain.APIClient        = (*Client)(nil)
	_ domain.BackupStore      = (*Client)(nil)
)
