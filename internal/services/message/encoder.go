package message

import (
	"context"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"konnect/internal/crypto"
	"konnect/internal/domain"
	"konnect/internal/metrics"
)

// Outgoing is one logical message before fan-out.
type Outgoing struct {
	Sender     domain.Identity
	Group      domain.GroupID // empty for a direct message
	Recipients []domain.Recipient
	Plaintext  []byte
}

// Encoder turns one Outgoing message into per-recipient envelopes.
type Encoder struct {
	// Parallelism bounds concurrent key wraps; zero means GOMAXPROCS.
	Parallelism int
	Now         func() time.Time
}

// Encode fans msg out under sessionKey. The sender is dropped from the
// recipient list. Either every envelope is returned or none is.
//
// Steps:
//  1. Generate one per-message key.
//  2. Seal the body once under it.
//  3. Seal sender, group and each receiver identity under the session key.
//  4. Wrap the per-message key to each recipient, in parallel, and assemble
//     one envelope per recipient sharing the body ciphertext.
func (e Encoder) Encode(ctx context.Context, sessionKey []byte, msg Outgoing) ([]domain.MessageEnvelope, error) {
	recipients := excludeSender(msg.Recipients, msg.Sender)
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}
	for _, r := range recipients {
		if r.PublicKey == "" {
			return nil, &RecipientKeyError{Recipient: r.Identity.String()}
		}
	}

	msgKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	defer crypto.Wipe(msgKey)

	body, err := crypto.SealToken(msgKey, msg.Plaintext, nil)
	if err != nil {
		return nil, errors.Wrap(err, "seal message body")
	}
	sender, err := crypto.SealToken(sessionKey, []byte(msg.Sender.String()), []byte(domain.RoutingAADSender))
	if err != nil {
		return nil, errors.Wrap(err, "seal sender")
	}
	var group string
	if msg.Group != "" {
		group, err = crypto.SealToken(sessionKey, []byte(msg.Group), []byte(domain.RoutingAADGroup))
		if err != nil {
			return nil, errors.Wrap(err, "seal group")
		}
	}

	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	id := uuid.NewString()
	ts := now().Unix()

	out := make([]domain.MessageEnvelope, len(recipients))
	g, gctx := errgroup.WithContext(ctx)
	limit := e.Parallelism
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(limit)
	for i, r := range recipients {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			wrapped, err := crypto.Wrap(msgKey, r.PublicKey)
			if err != nil {
				return &RecipientKeyError{Recipient: r.Identity.String(), Err: err}
			}
			receiver, err := crypto.SealToken(sessionKey, []byte(r.Identity.String()), []byte(domain.RoutingAADReceiver))
			if err != nil {
				return errors.Wrap(err, "seal receiver")
			}
			out[i] = domain.MessageEnvelope{
				ID:        id,
				Message:   body,
				Key:       crypto.B64(wrapped),
				Sender:    sender,
				Receiver:  receiver,
				Group:     group,
				Timestamp: ts,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	metrics.EnvelopesEncrypted.Add(float64(len(out)))
	return out, nil
}

// Open reverses Encode for one envelope: unwrap the per-message key with
// privateKey, open the routing tokens with sessionKey, then open the body.
// Any failure returns an error and no message.
func Open(env domain.MessageEnvelope, privateKey string, sessionKey []byte) (domain.DecryptedMessage, error) {
	wrapped, err := crypto.UnB64(env.Key)
	if err != nil {
		metrics.DecryptFailures.WithLabelValues("unwrap").Inc()
		return domain.DecryptedMessage{}, errors.Wrap(err, "decode wrapped key")
	}
	msgKey, err := crypto.Unwrap(wrapped, privateKey)
	if err != nil {
		metrics.DecryptFailures.WithLabelValues("unwrap").Inc()
		return domain.DecryptedMessage{}, errors.Wrap(err, "unwrap message key")
	}
	defer crypto.Wipe(msgKey)

	from, err := openIdentity(sessionKey, env.Sender, domain.RoutingAADSender)
	if err != nil {
		return domain.DecryptedMessage{}, errors.Wrap(err, "open sender")
	}
	to, err := openIdentity(sessionKey, env.Receiver, domain.RoutingAADReceiver)
	if err != nil {
		return domain.DecryptedMessage{}, errors.Wrap(err, "open receiver")
	}
	var group domain.GroupID
	if env.Group != "" {
		g, err := crypto.OpenToken(sessionKey, env.Group, []byte(domain.RoutingAADGroup))
		if err != nil {
			metrics.DecryptFailures.WithLabelValues("routing").Inc()
			return domain.DecryptedMessage{}, errors.Wrap(err, "open group")
		}
		group = domain.GroupID(g)
	}

	plain, err := crypto.OpenToken(msgKey, env.Message, nil)
	if err != nil {
		metrics.DecryptFailures.WithLabelValues("body").Inc()
		return domain.DecryptedMessage{}, errors.Wrap(err, "open message body")
	}
	return domain.DecryptedMessage{
		ID:        env.ID,
		From:      from,
		To:        to,
		Group:     group,
		Plaintext: plain,
		Timestamp: env.Timestamp,
	}, nil
}

func openIdentity(sessionKey []byte, token, aad string) (domain.Identity, error) {
	raw, err := crypto.OpenToken(sessionKey, token, []byte(aad))
	if err != nil {
		metrics.DecryptFailures.WithLabelValues("routing").Inc()
		return domain.Identity{}, err
	}
	return domain.ParseIdentity(string(raw))
}

func excludeSender(in []domain.Recipient, sender domain.Identity) []domain.Recipient {
	out := make([]domain.Recipient, 0, len(in))
	seen := make(map[domain.Identity]bool, len(in))
	for _, r := range in {
		if r.Identity == sender || seen[r.Identity] {
			continue
		}
		seen[r.Identity] = true
		out = append(out, r)
	}
	return out
}
